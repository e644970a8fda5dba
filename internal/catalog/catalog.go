// Package catalog records assembled products and compressed outputs in a
// local sqlite database so operators can query what a processing node has
// produced.
package catalog

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the catalog database.
type Store struct {
	*sql.DB
}

// Open opens (creating if needed) the catalog at path and applies pending
// schema migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", path, err)
	}
	s := &Store{db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load catalog migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Not closing m: that would close the underlying DB connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("catalog migration failed: %w", err)
	}
	return nil
}

// ProductRecord is one assembled displacement product.
type ProductRecord struct {
	ID             string
	FrameID        int
	OutputPath     string
	ReferenceTime  time.Time
	SecondaryTime  time.Time
	ProductVersion string
	CreatedAt      time.Time
}

// RecordProduct inserts a product row and returns its generated id.
func (s *Store) RecordProduct(frameID int, outputPath string, referenceTime, secondaryTime time.Time, version string) (string, error) {
	id := uuid.NewString()
	_, err := s.Exec(
		`INSERT INTO products (id, frame_id, output_path, reference_time, secondary_time, product_version)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, frameID, outputPath, referenceTime.UTC(), secondaryTime.UTC(), version)
	if err != nil {
		return "", fmt.Errorf("failed to record product for frame %d: %w", frameID, err)
	}
	return id, nil
}

// RecordCompressed inserts one compressed-output row and returns its id.
func (s *Store) RecordCompressed(burstID, outputPath string) (string, error) {
	id := uuid.NewString()
	_, err := s.Exec(
		`INSERT INTO compressed_products (id, burst_id, output_path) VALUES (?, ?, ?)`,
		id, burstID, outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to record compressed output for burst %s: %w", burstID, err)
	}
	return id, nil
}

// ProductsForFrame returns the recorded products of one frame, most recent
// first.
func (s *Store) ProductsForFrame(frameID int) ([]ProductRecord, error) {
	rows, err := s.Query(
		`SELECT id, frame_id, output_path, reference_time, secondary_time, product_version, created_at
		 FROM products WHERE frame_id = ? ORDER BY created_at DESC`, frameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ProductRecord
	for rows.Next() {
		var r ProductRecord
		if err := rows.Scan(&r.ID, &r.FrameID, &r.OutputPath, &r.ReferenceTime, &r.SecondaryTime, &r.ProductVersion, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// CompressedForBurst returns the recorded compressed outputs of one burst.
func (s *Store) CompressedForBurst(burstID string) ([]string, error) {
	rows, err := s.Query(
		`SELECT output_path FROM compressed_products WHERE burst_id = ? ORDER BY created_at DESC`, burstID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return paths, nil
}
