package raster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundMantissaBoundedRelativeError(t *testing.T) {
	t.Parallel()

	keepBits := 10
	tol := math.Pow(2, -float64(keepBits+1))

	vals := []float32{0.123456, -987.6543, 1e-8, 3.14159265, 42}
	rounded := append([]float32(nil), vals...)
	RoundMantissa(rounded, keepBits)

	for i := range vals {
		relErr := math.Abs(float64(rounded[i]-vals[i])) / math.Abs(float64(vals[i]))
		assert.LessOrEqual(t, relErr, tol, "value %v rounded to %v", vals[i], rounded[i])
	}
}

func TestRoundMantissaIdempotent(t *testing.T) {
	t.Parallel()

	vals := []float32{0.123456, -987.6543, 3.14159265}
	once := append([]float32(nil), vals...)
	RoundMantissa(once, 10)
	twice := append([]float32(nil), once...)
	RoundMantissa(twice, 10)
	assert.Equal(t, once, twice)
}

func TestRoundMantissaPreservesSpecials(t *testing.T) {
	t.Parallel()

	vals := []float32{float32(math.NaN()), float32(math.Inf(1)), float32(math.Inf(-1)), 0}
	RoundMantissa(vals, 10)
	assert.True(t, math.IsNaN(float64(vals[0])))
	assert.True(t, math.IsInf(float64(vals[1]), 1))
	assert.True(t, math.IsInf(float64(vals[2]), -1))
	assert.Equal(t, float32(0), vals[3])
}

func TestRoundMantissaOutOfRangeBitsNoop(t *testing.T) {
	t.Parallel()

	vals := []float32{0.123456}
	orig := vals[0]
	RoundMantissa(vals, 0)
	assert.Equal(t, orig, vals[0])
	RoundMantissa(vals, 23)
	assert.Equal(t, orig, vals[0])
}

func TestRoundMantissa64(t *testing.T) {
	t.Parallel()

	keepBits := 10
	tol := math.Pow(2, -float64(keepBits+1))

	vals := []float64{0.123456, -987.6543, 1e-8, 3.14159265, 42}
	rounded := append([]float64(nil), vals...)
	RoundMantissa64(rounded, keepBits)

	for i := range vals {
		relErr := math.Abs(rounded[i]-vals[i]) / math.Abs(vals[i])
		assert.LessOrEqual(t, relErr, tol, "value %v rounded to %v", vals[i], rounded[i])
	}

	specials := []float64{math.NaN(), math.Inf(1), 0}
	RoundMantissa64(specials, keepBits)
	assert.True(t, math.IsNaN(specials[0]))
	assert.True(t, math.IsInf(specials[1], 1))
	assert.Equal(t, 0.0, specials[2])

	noop := []float64{0.123456}
	RoundMantissa64(noop, 52)
	assert.Equal(t, 0.123456, noop[0])
}

func TestRoundMantissaComplex(t *testing.T) {
	t.Parallel()

	data := []complex64{complex(0.123456, -987.6543)}
	ref := []float32{0.123456, -987.6543}
	RoundMantissa(ref, 10)
	RoundMantissaComplex(data, 10)
	assert.Equal(t, ref[0], real(data[0]))
	assert.Equal(t, ref[1], imag(data[0]))
}
