package monitoring

import (
	"fmt"
	"strings"
	"testing"
)

func TestSetLoggerRedirects(t *testing.T) {
	orig := Logf
	defer SetLogger(orig)

	var captured []string
	SetLogger(func(format string, v ...interface{}) {
		captured = append(captured, fmt.Sprintf(format, v...))
	})

	Logf("hello %d", 42)
	Warnf("fallback applied for %s", "baseline")

	if len(captured) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(captured))
	}
	if captured[0] != "hello 42" {
		t.Errorf("unexpected first line: %q", captured[0])
	}
	if !strings.HasPrefix(captured[1], "warning: ") {
		t.Errorf("Warnf should prefix with warning:, got %q", captured[1])
	}
}

func TestSetLoggerNilMutes(t *testing.T) {
	orig := Logf
	defer SetLogger(orig)

	SetLogger(nil)
	// Must not panic.
	Logf("dropped")
	Warnf("dropped too")
}

func TestSetDebug(t *testing.T) {
	orig := Logf
	defer func() {
		SetLogger(orig)
		SetDebug(false)
	}()

	var captured []string
	SetLogger(func(format string, v ...interface{}) {
		captured = append(captured, fmt.Sprintf(format, v...))
	})

	Debugf("invisible")
	if len(captured) != 0 {
		t.Fatalf("debug logging should be off by default")
	}

	SetDebug(true)
	Debugf("visible %d", 1)
	if len(captured) != 1 || captured[0] != "debug: visible 1" {
		t.Fatalf("unexpected debug output: %v", captured)
	}

	SetDebug(false)
	Debugf("invisible again")
	if len(captured) != 1 {
		t.Fatalf("debug logging should be muted after SetDebug(false)")
	}
}
