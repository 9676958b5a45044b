// Package logging includes tests for the zap logger helpers.
package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// TestNewDevelopmentLogger confirms the development logger builds and logs.
func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	if err != nil {
		t.Fatalf("New(true) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("development logger ready")
}

// TestNewProductionLogger ensures the production logger configuration succeeds.
func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	if err != nil {
		t.Fatalf("New(false) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("production logger ready")
}

// TestForSourceAnnotatesEveryLine checks the source field rides on each entry.
func TestForSourceAnnotatesEveryLine(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	logger := ForSource(zap.New(core), "statedept_global")
	logger.Info("fetch starting")
	logger.Info("fetch done")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, e := range entries {
		fields := e.ContextMap()
		if fields["source"] != "statedept_global" {
			t.Fatalf("entry %q missing source field: %v", e.Message, fields)
		}
	}
}

// TestForSourceNilLogger ensures a nil base logger degrades to a nop.
func TestForSourceNilLogger(t *testing.T) {
	t.Parallel()

	logger := ForSource(nil, "anything")
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	logger.Info("must not panic")
}
