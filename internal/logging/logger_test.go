package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(Options{Development: true, Level: "debug"})
	if err != nil {
		t.Fatalf("New(dev) error = %v", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Debug("development logger ready")
}

func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(Options{})
	if err != nil {
		t.Fatalf("New(prod) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	logger.Info("production logger ready")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := New(Options{Level: "chatty"}); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}

func TestNewWritesFileSink(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tcg.log")
	logger, err := New(Options{Level: "info", File: path})
	if err != nil {
		t.Fatalf("New(file) error = %v", err)
	}

	logger.Info("Import: run finished")
	logger.Debug("below threshold")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"Import: run finished"`) {
		t.Errorf("log file missing info entry: %s", out)
	}
	if strings.Contains(out, "below threshold") {
		t.Errorf("log file contains debug entry: %s", out)
	}
}
