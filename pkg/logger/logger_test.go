package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    zerolog.Level
		wantErr bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"fatal", zerolog.FatalLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"bogus", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		got, err := parseLogLevel(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLogLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewWithFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "collector.log")

	log, err := New(&Config{Level: "debug", File: path})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	log.WithField("key", "value").Info("hello")

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected log file to exist: %v", err)
	}
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	log, err := New(&Config{Level: "info"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	parent := log.WithField("a", 1).(*zerologLogger)
	child := parent.WithFields(map[string]interface{}{"b": 2}).(*zerologLogger)

	if len(parent.fields) != 1 {
		t.Errorf("Parent fields mutated: %v", parent.fields)
	}
	if len(child.fields) != 2 {
		t.Errorf("Child fields wrong: %v", child.fields)
	}
}

func TestNopLoggerImplementsInterface(t *testing.T) {
	var log Logger = NewNopLogger()

	// Must be safe to call everything on the nop implementation.
	log.Debug("d")
	log.Info("i")
	log.Warn("w")
	log.Error("e")
	log.WithField("k", "v").WithError(nil).Info("chained")
	log.ErrorWhen("testing", nil)
}
