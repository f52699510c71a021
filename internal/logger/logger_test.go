package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		env   string
		level string
		want  zapcore.Level
	}{
		{"production", "", zapcore.InfoLevel},
		{"development", "", zapcore.DebugLevel},
		{"", "warn", zapcore.WarnLevel},
		{"prod", "error", zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		logger, err := New(tt.env, tt.level)
		if err != nil {
			t.Fatalf("New(%q, %q) failed: %v", tt.env, tt.level, err)
		}
		if !logger.Core().Enabled(tt.want) {
			t.Errorf("New(%q, %q): expected %s enabled", tt.env, tt.level, tt.want)
		}
		if tt.want > zapcore.DebugLevel && logger.Core().Enabled(tt.want-1) {
			t.Errorf("New(%q, %q): expected %s disabled", tt.env, tt.level, tt.want-1)
		}
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New("development", "loud"); err == nil {
		t.Error("Expected error for unknown level")
	}
}
