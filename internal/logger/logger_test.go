package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		debug     bool
		format    string
		wantDebug bool
	}{
		{"json info", false, FormatJSON, false},
		{"json debug", true, "", true},
		{"console", false, FormatConsole, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l, err := New("drivenova-api", tt.debug, tt.format)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if got := l.Core().Enabled(zapcore.DebugLevel); got != tt.wantDebug {
				t.Errorf("Expected debug enabled=%v, got %v", tt.wantDebug, got)
			}
		})
	}
}

func TestSync_NilLogger(t *testing.T) {
	t.Parallel()

	if err := Sync(nil); err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
}
