package logger

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestInit_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Log
		wantErr error
	}{
		{
			name:    "missing service name",
			cfg:     Log{LogLevel: "info", AppName: "insite"},
			wantErr: ErrServiceNameIsEmpty,
		},
		{
			name:    "missing app name",
			cfg:     Log{LogLevel: "info", ServiceName: "insite"},
			wantErr: ErrAppNameIsEmpty,
		},
		{
			name: "valid",
			cfg:  Log{LogLevel: "warn", ServiceName: "insite", AppName: "insite"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Init(tt.cfg)
			if tt.wantErr != nil {
				if err == nil || err.Error() != tt.wantErr.Error() {
					t.Fatalf("Init() error = %v, want %v", err, tt.wantErr)
				}

				return
			}

			if err != nil {
				t.Fatalf("Init() unexpected error: %v", err)
			}
		})
	}
}

func TestInit_BadLevel(t *testing.T) {
	err := Init(Log{LogLevel: "noisy", ServiceName: "insite", AppName: "insite"})
	if err == nil {
		t.Fatal("expected error for unsupported loglevel")
	}
}

func TestInit_SetsGlobalLevel(t *testing.T) {
	if err := Init(Log{LogLevel: "error", ServiceName: "insite", AppName: "insite"}); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	if got := zerolog.GlobalLevel(); got != zerolog.ErrorLevel {
		t.Fatalf("global level = %v, want error", got)
	}
}
