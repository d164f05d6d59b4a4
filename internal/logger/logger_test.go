package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestInit_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.log")
	l, err := Init(Config{Level: "debug", Format: "json", File: path})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer zap.ReplaceGlobals(zap.NewNop())

	zap.S().Infow("batch complete", "pairs", 3)
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"batch complete"`) || !strings.Contains(string(data), `"pairs":3`) {
		t.Errorf("unexpected log content: %s", data)
	}
}

func TestInit_Invalid(t *testing.T) {
	tests := []Config{
		{Level: "loud"},
		{Format: "xml"},
	}
	for _, cfg := range tests {
		if _, err := Init(cfg); err == nil {
			t.Errorf("expected error for %+v", cfg)
		}
	}
}
