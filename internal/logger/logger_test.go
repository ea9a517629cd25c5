package logger

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"unknown": zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFileLogging(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codec.log")

	l := New("debug", DefaultFileConfig(path), false)
	l.Debug("encode started")
	l.Info("encode finished")
	if err := l.Sync(); err != nil {
		t.Logf("sync returned %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file failed: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected log entries in file")
	}
}

func TestNoSinksIsNop(t *testing.T) {
	l := New("info", FileConfig{}, false)
	// Must not panic and must accept writes.
	l.Info("discarded")
}
