package draco

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/dracodec/internal/config"
)

func TestSetFileLogger(t *testing.T) {
	defer SetLogger(nil)

	path := filepath.Join(t.TempDir(), "codec.log")
	l := SetFileLogger("debug", path, false)
	if l == nil {
		t.Fatal("SetFileLogger returned nil")
	}

	// Encoding with the file logger installed traces into the file.
	if _, err := EncodeMesh(createTriangleMesh(t), nil, nil); err != nil {
		t.Fatalf("EncodeMesh failed: %v", err)
	}
	if err := l.Sync(); err != nil {
		t.Logf("sync returned %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file failed: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected encoder traces in the log file")
	}
}

func TestSetFileLoggerEmptyPathIsNop(t *testing.T) {
	defer SetLogger(nil)
	l := SetFileLogger("info", "", false)
	// Must not panic and must accept writes.
	l.Info("discarded")
}

func TestPresetInstallsFileLogger(t *testing.T) {
	defer SetLogger(nil)

	path := filepath.Join(t.TempDir(), "preset.log")
	p := config.Default()
	p.Logging.Level = "debug"
	p.Logging.LogFile = path

	opts, err := OptionsFromPreset(p)
	if err != nil {
		t.Fatalf("OptionsFromPreset failed: %v", err)
	}
	if _, err := EncodeMesh(createTriangleMesh(t), opts, nil); err != nil {
		t.Fatalf("EncodeMesh failed: %v", err)
	}
	_ = log.Sync()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file failed: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected the preset-configured log file to receive traces")
	}
}
