package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnvFallbacks(t *testing.T) {
	t.Setenv("CFG_TEST_STR", "")
	t.Setenv("CFG_TEST_INT", "abc")
	t.Setenv("CFG_TEST_DUR", "soon")

	if got := GetEnv("CFG_TEST_STR", "x"); got != "x" {
		t.Errorf("GetEnv empty = %q, want fallback", got)
	}
	if got := GetEnvInt("CFG_TEST_INT", 7); got != 7 {
		t.Errorf("GetEnvInt invalid = %d, want 7", got)
	}
	if got := GetEnvDuration("CFG_TEST_DUR", time.Second); got != time.Second {
		t.Errorf("GetEnvDuration invalid = %v, want 1s", got)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CONTROL_ADDR", "127.0.0.1:9000")
	t.Setenv("FRAME_INTERVAL", "33ms")
	t.Setenv("RENDER_VARIANT", "overlay")
	t.Setenv("SOURCE_WIDTH", "1080")
	t.Setenv("SOURCE_HEIGHT", "1920")

	cfg := FromEnv()
	if cfg.LogLevel != "debug" || cfg.ControlAddr != "127.0.0.1:9000" || cfg.Variant != "overlay" {
		t.Errorf("string fields not read: %+v", cfg)
	}
	if cfg.FrameInterval != 33*time.Millisecond {
		t.Errorf("FrameInterval = %v, want 33ms", cfg.FrameInterval)
	}
	if cfg.SourceWidth != 1080 || cfg.SourceHeight != 1920 {
		t.Errorf("source = %dx%d, want 1080x1920", cfg.SourceWidth, cfg.SourceHeight)
	}
	if cfg.SourceFPS != 30 {
		t.Errorf("SourceFPS default = %d, want 30", cfg.SourceFPS)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("CFG_TEST_DOTENV=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CFG_TEST_DOTENV", "")
	os.Unsetenv("CFG_TEST_DOTENV")

	if err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := GetEnv("CFG_TEST_DOTENV", ""); got != "from-file" {
		t.Errorf("GetEnv after Load = %q, want from-file", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected error for missing file")
	}
}
