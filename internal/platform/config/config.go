package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads .env files into the environment. With no paths, ".env" is
// used. A missing file is an error callers may ignore.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the variable named by key, or fallback if unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of key, or fallback if unset, empty
// or not an integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvDuration returns the duration value of key ("16ms", "1s"), or
// fallback if unset, empty or unparsable.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return fallback
}

// Config is the compositor configuration.
type Config struct {
	LogLevel      string
	LogFormat     string
	ControlAddr   string
	FrameInterval time.Duration
	Variant       string
	SourceWidth   int
	SourceHeight  int
	SourceFPS     int
	WindowWidth   int
	WindowHeight  int
}

// FromEnv reads Config from the environment with defaults.
func FromEnv() Config {
	return Config{
		LogLevel:      GetEnv("LOG_LEVEL", "info"),
		LogFormat:     GetEnv("LOG_FORMAT", "json"),
		ControlAddr:   GetEnv("CONTROL_ADDR", ":8080"),
		FrameInterval: GetEnvDuration("FRAME_INTERVAL", 16*time.Millisecond),
		Variant:       GetEnv("RENDER_VARIANT", "plain"),
		SourceWidth:   GetEnvInt("SOURCE_WIDTH", 1920),
		SourceHeight:  GetEnvInt("SOURCE_HEIGHT", 1080),
		SourceFPS:     GetEnvInt("SOURCE_FPS", 30),
		WindowWidth:   GetEnvInt("WINDOW_WIDTH", 960),
		WindowHeight:  GetEnvInt("WINDOW_HEIGHT", 540),
	}
}
