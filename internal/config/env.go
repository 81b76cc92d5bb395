package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvAddr      = "SCOPE_ADDR"
	EnvPipeline  = "PIPELINE"
	EnvModelsDir = "SCOPE_MODELS_DIR"
	EnvLogLevel  = "SCOPE_LOG_LEVEL"
	EnvLogFormat = "SCOPE_LOG_FORMAT"
	EnvVerbose   = "VERBOSE_LOGGING"
)

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored;
// with no paths, ".env" is used.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return fallback
}

// GetEnvBool reports whether key is set to a true value.
func GetEnvBool(key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && b
}

// ApplyEnv overlays environment variables onto c.
func ApplyEnv(c *Config) {
	c.Addr = GetEnv(EnvAddr, c.Addr)
	c.Pipeline = GetEnv(EnvPipeline, c.Pipeline)
	c.ModelsDir = GetEnv(EnvModelsDir, c.ModelsDir)
	c.LogLevel = GetEnv(EnvLogLevel, c.LogLevel)
	c.LogFormat = GetEnv(EnvLogFormat, c.LogFormat)
	if GetEnvBool(EnvVerbose) {
		c.LogLevel = "debug"
	}
}
