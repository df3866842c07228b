package config

import (
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names recognized as configuration fallbacks.
const (
	EnvModelName = "HDTEX_MODEL_NAME"
	EnvModelCmd  = "HDTEX_MODEL_CMD"
	EnvGitRemote = "HDTEX_GIT_REMOTE"
	EnvGitBranch = "HDTEX_GIT_BRANCH"
	EnvOutputDir = "HDTEX_OUTPUT_DIR"
	EnvMaxDim    = "HDTEX_MAX_DIM"
	EnvLogLevel  = "HDTEX_LOG_LEVEL"
	EnvLogFormat = "HDTEX_LOG_FORMAT"
)

// LoadDotEnv reads a .env file from the working directory into the process
// environment, ignoring absence. Call before Load so HDTEX_* values from the
// file participate in the environment overlay.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// applyEnvironment overlays HDTEX_* values onto the config. Invalid numeric
// values are ignored rather than fatal; validation catches out-of-range
// results afterwards.
func (c *Config) applyEnvironment(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvModelName)); v != "" {
		c.Upscale.Model = v
	}
	if v := strings.TrimSpace(getenv(EnvModelCmd)); v != "" {
		c.Upscale.Command = v
	}
	if v := strings.TrimSpace(getenv(EnvGitRemote)); v != "" {
		c.Git.Remote = v
	}
	if v := strings.TrimSpace(getenv(EnvGitBranch)); v != "" {
		c.Git.Branch = v
	}
	if v := strings.TrimSpace(getenv(EnvOutputDir)); v != "" {
		c.Paths.OutputDir = v
	}
	if v := strings.TrimSpace(getenv(EnvMaxDim)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Upscale.MaxDim = n
		}
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		c.Logging.Level = v
	}
	if v := strings.TrimSpace(getenv(EnvLogFormat)); v != "" {
		c.Logging.Format = v
	}
}
