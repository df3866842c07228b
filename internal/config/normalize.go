package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.InputDir, err = expandPath(c.Paths.InputDir); err != nil {
		return fmt.Errorf("paths.input_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.ToolsDir, err = expandPath(c.Paths.ToolsDir); err != nil {
		return fmt.Errorf("paths.tools_dir: %w", err)
	}

	c.Upscale.Model = strings.TrimSpace(c.Upscale.Model)
	c.Upscale.Command = strings.TrimSpace(c.Upscale.Command)
	c.Upscale.Format = strings.TrimSpace(c.Upscale.Format)
	if c.Upscale.Format == "" {
		c.Upscale.Format = defaultDDSFormat
	}

	// Push without commit is meaningless; promote it.
	if c.Git.Push {
		c.Git.Commit = true
	}
	c.Git.Remote = strings.TrimSpace(c.Git.Remote)
	c.Git.Branch = strings.TrimSpace(c.Git.Branch)

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

// expandPath resolves ~ prefixes and makes the path absolute.
func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolutize %q: %w", path, err)
	}
	return abs, nil
}
