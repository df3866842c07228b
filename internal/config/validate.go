package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Paths.InputDir == "" {
		return errors.New("paths.input_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Upscale.Command == "" && c.Paths.ToolsDir == "" {
		return errors.New("paths.tools_dir must be set when no command template is configured")
	}
	if c.Upscale.MaxDim <= 0 {
		return fmt.Errorf("upscale.max_dim must be positive, got %d", c.Upscale.MaxDim)
	}
	if c.Upscale.GPU < 0 {
		return fmt.Errorf("upscale.gpu must be non-negative, got %d", c.Upscale.GPU)
	}
	if c.Upscale.Command == "" && c.Upscale.Model == "" {
		return errors.New("upscale.model must be set")
	}
	if c.Git.Push && c.Git.Remote == "" {
		return errors.New("git.remote must be set when git.push is enabled")
	}
	if c.Git.Push && c.Git.Branch == "" {
		return errors.New("git.branch must be set when git.push is enabled")
	}
	if c.Git.Commit && c.Git.Message == "" {
		return errors.New("git.message must be set when git.commit is enabled")
	}
	return nil
}
