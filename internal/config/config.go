package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the directory roots a run operates on.
type Paths struct {
	InputDir  string `toml:"input_dir"`
	OutputDir string `toml:"output_dir"`
	ToolsDir  string `toml:"tools_dir"`
}

// Upscale contains settings for the conversion pipeline.
type Upscale struct {
	// Model is the upscaler model name passed with -n.
	Model string `toml:"model"`
	// Command is an optional {input}/{output} template that replaces the
	// built-in texconv/realesrgan pipeline when set.
	Command string `toml:"command"`
	GPU     int    `toml:"gpu"`
	// MaxDim is the dimension ceiling; textures at or above it are never
	// upscaled.
	MaxDim int `toml:"max_dim"`
	// Format is the DDS compression format used when re-encoding.
	Format    string `toml:"format"`
	Overwrite bool   `toml:"overwrite"`
}

// Git contains archival settings for the output tree.
type Git struct {
	Commit  bool   `toml:"commit"`
	Push    bool   `toml:"push"`
	Remote  string `toml:"remote"`
	Branch  string `toml:"branch"`
	Message string `toml:"message"`
}

// Logging contains log output settings.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates every knob the CLI and batch driver need.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Upscale Upscale `toml:"upscale"`
	Git     Git     `toml:"git"`
	Logging Logging `toml:"logging"`
}

// SampleConfig returns the annotated sample TOML document.
func SampleConfig() string {
	return sampleConfig
}

// Load builds the layered configuration: defaults, then the TOML file at path
// (or hdtexture.toml in the working directory when path is empty), then
// environment overrides. The returned config is normalized and validated.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvironment(os.Getenv)

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if strings.TrimSpace(path) != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", false, fmt.Errorf("resolve config path: %w", err)
		}
		if _, err := os.Stat(abs); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", false, fmt.Errorf("config file %s does not exist", abs)
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return abs, true, nil
	}

	projectPath, err := filepath.Abs("hdtexture.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return projectPath, false, nil
}
