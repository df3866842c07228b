package config

const (
	defaultInputDir   = "texture"
	defaultOutputDir  = "output"
	defaultToolsDir   = "tools"
	defaultModel      = "realesrgan-x4plus"
	defaultMaxDim     = 4096
	defaultDDSFormat  = "BC7_UNORM"
	defaultGitRemote  = "origin"
	defaultGitBranch  = "main"
	defaultGitMessage = "Update processed DDS assets"
	defaultLogLevel   = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InputDir:  defaultInputDir,
			OutputDir: defaultOutputDir,
			ToolsDir:  defaultToolsDir,
		},
		Upscale: Upscale{
			Model:  defaultModel,
			MaxDim: defaultMaxDim,
			Format: defaultDDSFormat,
		},
		Git: Git{
			Remote:  defaultGitRemote,
			Branch:  defaultGitBranch,
			Message: defaultGitMessage,
		},
		Logging: Logging{
			Level: defaultLogLevel,
		},
	}
}
