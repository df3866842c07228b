// Package tools resolves the external executables and model data the
// pipeline depends on, failing fast with actionable diagnostics when any are
// absent.
package tools

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrMissingTool marks a fatal precondition failure: a required external
// artifact could not be located before processing started.
var ErrMissingTool = errors.New("missing external tool")

// ToolSet holds the resolved paths for one run. Read-only after Locate.
type ToolSet struct {
	// Converter is the texconv executable handling DDS decode and encode.
	Converter string
	// Upscaler is the realesrgan-ncnn-vulkan executable.
	Upscaler string
	// ModelsDir holds the upscaler's model data.
	ModelsDir string
}

var converterCandidates = []string{
	"texconv.exe",
	"TexConv.exe",
	"texconv",
}

var upscalerCandidates = []string{
	"realesrgan-ncnn-vulkan.exe",
	"Real-ESRGAN-ncnn-vulkan.exe",
	"realesrgan-ncnn-vulkan",
}

const modelsDirName = "models"

// Locate resolves the converter, upscaler, and models directory under
// toolsDir. It runs once per run, before any file is touched; any missing
// artifact aborts with a remediation message.
func Locate(toolsDir string) (ToolSet, error) {
	toolsDir, err := filepath.Abs(toolsDir)
	if err != nil {
		return ToolSet{}, fmt.Errorf("resolve tools directory: %w", err)
	}

	converter := firstExisting(toolsDir, converterCandidates)
	if converter == "" {
		return ToolSet{}, fmt.Errorf("%w: texconv\n\nFIX:\n1. Download DirectXTex:\n   https://github.com/microsoft/DirectXTex/releases\n2. Copy the texconv binary into:\n   %s", ErrMissingTool, toolsDir)
	}

	upscaler := firstExisting(toolsDir, upscalerCandidates)
	if upscaler == "" {
		return ToolSet{}, fmt.Errorf("%w: realesrgan-ncnn-vulkan\n\nFIX:\n1. Download Real-ESRGAN (NCNN Vulkan):\n   https://github.com/xinntao/Real-ESRGAN/releases\n2. Copy the realesrgan-ncnn-vulkan binary into:\n   %s", ErrMissingTool, toolsDir)
	}

	// Model data is looked up beside the tools directory first, then beside
	// the upscaler itself.
	modelsDir := firstExistingDir(
		filepath.Join(toolsDir, modelsDirName),
		filepath.Join(filepath.Dir(upscaler), modelsDirName),
	)
	if modelsDir == "" {
		return ToolSet{}, fmt.Errorf("%w: models folder\n\nFIX:\n1. Open the Real-ESRGAN release archive\n2. Copy the entire 'models' folder into:\n   %s", ErrMissingTool, filepath.Join(toolsDir, modelsDirName))
	}

	return ToolSet{Converter: converter, Upscaler: upscaler, ModelsDir: modelsDir}, nil
}

// Status reports the availability of one required artifact for the tools
// report.
type Status struct {
	Name      string
	Path      string
	Available bool
	Detail    string
}

// Report evaluates each required artifact without aborting on the first
// missing one.
func Report(toolsDir string) []Status {
	abs, err := filepath.Abs(toolsDir)
	if err == nil {
		toolsDir = abs
	}

	statuses := make([]Status, 0, 3)

	converter := firstExisting(toolsDir, converterCandidates)
	statuses = append(statuses, artifactStatus("texconv", converter, fmt.Sprintf("not found in %s", toolsDir)))

	upscaler := firstExisting(toolsDir, upscalerCandidates)
	statuses = append(statuses, artifactStatus("realesrgan-ncnn-vulkan", upscaler, fmt.Sprintf("not found in %s", toolsDir)))

	modelCandidates := []string{filepath.Join(toolsDir, modelsDirName)}
	if upscaler != "" {
		modelCandidates = append(modelCandidates, filepath.Join(filepath.Dir(upscaler), modelsDirName))
	}
	models := firstExistingDir(modelCandidates...)
	statuses = append(statuses, artifactStatus("models", models, fmt.Sprintf("folder missing at %s", modelCandidates[0])))

	return statuses
}

func artifactStatus(name, path, missingDetail string) Status {
	if path == "" {
		return Status{Name: name, Available: false, Detail: missingDetail}
	}
	return Status{Name: name, Path: path, Available: true}
}

func firstExisting(dir string, names []string) string {
	for _, name := range names {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

func firstExistingDir(paths ...string) string {
	for _, path := range paths {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path
		}
	}
	return ""
}
