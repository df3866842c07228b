// Package pipeline wraps the external converter and upscaler invocations.
// Each stage names its output deterministically from the source file's base
// name so the driver can locate produced artifacts without scanning the
// filesystem.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/polsommer/HDtextureDDS/internal/runner"
	"github.com/polsommer/HDtextureDDS/internal/tools"
)

// DefaultDDSFormat is the compression profile used when re-encoding color
// textures.
const DefaultDDSFormat = "BC7_UNORM"

// IntermediateExt is the raster format handed between decode and upscale.
const IntermediateExt = ".png"

// Decode converts a DDS container to an intermediate raster image. texconv
// always writes <scratchDir>/<stem>.png; the returned path follows that
// contract.
func Decode(ctx context.Context, r runner.Runner, ts tools.ToolSet, srcDDS, scratchDir string) (string, error) {
	if _, err := r.Run(ctx, ts.Converter, "-ft", "png", "-y", "-o", scratchDir, srcDDS); err != nil {
		return "", fmt.Errorf("decode %s: %w", filepath.Base(srcDDS), err)
	}
	return filepath.Join(scratchDir, stem(srcDDS)+IntermediateExt), nil
}

// Upscale runs the neural upscaler with an explicit output path. Never rely
// on tool-default naming here: files reusing one scratch directory would
// collide.
func Upscale(ctx context.Context, r runner.Runner, ts tools.ToolSet, inPNG, outPNG string, scale int, model string, gpu int) error {
	args := []string{
		"-i", inPNG,
		"-o", outPNG,
		"-s", strconv.Itoa(scale),
		"-n", model,
		"-m", ts.ModelsDir,
		"-g", strconv.Itoa(gpu),
		"-f", "png",
	}
	if _, err := r.Run(ctx, ts.Upscaler, args...); err != nil {
		return fmt.Errorf("upscale %s: %w", filepath.Base(inPNG), err)
	}
	return nil
}

// Encode converts the upscaled raster back to DDS at the requested format
// profile. texconv writes <outDir>/<stem>.dds; the driver relocates that file
// to the mirrored destination afterwards.
func Encode(ctx context.Context, r runner.Runner, ts tools.ToolSet, srcPNG, outDir, format string) (string, error) {
	if strings.TrimSpace(format) == "" {
		format = DefaultDDSFormat
	}
	if _, err := r.Run(ctx, ts.Converter, "-y", "-f", format, "-m", "0", "-o", outDir, srcPNG); err != nil {
		return "", fmt.Errorf("encode %s: %w", filepath.Base(srcPNG), err)
	}
	return filepath.Join(outDir, stem(srcPNG)+".dds"), nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
