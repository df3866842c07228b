package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/polsommer/HDtextureDDS/internal/runner"
	"github.com/polsommer/HDtextureDDS/internal/tools"
)

var testToolSet = tools.ToolSet{
	Converter: "/opt/tools/texconv",
	Upscaler:  "/opt/tools/realesrgan-ncnn-vulkan",
	ModelsDir: "/opt/tools/models",
}

type capture struct {
	name string
	args []string
}

func captureRunner(calls *[]capture, err error) runner.Runner {
	return runner.Func(func(_ context.Context, name string, args ...string) (runner.Output, error) {
		*calls = append(*calls, capture{name: name, args: args})
		return runner.Output{}, err
	})
}

func TestDecodeContract(t *testing.T) {
	var calls []capture
	r := captureRunner(&calls, nil)

	out, err := Decode(context.Background(), r, testToolSet, "/in/wall_color.dds", "/scratch")
	if err != nil {
		t.Fatal(err)
	}
	if out != filepath.Join("/scratch", "wall_color.png") {
		t.Fatalf("decode output = %q", out)
	}
	if len(calls) != 1 || calls[0].name != testToolSet.Converter {
		t.Fatalf("calls = %+v", calls)
	}
	want := []string{"-ft", "png", "-y", "-o", "/scratch", "/in/wall_color.dds"}
	if !slices.Equal(calls[0].args, want) {
		t.Fatalf("decode args = %v, want %v", calls[0].args, want)
	}
}

func TestUpscaleContract(t *testing.T) {
	var calls []capture
	r := captureRunner(&calls, nil)

	err := Upscale(context.Background(), r, testToolSet, "/scratch/wall.png", "/scratch/wall_up.png", 4, "realesrgan-x4plus", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 1 || calls[0].name != testToolSet.Upscaler {
		t.Fatalf("calls = %+v", calls)
	}
	want := []string{
		"-i", "/scratch/wall.png",
		"-o", "/scratch/wall_up.png",
		"-s", "4",
		"-n", "realesrgan-x4plus",
		"-m", testToolSet.ModelsDir,
		"-g", "1",
		"-f", "png",
	}
	if !slices.Equal(calls[0].args, want) {
		t.Fatalf("upscale args = %v, want %v", calls[0].args, want)
	}
}

func TestEncodeContract(t *testing.T) {
	var calls []capture
	r := captureRunner(&calls, nil)

	out, err := Encode(context.Background(), r, testToolSet, "/scratch/wall_up.png", "/out/walls", "")
	if err != nil {
		t.Fatal(err)
	}
	if out != filepath.Join("/out/walls", "wall_up.dds") {
		t.Fatalf("encode output = %q", out)
	}
	want := []string{"-y", "-f", DefaultDDSFormat, "-m", "0", "-o", "/out/walls", "/scratch/wall_up.png"}
	if !slices.Equal(calls[0].args, want) {
		t.Fatalf("encode args = %v, want %v", calls[0].args, want)
	}
}

func TestStagesPropagateToolFailure(t *testing.T) {
	toolErr := errors.New("boom")
	r := captureRunner(&[]capture{}, toolErr)

	if _, err := Decode(context.Background(), r, testToolSet, "/in/a.dds", "/scratch"); !errors.Is(err, toolErr) {
		t.Fatalf("decode err = %v", err)
	}
	if err := Upscale(context.Background(), r, testToolSet, "a.png", "b.png", 2, "m", 0); !errors.Is(err, toolErr) {
		t.Fatalf("upscale err = %v", err)
	}
	if _, err := Encode(context.Background(), r, testToolSet, "a.png", "/out", "BC7_UNORM"); !errors.Is(err, toolErr) {
		t.Fatalf("encode err = %v", err)
	}
}

func TestStageErrorsNameTheFile(t *testing.T) {
	r := captureRunner(&[]capture{}, errors.New("exit status 1"))
	_, err := Decode(context.Background(), r, testToolSet, "/in/deep/wall_color.dds", "/scratch")
	if err == nil || !strings.Contains(err.Error(), "wall_color.dds") {
		t.Fatalf("err = %v, should name the file", err)
	}
}
