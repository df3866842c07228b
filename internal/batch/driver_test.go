package batch

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"github.com/polsommer/HDtextureDDS/internal/logging"
	"github.com/polsommer/HDtextureDDS/internal/manifest"
	"github.com/polsommer/HDtextureDDS/internal/pipeline"
	"github.com/polsommer/HDtextureDDS/internal/runner"
	"github.com/polsommer/HDtextureDDS/internal/tools"
)

var fakeToolSet = tools.ToolSet{
	Converter: "/fake/texconv",
	Upscaler:  "/fake/realesrgan-ncnn-vulkan",
	ModelsDir: "/fake/models",
}

// writeDDS creates a minimal DDS fixture with the given dimensions plus a
// payload so copies can be compared byte for byte.
func writeDDS(t *testing.T, path string, width, height uint32) []byte {
	t.Helper()
	buf := make([]byte, 4+124)
	copy(buf, "DDS ")
	binary.LittleEndian.PutUint32(buf[4+8:], height)
	binary.LittleEndian.PutUint32(buf[4+12:], width)
	buf = append(buf, []byte(path)...) // unique payload per file

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	return buf
}

// fakeTools simulates the converter and upscaler: each invocation creates the
// artifact the real tool would produce, following the deterministic naming
// contracts.
type fakeTools struct {
	calls       []string
	upscaleErr  error
	upscaleFail string // only fail when the input path contains this
}

func (f *fakeTools) runner(t *testing.T) runner.Runner {
	return runner.Func(func(_ context.Context, name string, args ...string) (runner.Output, error) {
		t.Helper()
		f.calls = append(f.calls, runner.FormatCommand(name, args...))
		switch name {
		case fakeToolSet.Converter:
			outDir := argAfter(args, "-o")
			src := args[len(args)-1]
			ext := ".dds"
			for i, a := range args {
				if a == "-ft" && args[i+1] == "png" {
					ext = ".png"
				}
			}
			produced := filepath.Join(outDir, stemOf(src)+ext)
			if err := os.WriteFile(produced, []byte("artifact:"+src), 0o644); err != nil {
				return runner.Output{}, err
			}
			return runner.Output{}, nil
		case fakeToolSet.Upscaler:
			in := argAfter(args, "-i")
			out := argAfter(args, "-o")
			if f.upscaleErr != nil && (f.upscaleFail == "" || strings.Contains(in, f.upscaleFail)) {
				return runner.Output{Stderr: "out of memory"}, f.upscaleErr
			}
			if err := os.WriteFile(out, []byte("upscaled:"+in), 0o644); err != nil {
				return runner.Output{}, err
			}
			return runner.Output{}, nil
		default:
			return runner.Output{}, errors.New("unexpected command " + name)
		}
	})
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func newDriver(opts Options, r runner.Runner) *Driver {
	d := New(opts, fakeToolSet, r, logging.NewNop())
	d.newRunID = func() string { return "test-run" }
	return d
}

func TestRunMixedBatch(t *testing.T) {
	inDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")

	writeDDS(t, filepath.Join(inDir, "wall_color.dds"), 512, 512)
	normalBytes := writeDDS(t, filepath.Join(inDir, "walls", "wall_n.dds"), 2048, 2048)
	writeDDS(t, filepath.Join(inDir, "huge.dds"), 4096, 4096)

	ft := &fakeTools{}
	d := newDriver(Options{
		InputRoot:  inDir,
		OutputRoot: outDir,
		Model:      "realesrgan-x4plus",
		MaxDim:     4096,
	}, ft.runner(t))

	m, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Results) != 3 {
		t.Fatalf("results = %+v", m.Results)
	}

	byName := map[string]manifest.Result{}
	for _, r := range m.Results {
		byName[filepath.Base(r.Source)] = r
	}

	color := byName["wall_color.dds"]
	if color.Status != manifest.StatusOK || color.Scale != 4 || color.Kind != "color" {
		t.Fatalf("color result = %+v", color)
	}
	if _, err := os.Stat(filepath.Join(outDir, "wall_color.dds")); err != nil {
		t.Fatalf("upscaled destination missing: %v", err)
	}

	normal := byName["wall_n.dds"]
	if normal.Status != manifest.StatusOK || normal.Scale != 1 || normal.Kind != "normal" || normal.Message != "copied" {
		t.Fatalf("normal result = %+v", normal)
	}
	got, err := os.ReadFile(filepath.Join(outDir, "walls", "wall_n.dds"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, normalBytes) {
		t.Fatal("normal map copy is not byte-identical")
	}

	huge := byName["huge.dds"]
	if huge.Status != manifest.StatusOK || huge.Scale != 1 || huge.Message != "copied" {
		t.Fatalf("at-ceiling result = %+v", huge)
	}

	tally := m.Tally()
	if tally.OK != 3 || tally.Errors != 0 {
		t.Fatalf("tally = %+v", tally)
	}
}

func TestRunSecondPassSkipsEverything(t *testing.T) {
	inDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")

	writeDDS(t, filepath.Join(inDir, "a.dds"), 256, 256)
	writeDDS(t, filepath.Join(inDir, "b_n.dds"), 1024, 1024)

	ft := &fakeTools{}
	opts := Options{InputRoot: inDir, OutputRoot: outDir, Model: "m", MaxDim: 4096}

	first, err := newDriver(opts, ft.runner(t)).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if tally := first.Tally(); tally.OK != 2 {
		t.Fatalf("first tally = %+v", tally)
	}

	callsAfterFirst := len(ft.calls)
	second, err := newDriver(opts, ft.runner(t)).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range second.Results {
		if r.Status != manifest.StatusSkipped {
			t.Fatalf("expected skipped, got %+v", r)
		}
		// Classification fields stay populated for audit.
		if r.Kind == "unknown" || r.Width == 0 {
			t.Fatalf("skipped result lost classification: %+v", r)
		}
	}
	if len(ft.calls) != callsAfterFirst {
		t.Fatalf("skip pass invoked external processes: %v", ft.calls[callsAfterFirst:])
	}
}

func TestRunIsolatesUpscalerFailure(t *testing.T) {
	inDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")

	writeDDS(t, filepath.Join(inDir, "doomed.dds"), 512, 512)
	writeDDS(t, filepath.Join(inDir, "fine.dds"), 512, 512)

	ft := &fakeTools{
		upscaleErr:  errors.New("external tool failed: out of memory"),
		upscaleFail: "doomed",
	}
	m, err := newDriver(Options{InputRoot: inDir, OutputRoot: outDir, Model: "m", MaxDim: 4096}, ft.runner(t)).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	byName := map[string]manifest.Result{}
	for _, r := range m.Results {
		byName[filepath.Base(r.Source)] = r
	}

	doomed := byName["doomed.dds"]
	if doomed.Status != manifest.StatusError {
		t.Fatalf("doomed result = %+v", doomed)
	}
	if !strings.Contains(doomed.Message, "out of memory") {
		t.Fatalf("message %q should preserve stderr text", doomed.Message)
	}
	if doomed.Scale != 0 {
		t.Fatalf("failed file should record scale 0, got %d", doomed.Scale)
	}
	if doomed.Width != 512 || doomed.Height != 512 {
		t.Fatalf("best-effort dimensions lost: %+v", doomed)
	}

	if byName["fine.dds"].Status != manifest.StatusOK {
		t.Fatalf("remaining file should still process: %+v", byName["fine.dds"])
	}
}

func TestRunRecordsUnreadableHeader(t *testing.T) {
	inDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")

	bad := filepath.Join(inDir, "bad.dds")
	if err := os.WriteFile(bad, []byte("PNG not dds"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeDDS(t, filepath.Join(inDir, "good_n.dds"), 512, 512)

	ft := &fakeTools{}
	m, err := newDriver(Options{InputRoot: inDir, OutputRoot: outDir, Model: "m", MaxDim: 4096}, ft.runner(t)).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	tally := m.Tally()
	if tally.Errors != 1 || tally.OK != 1 {
		t.Fatalf("tally = %+v", tally)
	}
	for _, r := range m.Results {
		if r.Status == manifest.StatusError {
			if r.Kind != "unknown" || r.Scale != 0 || r.Width != 0 {
				t.Fatalf("error result = %+v", r)
			}
		}
	}
}

func TestRunDryRunWritesNothing(t *testing.T) {
	inDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")

	writeDDS(t, filepath.Join(inDir, "small.dds"), 256, 256)
	writeDDS(t, filepath.Join(inDir, "map_n.dds"), 256, 256)

	dry := runner.NewDryRun()
	m, err := newDriver(Options{
		InputRoot:  inDir,
		OutputRoot: outDir,
		Model:      "m",
		MaxDim:     4096,
		DryRun:     true,
	}, dry).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	for _, r := range m.Results {
		if r.Status != manifest.StatusPending {
			t.Fatalf("dry-run result = %+v", r)
		}
	}

	// Only the lock file may appear under the output root.
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != LockFileName {
			t.Fatalf("dry run wrote %q", e.Name())
		}
	}
}

func TestRunTemplateReplacesPipeline(t *testing.T) {
	inDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")

	src := filepath.Join(inDir, "tex.dds")
	writeDDS(t, src, 512, 512)

	tpl, err := pipeline.ParseTemplate("mytool --in {input} --out {output}")
	if err != nil {
		t.Fatal(err)
	}

	var shellCmd string
	r := runner.Func(func(_ context.Context, name string, args ...string) (runner.Output, error) {
		if name != "sh" {
			t.Fatalf("template should run through the shell, got %q", name)
		}
		shellCmd = args[len(args)-1]
		return runner.Output{Stdout: "processed\n"}, nil
	})

	m, err := newDriver(Options{
		InputRoot:  inDir,
		OutputRoot: outDir,
		Model:      "m",
		MaxDim:     4096,
		Template:   tpl,
	}, r).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	result := m.Results[0]
	if result.Status != manifest.StatusOK || result.Message != "processed" {
		t.Fatalf("template result = %+v", result)
	}
	wantCmd := "mytool --in " + src + " --out " + filepath.Join(outDir, "tex.dds")
	if shellCmd != wantCmd {
		t.Fatalf("shell command = %q, want %q", shellCmd, wantCmd)
	}
}

func TestRunLockContention(t *testing.T) {
	inDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}

	held := flock.New(filepath.Join(outDir, LockFileName))
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("could not pre-acquire lock: %v", err)
	}
	defer held.Unlock()

	ft := &fakeTools{}
	_, err = newDriver(Options{InputRoot: inDir, OutputRoot: outDir, Model: "m", MaxDim: 4096}, ft.runner(t)).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "another run") {
		t.Fatalf("err = %v, want lock contention", err)
	}
}

func TestRunMirrorsDirectoryStructure(t *testing.T) {
	inDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")

	writeDDS(t, filepath.Join(inDir, "a", "b", "deep_n.dds"), 512, 512)

	ft := &fakeTools{}
	m, err := newDriver(Options{InputRoot: inDir, OutputRoot: outDir, Model: "m", MaxDim: 4096}, ft.runner(t)).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if m.Results[0].Destination != filepath.Join(outDir, "a", "b", "deep_n.dds") {
		t.Fatalf("destination = %q", m.Results[0].Destination)
	}
	if _, err := os.Stat(m.Results[0].Destination); err != nil {
		t.Fatalf("mirrored file missing: %v", err)
	}
}

func TestScratchKeyDistinguishesSameBaseNames(t *testing.T) {
	a := scratchKey(filepath.Join("walls", "brick.dds"))
	b := scratchKey(filepath.Join("floors", "brick.dds"))
	if a == b {
		t.Fatalf("scratch keys collide: %q", a)
	}
	if !strings.HasPrefix(a, "brick-") {
		t.Fatalf("scratch key should stay readable: %q", a)
	}
}
