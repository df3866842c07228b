package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/polsommer/HDtextureDDS/internal/runner"
)

// Template is a user-supplied command with {input}/{output} placeholders that
// replaces the built-in two-tool pipeline. Validated once at configuration
// time; substituted per file immediately before invocation.
type Template struct {
	raw string
}

var placeholderPattern = regexp.MustCompile(`\{[^{}]*\}`)

// ParseTemplate validates a command template. An empty string yields the zero
// Template (no template configured). Unknown placeholders are rejected here
// so a bad template fails before any file is touched.
func ParseTemplate(raw string) (Template, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Template{}, nil
	}
	for _, placeholder := range placeholderPattern.FindAllString(raw, -1) {
		switch placeholder {
		case "{input}", "{output}":
		default:
			return Template{}, fmt.Errorf("command template: unknown placeholder %s", placeholder)
		}
	}
	if !strings.Contains(raw, "{input}") {
		return Template{}, fmt.Errorf("command template: missing {input} placeholder")
	}
	if !strings.Contains(raw, "{output}") {
		return Template{}, fmt.Errorf("command template: missing {output} placeholder")
	}
	return Template{raw: raw}, nil
}

// IsZero reports whether no template was configured.
func (t Template) IsZero() bool {
	return t.raw == ""
}

// String returns the raw template text.
func (t Template) String() string {
	return t.raw
}

// Expand substitutes the per-file paths into the template.
func (t Template) Expand(input, output string) string {
	cmd := strings.ReplaceAll(t.raw, "{input}", input)
	return strings.ReplaceAll(cmd, "{output}", output)
}

// Invoke expands the template for one file and executes it through the shell,
// returning the command line that ran.
func (t Template) Invoke(ctx context.Context, r runner.Runner, input, output string) (string, runner.Output, error) {
	cmd := t.Expand(input, output)
	out, err := r.Run(ctx, "sh", "-c", cmd)
	return cmd, out, err
}
