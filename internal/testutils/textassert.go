package testutils

import (
	"fmt"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
)

// TextAsserter compares multi-line text and reports a unified diff on
// mismatch. Used for CLI output tests.
type TextAsserter struct {
	t *testing.T

	// TrimSpace trims leading and trailing whitespace from each line before
	// comparing.
	TrimSpace bool

	// Colorize highlights added and removed diff lines in the failure
	// message.
	Colorize bool
}

func NewTextAsserter(t *testing.T) *TextAsserter {
	return &TextAsserter{t: t}
}

// Assert compares actual against expected and fails the test with a unified
// diff on mismatch.
func (ta *TextAsserter) Assert(actual, expected string) {
	ta.t.Helper()

	normActual := ta.normalize(actual)
	normExpected := ta.normalize(expected)
	if normActual == normExpected {
		return
	}

	edits := myers.ComputeEdits(span.URIFromPath("expected"), normExpected, normActual)
	diff := fmt.Sprint(gotextdiff.ToUnified("expected", "actual", normExpected, edits))
	if ta.Colorize {
		diff = colorizeDiff(diff)
	}
	ta.t.Errorf("text mismatch:\n%s", diff)
}

// AssertContains fails unless actual contains substr.
func (ta *TextAsserter) AssertContains(actual, substr string) {
	ta.t.Helper()
	if !strings.Contains(ta.normalize(actual), ta.normalize(substr)) {
		ta.t.Errorf("text does not contain %q:\n%s", substr, actual)
	}
}

func (ta *TextAsserter) normalize(s string) string {
	if !ta.TrimSpace {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}

func colorizeDiff(diff string) string {
	var b strings.Builder
	for _, line := range strings.SplitAfter(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+"):
			b.WriteString(color.GreenString("%s", line))
		case strings.HasPrefix(line, "-"):
			b.WriteString(color.RedString("%s", line))
		default:
			b.WriteString(line)
		}
	}
	return b.String()
}
