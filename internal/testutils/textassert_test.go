package testutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextAsserterEqual(t *testing.T) {
	ta := NewTextAsserter(t)
	ta.Assert("line one\nline two\n", "line one\nline two\n")
}

func TestTextAsserterTrimSpace(t *testing.T) {
	ta := NewTextAsserter(t)
	ta.TrimSpace = true
	ta.Assert("  padded \n\ttabbed\t\n", "padded\ntabbed\n")
}

func TestTextAsserterContains(t *testing.T) {
	ta := NewTextAsserter(t)
	ta.AssertContains("volume: -50 dB\nsource: AUX\n", "source: AUX")
}

func TestTextAsserterNormalize(t *testing.T) {
	ta := NewTextAsserter(t)
	assert.Equal(t, "  raw  ", ta.normalize("  raw  "))
	ta.TrimSpace = true
	assert.Equal(t, "raw", ta.normalize("  raw  "))
}

func TestColorizeDiffMarksChanges(t *testing.T) {
	out := colorizeDiff("-removed\n+added\n context\n")
	assert.Contains(t, out, "removed")
	assert.Contains(t, out, "added")
}
