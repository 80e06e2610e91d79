// Package linebuf holds the captured output of one engine command.
package linebuf

import (
	"strings"
	"sync"
)

// Output is the ordered text lines one command produced. Lines and words are
// addressed 1-based; out-of-range access yields the empty string. Each line
// is tokenized at most once, on first word access.
//
// A nil *Output behaves as an empty capture.
type Output struct {
	lines []string

	mu    sync.Mutex
	words [][]string
}

// New wraps captured lines. The slice is owned by the Output afterwards.
func New(lines []string) *Output {
	return &Output{
		lines: lines,
		words: make([][]string, len(lines)),
	}
}

// LineCount returns the number of captured lines.
func (o *Output) LineCount() int {
	if o == nil {
		return 0
	}

	return len(o.lines)
}

// Line returns line i (1-based), or "" when out of range.
func (o *Output) Line(i int) string {
	if o == nil || i < 1 || i > len(o.lines) {
		return ""
	}

	return o.lines[i-1]
}

// Words returns the whitespace-separated words of line i (1-based).
// The returned slice must not be modified.
func (o *Output) Words(i int) []string {
	if o == nil || i < 1 || i > len(o.lines) {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.words[i-1] == nil {
		words := Tokenize(o.lines[i-1])
		if words == nil {
			words = []string{}
		}

		o.words[i-1] = words
	}

	return o.words[i-1]
}

// Word returns word j of line i (both 1-based), or "" when out of range.
func (o *Output) Word(i, j int) string {
	words := o.Words(i)
	if j < 1 || j > len(words) {
		return ""
	}

	return words[j-1]
}

// Lines returns a copy of all captured lines.
func (o *Output) Lines() []string {
	if o == nil {
		return nil
	}

	out := make([]string, len(o.lines))
	copy(out, o.lines)

	return out
}

// Contains reports whether any line contains substr.
func (o *Output) Contains(substr string) bool {
	if o == nil {
		return false
	}

	for _, line := range o.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}

	return false
}

// Find returns the 1-based number of the first line with the given prefix
// after leading whitespace, or 0.
func (o *Output) Find(prefix string) int {
	if o == nil {
		return 0
	}

	for i, line := range o.lines {
		if strings.HasPrefix(strings.TrimSpace(line), prefix) {
			return i + 1
		}
	}

	return 0
}

// String returns the captured lines joined by newlines.
func (o *Output) String() string {
	if o == nil {
		return ""
	}

	return strings.Join(o.lines, "\n")
}
