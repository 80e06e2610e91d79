package parse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wagiedev/grads-sdk-go/internal/errors"
	"github.com/wagiedev/grads-sdk-go/internal/linebuf"
)

// reader resolves anchor-relative positions and reports failures as
// ParseErrors carrying absolute line numbers.
type reader struct {
	kind   string
	out    *linebuf.Output
	anchor int
}

func (r *reader) fail(line, word int, err error) error {
	abs := r.anchor + line - 1

	return &errors.ParseError{
		Kind: r.kind,
		Line: abs,
		Word: word,
		Text: r.out.Word(abs, word),
		Err:  err,
	}
}

func (r *reader) word(line, word int) (string, error) {
	text := r.out.Word(r.anchor+line-1, word)
	if text == "" {
		return "", r.fail(line, word, fmt.Errorf("missing token"))
	}

	return text, nil
}

func (r *reader) integer(line, word int) (int, error) {
	text, err := r.word(line, word)
	if err != nil {
		return 0, err
	}

	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, r.fail(line, word, err)
	}

	return n, nil
}

func (r *reader) number(line, word int) (float64, error) {
	text, err := r.word(line, word)
	if err != nil {
		return 0, err
	}

	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, r.fail(line, word, err)
	}

	return v, nil
}

// afterColon returns the trimmed text following the first colon of a line.
func (r *reader) afterColon(line int) (string, error) {
	text := r.out.Line(r.anchor + line - 1)

	_, rest, ok := strings.Cut(text, ":")
	if !ok {
		return "", r.fail(line, 0, fmt.Errorf("missing ':' in %q", strings.TrimSpace(text)))
	}

	return strings.TrimSpace(rest), nil
}

// locate finds the anchor line or fails with a parse error that quotes the
// first line of the reply.
func locate(kind string, out *linebuf.Output, prefix string) (*reader, error) {
	anchor := out.Find(prefix)
	if anchor == 0 {
		return nil, &errors.ParseError{
			Kind: kind,
			Text: strings.TrimSpace(out.Line(1)),
			Err:  fmt.Errorf("no line starting with %q", prefix),
		}
	}

	return &reader{kind: kind, out: out, anchor: anchor}, nil
}
