package parse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
	"github.com/wagiedev/grads-sdk-go/internal/errors"
	"github.com/wagiedev/grads-sdk-go/internal/linebuf"
)

const openedPhrase = "is open as file"

// Token codes start at 1 to stay clear of parsly's reserved codes.
const (
	whitespaceCode = iota + 1
	openedCode
	numberCode
)

var (
	whitespaceToken = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	openedToken     = parsly.NewToken(openedCode, "IsOpenAsFile", matcher.NewFragment(openedPhrase))
	numberToken     = parsly.NewToken(numberCode, "Number", &digitsMatcher{})
)

type digitsMatcher struct{}

func (m *digitsMatcher) Match(cursor *parsly.Cursor) int {
	matched := 0

	for i := cursor.Pos; i < cursor.InputSize; i++ {
		if cursor.Input[i] < '0' || cursor.Input[i] > '9' {
			break
		}

		matched++
	}

	return matched
}

// ParseOpened returns the file number from an open reply
// ("Data file model.dat is open as file 1").
func ParseOpened(out *linebuf.Output) (int, error) {
	for i, line := range out.Lines() {
		at := strings.Index(line, openedPhrase)
		if at < 0 {
			continue
		}

		cursor := parsly.NewCursor("", []byte(line[at:]), 0)

		if cursor.MatchOne(openedToken).Code != openedCode {
			continue
		}

		matched := cursor.MatchAfterOptional(whitespaceToken, numberToken)
		if matched.Code != numberCode {
			return 0, &errors.ParseError{
				Kind: "open",
				Line: i + 1,
				Text: strings.TrimSpace(line),
				Err:  fmt.Errorf("missing file number"),
			}
		}

		fid, err := strconv.Atoi(matched.Text(cursor))
		if err != nil {
			return 0, &errors.ParseError{Kind: "open", Line: i + 1, Text: strings.TrimSpace(line), Err: err}
		}

		return fid, nil
	}

	return 0, &errors.ParseError{
		Kind: "open",
		Text: strings.TrimSpace(out.Line(1)),
		Err:  fmt.Errorf("no %q line", openedPhrase),
	}
}
