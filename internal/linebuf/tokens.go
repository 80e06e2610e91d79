package linebuf

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Token codes start at 1 to stay clear of parsly's reserved codes.
const (
	whitespaceCode = iota + 1
	wordCode
)

var (
	whitespaceToken = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	wordToken       = parsly.NewToken(wordCode, "Word", &wordMatcher{})
)

// wordMatcher matches a maximal run of non-whitespace bytes.
type wordMatcher struct{}

func (m *wordMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	matched := 0

	for i := cursor.Pos; i < cursor.InputSize; i++ {
		if isSpace(input[i]) {
			break
		}

		matched++
	}

	return matched
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}

	return false
}

// Tokenize splits line into whitespace-separated words.
func Tokenize(line string) []string {
	if line == "" {
		return nil
	}

	cursor := parsly.NewCursor("", []byte(line), 0)

	var words []string

	for {
		matched := cursor.MatchAfterOptional(whitespaceToken, wordToken)
		if matched.Code != wordCode {
			return words
		}

		words = append(words, matched.Text(cursor))
	}
}
