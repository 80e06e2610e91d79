package parse

import (
	"strings"

	"github.com/wagiedev/grads-sdk-go/internal/linebuf"
)

// Pattern names a recognized class of engine error text.
type Pattern int

const (
	// PatternNone means no error text was recognized.
	PatternNone Pattern = iota
	// PatternUnsupportedFormat means the engine could not interpret a file.
	PatternUnsupportedFormat
	// PatternFileNotFound means the engine could not find or open a file.
	PatternFileNotFound
	// PatternUndefinedVariable means an expression could not be evaluated.
	PatternUndefinedVariable
	// PatternGeneric is any other recognized error report.
	PatternGeneric
)

func (p Pattern) String() string {
	switch p {
	case PatternNone:
		return "none"
	case PatternUnsupportedFormat:
		return "unsupported_format"
	case PatternFileNotFound:
		return "file_not_found"
	case PatternUndefinedVariable:
		return "undefined_variable"
	case PatternGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

// Rule maps substrings to a pattern. Matching is case-insensitive.
type Rule struct {
	Pattern    Pattern
	Substrings []string
}

// Rules is the classification table, checked in order. A line that matches
// several rules takes the first: "Open Error: Invalid descriptor file" is an
// unsupported format, not a missing file.
var Rules = []Rule{
	{
		Pattern: PatternUnsupportedFormat,
		Substrings: []string{
			"not a netcdf file",
			"unknown format",
			"invalid descriptor",
			"not a valid hdf",
			"unknown file format",
		},
	},
	{
		Pattern: PatternFileNotFound,
		Substrings: []string{
			"can't open description file",
			"no such file",
			"file not found",
			"open error",
		},
	},
	{
		Pattern: PatternUndefinedVariable,
		Substrings: []string{
			"undefined variable",
			"variable not found",
			"syntax error",
			"display error",
			"define error",
			"data request error",
			"invalid expression",
		},
	},
	{
		Pattern: PatternGeneric,
		Substrings: []string{
			"error:",
			"error ",
			"not open",
			"no files open",
			"unknown command",
		},
	},
}

// Classification is the result of Classify.
type Classification struct {
	Pattern Pattern
	// Line is the 1-based matching line, 0 for PatternNone.
	Line int
	// Text is the trimmed matching line.
	Text string
}

// Matched reports whether any error text was recognized.
func (c Classification) Matched() bool {
	return c.Pattern != PatternNone
}

// Classify checks out against Rules.
func Classify(out *linebuf.Output) Classification {
	lowered := make([]string, out.LineCount())
	for i := range lowered {
		lowered[i] = strings.ToLower(out.Line(i + 1))
	}

	for _, rule := range Rules {
		for i, line := range lowered {
			for _, sub := range rule.Substrings {
				if strings.Contains(line, sub) {
					return Classification{
						Pattern: rule.Pattern,
						Line:    i + 1,
						Text:    strings.TrimSpace(out.Line(i + 1)),
					}
				}
			}
		}
	}

	return Classification{Pattern: PatternNone}
}
