package parse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wagiedev/grads-sdk-go/internal/config"
)

// Grammar holds the positional layout of query replies for one engine
// generation. Line numbers are relative to the reply's anchor line, which is
// line 1; word numbers are 1-based.
type Grammar struct {
	Version string

	// DimsAnchor prefixes the first line of a dims reply.
	DimsAnchor string
	// DimsDefaultFileWord locates the default file number on the anchor line.
	DimsDefaultFileWord int
	// DimsAxes lists the axis lines following the anchor, in order.
	DimsAxes []string
	// Fixed axis lines: "X is fixed Lon = 0 X = 1".
	FixedValueWord int
	FixedIndexWord int
	// Varying axis lines: "X is varying Lon = 0 to 360 X = 1 to 73".
	VaryingMinWord      int
	VaryingMaxWord      int
	VaryingIndexMinWord int
	VaryingIndexMaxWord int

	// FileAnchor prefixes the first line of a file reply: "File 1 : Title".
	FileAnchor     string
	FileIDWord     int
	FileTypeLine   int
	FileTypeWord   int
	FileSizeLine   int
	FileSizeWords  []int // NX, NY, NZ, NT and, when present, NE
	FileCountLine  int
	FileCountWord  int
	FileFirstVar   int
	FileDescriptor int
	FileBinary     int

	// ConfigAnchor prefixes the configuration line.
	ConfigAnchor string
}

// GrammarV2 matches 2.x engines, which report an ensemble axis.
var GrammarV2 = &Grammar{
	Version: config.GrammarV2,

	DimsAnchor:          "Default file number",
	DimsDefaultFileWord: 5,
	DimsAxes:            []string{"X", "Y", "Z", "T", "E"},
	FixedValueWord:      6,
	FixedIndexWord:      9,
	VaryingMinWord:      6,
	VaryingMaxWord:      8,
	VaryingIndexMinWord: 11,
	VaryingIndexMaxWord: 13,

	FileAnchor:     "File ",
	FileIDWord:     2,
	FileDescriptor: 2,
	FileBinary:     3,
	FileTypeLine:   4,
	FileTypeWord:   3,
	FileSizeLine:   5,
	FileSizeWords:  []int{3, 6, 9, 12, 15},
	FileCountLine:  6,
	FileCountWord:  5,
	FileFirstVar:   7,

	ConfigAnchor: "Config:",
}

// GrammarV1 matches 1.x engines: no ensemble axis and no Esize column.
var GrammarV1 = func() *Grammar {
	g := *GrammarV2
	g.Version = config.GrammarV1
	g.DimsAxes = []string{"X", "Y", "Z", "T"}
	g.FileSizeWords = []int{3, 6, 9, 12}

	return &g
}()

// LookupGrammar returns the grammar for a version name. The empty name
// selects the newest grammar.
func LookupGrammar(version string) (*Grammar, error) {
	switch version {
	case "", config.GrammarV2:
		return GrammarV2, nil
	case config.GrammarV1:
		return GrammarV1, nil
	default:
		return nil, fmt.Errorf("unknown grammar version %q", version)
	}
}

// GrammarForEngine picks the grammar matching an engine version string such
// as "2.0.2" or "1.9b4". Unrecognized versions get the newest grammar.
func GrammarForEngine(engineVersion string) *Grammar {
	major, _, _ := strings.Cut(strings.TrimPrefix(engineVersion, "v"), ".")

	if n, err := strconv.Atoi(major); err == nil && n < 2 {
		return GrammarV1
	}

	return GrammarV2
}
