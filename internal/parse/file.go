package parse

import (
	"fmt"
	"strings"

	"github.com/wagiedev/grads-sdk-go/internal/linebuf"
)

// ParseFileInfo parses a "q file" reply.
func ParseFileInfo(out *linebuf.Output, g *Grammar) (*FileInfo, error) {
	r, err := locate("file", out, g.FileAnchor)
	if err != nil {
		return nil, err
	}

	info := &FileInfo{NE: 1}

	if info.ID, err = r.integer(1, g.FileIDWord); err != nil {
		return nil, err
	}

	if info.Title, err = r.afterColon(1); err != nil {
		return nil, err
	}

	if info.Descriptor, err = r.afterColon(g.FileDescriptor); err != nil {
		return nil, err
	}

	if info.Binary, err = r.afterColon(g.FileBinary); err != nil {
		return nil, err
	}

	if info.Type, err = r.word(g.FileTypeLine, g.FileTypeWord); err != nil {
		return nil, err
	}

	sizes := []*int{&info.NX, &info.NY, &info.NZ, &info.NT, &info.NE}

	for i, word := range g.FileSizeWords {
		if *sizes[i], err = r.integer(g.FileSizeLine, word); err != nil {
			return nil, err
		}
	}

	count, err := r.integer(g.FileCountLine, g.FileCountWord)
	if err != nil {
		return nil, err
	}

	info.Vars = make([]VarInfo, 0, count)

	for i := range count {
		line := g.FileFirstVar + i

		v, err := parseVar(r, line)
		if err != nil {
			return nil, err
		}

		info.Vars = append(info.Vars, v)
	}

	return info, nil
}

func parseVar(r *reader, line int) (VarInfo, error) {
	var (
		v   VarInfo
		err error
	)

	if v.Name, err = r.word(line, 1); err != nil {
		return v, r.fail(line, 1, fmt.Errorf("variable record missing: %w", err))
	}

	if v.Levels, err = r.integer(line, 2); err != nil {
		return v, err
	}

	if v.Units, err = r.word(line, 3); err != nil {
		return v, err
	}

	words := r.out.Words(r.anchor + line - 1)
	if len(words) > 3 {
		v.Title = strings.Join(words[3:], " ")
	}

	return v, nil
}
