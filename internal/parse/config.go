package parse

import (
	"strings"

	"github.com/wagiedev/grads-sdk-go/internal/linebuf"
)

// ParseConfig parses a "q config" reply, or the banner that carries the same
// configuration line.
func ParseConfig(out *linebuf.Output, g *Grammar) (*ConfigInfo, error) {
	r, err := locate("config", out, g.ConfigAnchor)
	if err != nil {
		return nil, err
	}

	version, err := r.word(1, 2)
	if err != nil {
		return nil, err
	}

	info := &ConfigInfo{
		Version: strings.TrimPrefix(version, "v"),
		Values:  make(map[string]string),
		Lines:   out.Lines(),
	}

	info.Values["version"] = info.Version

	words := r.out.Words(r.anchor)
	for _, feature := range words[2:] {
		info.Features = append(info.Features, feature)

		if order, ok := strings.CutSuffix(feature, "-endian"); ok {
			info.Values["endian"] = order

			continue
		}

		info.Values[feature] = "enabled"
	}

	return info, nil
}
