package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads session options from a YAML document.
//
// Durations use Go syntax ("30s", "1m"). Unknown keys are rejected so that
// typos surface instead of silently falling back to defaults.
func LoadFile(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read options file: %w", err)
	}

	return Parse(data)
}

// Parse decodes session options from YAML bytes.
func Parse(data []byte) (*Options, error) {
	opts := &Options{}

	if len(bytes.TrimSpace(data)) == 0 {
		return opts, nil
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(opts); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}

	if opts.ByteOrder != "" && opts.ByteOrder != ByteOrderLittle && opts.ByteOrder != ByteOrderBig {
		return nil, fmt.Errorf("invalid byteOrder %q: want %q or %q", opts.ByteOrder, ByteOrderLittle, ByteOrderBig)
	}

	return opts, nil
}

// Resolve loads o.OptionsFile, if set, and overlays o on top of it.
func (o *Options) Resolve() (*Options, error) {
	if o.OptionsFile == "" {
		return o.WithDefaults(), nil
	}

	base, err := LoadFile(o.OptionsFile)
	if err != nil {
		return nil, err
	}

	return o.Overlay(base).WithDefaults(), nil
}
