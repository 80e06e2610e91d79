package bridge

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/wagiedev/grads-sdk-go/internal/config"
)

// maxExtent rejects corrupt headers before allocating.
const maxExtent = 1 << 20

// ByteOrder maps a configured byte order name to its encoding.
func ByteOrder(name string) (binary.ByteOrder, error) {
	switch name {
	case config.ByteOrderLittle, "":
		return binary.LittleEndian, nil
	case config.ByteOrderBig:
		return binary.BigEndian, nil
	default:
		return nil, fmt.Errorf("unknown byte order %q", name)
	}
}

// Encode writes a in the transfer layout.
func Encode(w io.Writer, order binary.ByteOrder, a *Array) error {
	if err := a.Grid.Validate(); err != nil {
		return err
	}

	if len(a.Data) != a.Grid.Size() {
		return fmt.Errorf("data has %d values for a %v grid", len(a.Data), a.Shape())
	}

	for _, n := range a.Shape() {
		if n > maxExtent {
			return fmt.Errorf("extent %d exceeds %d", n, maxExtent)
		}
	}

	bw := bufio.NewWriter(w)

	g := &a.Grid
	header := [4]int32{int32(g.NX), int32(g.NY), int32(g.NZ), int32(g.NT)}

	for _, part := range []any{header, g.Undef, g.Lon, g.Lat, g.Lev, g.Time} {
		if err := binary.Write(bw, order, part); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	data := make([]float32, len(a.Data))
	for i, v := range a.Data {
		if math.IsNaN(v) {
			v = g.Undef
		}

		data[i] = float32(v)
	}

	if err := binary.Write(bw, order, data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}

	return bw.Flush()
}

// Decode reads one transfer. Values equal to the single precision undef are
// restored to the exact undef so callers can compare against Grid.Undef.
func Decode(r io.Reader, order binary.ByteOrder) (*Array, error) {
	br := bufio.NewReader(r)

	var header [4]int32
	if err := binary.Read(br, order, &header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	for _, n := range header {
		if n <= 0 || n > maxExtent {
			return nil, fmt.Errorf("corrupt transfer header: extent %d (wrong byte order?)", n)
		}
	}

	g := Grid{NX: int(header[0]), NY: int(header[1]), NZ: int(header[2]), NT: int(header[3])}

	if err := binary.Read(br, order, &g.Undef); err != nil {
		return nil, fmt.Errorf("read undef: %w", err)
	}

	g.Lon = make([]float64, g.NX)
	g.Lat = make([]float64, g.NY)
	g.Lev = make([]float64, g.NZ)
	g.Time = make([]float64, g.NT)

	for _, coords := range [][]float64{g.Lon, g.Lat, g.Lev, g.Time} {
		if err := binary.Read(br, order, coords); err != nil {
			return nil, fmt.Errorf("read coordinates: %w", err)
		}
	}

	raw := make([]float32, g.Size())
	if err := binary.Read(br, order, raw); err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}

	if _, err := br.ReadByte(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("trailing bytes after %d values", len(raw))
	}

	undef32 := float32(g.Undef)
	data := make([]float64, len(raw))

	for i, v := range raw {
		if v == undef32 {
			data[i] = g.Undef

			continue
		}

		data[i] = float64(v)
	}

	return &Array{Data: data, Grid: g}, nil
}
