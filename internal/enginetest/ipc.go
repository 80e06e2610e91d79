package enginetest

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"
)

// field is a gridded result held by the fake: an evaluated expression, a
// defined variable or a loaded transfer.
type field struct {
	nx, ny, nz, nt int
	lon, lat, lev  []float64
	time           []float64
	undef          float64
	data           []float64
}

func (f *field) size() int {
	return f.nx * f.ny * f.nz * f.nt
}

func (f *field) valid() []float64 {
	out := make([]float64, 0, len(f.data))

	for _, v := range f.data {
		if v != f.undef {
			out = append(out, v)
		}
	}

	return out
}

var epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

func hoursSinceEpoch(t time.Time) float64 {
	return t.Sub(epoch).Hours()
}

// writeTransfer stores f in the transfer layout: four int32 extents, the
// float64 undef, four float64 coordinate vectors and float32 data with
// longitude varying fastest.
func writeTransfer(path string, order binary.ByteOrder, f *field) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(file)

	header := []int32{int32(f.nx), int32(f.ny), int32(f.nz), int32(f.nt)}
	parts := []any{header, f.undef, f.lon, f.lat, f.lev, f.time}

	for _, part := range parts {
		if err := binary.Write(w, order, part); err != nil {
			_ = file.Close()

			return err
		}
	}

	data := make([]float32, len(f.data))
	for i, v := range f.data {
		data[i] = float32(v)
	}

	if err := binary.Write(w, order, data); err != nil {
		_ = file.Close()

		return err
	}

	if err := w.Flush(); err != nil {
		_ = file.Close()

		return err
	}

	return file.Close()
}

func readTransfer(path string, order binary.ByteOrder) (*field, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := bufio.NewReader(file)

	var header [4]int32
	if err := binary.Read(r, order, &header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	for _, n := range header {
		if n <= 0 || n > 1<<20 {
			return nil, fmt.Errorf("bad extent %d", n)
		}
	}

	f := &field{nx: int(header[0]), ny: int(header[1]), nz: int(header[2]), nt: int(header[3])}

	if err := binary.Read(r, order, &f.undef); err != nil {
		return nil, err
	}

	f.lon = make([]float64, f.nx)
	f.lat = make([]float64, f.ny)
	f.lev = make([]float64, f.nz)
	f.time = make([]float64, f.nt)

	for _, vec := range [][]float64{f.lon, f.lat, f.lev, f.time} {
		if err := binary.Read(r, order, vec); err != nil {
			return nil, err
		}
	}

	data := make([]float32, f.size())
	if err := binary.Read(r, order, data); err != nil {
		return nil, err
	}

	f.data = make([]float64, len(data))
	for i, v := range data {
		f.data[i] = float64(v)
		if v == float32(f.undef) {
			f.data[i] = f.undef
		}
	}

	if _, err := r.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("trailing bytes in transfer file")
	}

	return f, nil
}
