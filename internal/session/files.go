package session

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/wagiedev/grads-sdk-go/internal/errors"
	"github.com/wagiedev/grads-sdk-go/internal/parse"
)

// Format selects the engine command used to open a file.
type Format string

const (
	// FormatAuto picks sdfopen for self-describing files and URLs, open otherwise.
	FormatAuto Format = ""
	// FormatDescriptor opens a data descriptor (CTL) file.
	FormatDescriptor Format = "open"
	// FormatSelfDescribing opens NetCDF, HDF and OPeNDAP sources.
	FormatSelfDescribing Format = "sdfopen"
	// FormatDescriptorOverlay opens a self-describing file through a descriptor.
	FormatDescriptorOverlay Format = "xdfopen"
)

var selfDescribingExt = map[string]bool{
	".nc":   true,
	".nc4":  true,
	".cdf":  true,
	".hdf":  true,
	".h5":   true,
	".hdf5": true,
}

// OpenCommand returns the engine command that opens path in format.
func OpenCommand(path string, format Format) string {
	if format == FormatAuto {
		format = FormatDescriptor

		lower := strings.ToLower(path)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") ||
			selfDescribingExt[filepath.Ext(lower)] {
			format = FormatSelfDescribing
		}
	}

	return string(format) + " " + path
}

// FileHandle describes a file opened in a session. Its fields never change;
// only Closed flips once the file is closed.
type FileHandle struct {
	// ID is the engine's file number. The engine may reuse it after a close.
	ID int `json:"id"`
	// Seq is unique within the session and never reused.
	Seq int `json:"seq"`

	Path       string `json:"path"`
	Title      string `json:"title"`
	Descriptor string `json:"descriptor"`
	Binary     string `json:"binary"`
	Type       string `json:"type"`

	NX int `json:"nx"`
	NY int `json:"ny"`
	NZ int `json:"nz"`
	NT int `json:"nt"`
	NE int `json:"ne"`

	Vars      []string `json:"vars"`
	VarLevels []int    `json:"varLevels"`
	VarTitles []string `json:"varTitles"`
	VarUnits  []string `json:"varUnits"`

	closed atomic.Bool
}

// Closed reports whether the file has been closed.
func (h *FileHandle) Closed() bool {
	return h.closed.Load()
}

// Shape returns the extents in (x, y, z, t) order.
func (h *FileHandle) Shape() [4]int {
	return [4]int{h.NX, h.NY, h.NZ, h.NT}
}

func newFileHandle(seq int, path string, info *parse.FileInfo) *FileHandle {
	h := &FileHandle{
		ID:         info.ID,
		Seq:        seq,
		Path:       path,
		Title:      info.Title,
		Descriptor: info.Descriptor,
		Binary:     info.Binary,
		Type:       info.Type,
		NX:         info.NX,
		NY:         info.NY,
		NZ:         info.NZ,
		NT:         info.NT,
		NE:         info.NE,
	}

	for _, v := range info.Vars {
		h.Vars = append(h.Vars, v.Name)
		h.VarLevels = append(h.VarLevels, v.Levels)
		h.VarTitles = append(h.VarTitles, v.Title)
		h.VarUnits = append(h.VarUnits, v.Units)
	}

	return h
}

// Open opens path in the engine and registers the resulting handle.
//
// Returns FileNotFoundError or UnsupportedFormatError when the engine
// rejects the file, CommandError for other engine error text and
// ParseError when the reply cannot be read. The session stays usable in
// every one of those cases.
func (s *Session) Open(ctx context.Context, path string, format Format) (*FileHandle, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	command := OpenCommand(path, format)

	out, err := s.execute(ctx, command)
	if err != nil {
		return nil, err
	}

	c := parse.Classify(out)

	switch c.Pattern {
	case parse.PatternUnsupportedFormat:
		return nil, &errors.UnsupportedFormatError{Path: path, Output: out.Lines()}
	case parse.PatternFileNotFound:
		return nil, &errors.FileNotFoundError{Path: path, Output: out.Lines()}
	}

	fid, err := parse.ParseOpened(out)
	if err != nil {
		if c.Matched() {
			return nil, &errors.CommandError{Command: command, Output: out.Lines()}
		}

		return nil, err
	}

	info, err := s.queryFile(ctx, fid)
	if err != nil {
		s.discardOpened(ctx, fid)

		return nil, fmt.Errorf("describe file %d: %w", fid, err)
	}

	s.mu.Lock()
	s.nextSeq++
	h := newFileHandle(s.nextSeq, path, info)
	s.files = append(s.files, h)
	s.mu.Unlock()

	s.log.Info("Opened file", "path", path, "id", h.ID, "seq", h.Seq, "shape", h.Shape())

	return h, nil
}

// discardOpened closes a file the engine opened but the session could not
// describe, so no unregistered file lingers in the engine. fid is the most
// recently opened file, the only one the engine lets us close.
func (s *Session) discardOpened(ctx context.Context, fid int) {
	if s.channel.Err() != nil {
		return
	}

	if _, err := s.execute(context.WithoutCancel(ctx), fmt.Sprintf("close %d", fid)); err != nil {
		s.log.Warn("Failed to close undescribed file", "id", fid, "error", err)
	}
}

// CloseFile closes engine file fid and invalidates its handle. The handle
// stays in Files.
func (s *Session) CloseFile(ctx context.Context, fid int) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	h := s.openHandle(fid)
	if h == nil {
		return fmt.Errorf("close file %d: %w", fid, errors.ErrFileNotRegistered)
	}

	command := fmt.Sprintf("close %d", fid)

	out, err := s.execute(ctx, command)
	if err != nil {
		return err
	}

	if parse.Classify(out).Matched() {
		return &errors.CommandError{Command: command, Output: out.Lines()}
	}

	h.closed.Store(true)

	s.log.Info("Closed file", "id", fid, "seq", h.Seq)

	return nil
}

// openHandle returns the live handle for engine file fid.
func (s *Session) openHandle(fid int) *FileHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.files) - 1; i >= 0; i-- {
		if h := s.files[i]; h.ID == fid && !h.Closed() {
			return h
		}
	}

	return nil
}

// Files returns every handle opened in this session in Seq order, closed
// ones included.
func (s *Session) Files() []*FileHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*FileHandle, len(s.files))
	copy(out, s.files)

	return out
}

// invalidateAll closes every handle after the engine dropped its files.
func (s *Session) invalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, h := range s.files {
		h.closed.Store(true)
	}

	clear(s.defined)
}
