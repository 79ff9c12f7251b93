// Package bytesource provides a read-only, random-access view over a
// file or an in-memory blob. Every other component in the generator
// reads bytes exclusively through a Source; nothing else touches os.File
// or a raw []byte directly.
package bytesource

import (
	"context"
	"io"
	"os"

	"github.com/crdzbird/zipdelta/internal/zdstat"
)

// Source is a read-only, random-access byte range with a known length.
// Implementations must be safe for concurrent Slice/OpenStream calls on
// the same instance; Close releases any backing resource exactly once.
type Source interface {
	// Len returns the total number of bytes available.
	Len() int64
	// Slice returns the bytes in [offset, offset+length). It reads fully
	// before returning; for large ranges prefer OpenStream.
	Slice(ctx context.Context, offset, length int64) ([]byte, error)
	// OpenStream returns a reader positioned at offset that reads length
	// bytes before returning io.EOF. The caller must Close it.
	OpenStream(ctx context.Context, offset, length int64) (io.ReadCloser, error)
	// Close releases the backing resource.
	Close() error
}

// FileSource is a Source backed by an *os.File opened for random access.
type FileSource struct {
	f    *os.File
	size int64
}

// OpenFile opens path as a FileSource.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, zdstat.Wrapf(err, "bytesource.OpenFile(%s)", path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, zdstat.Wrapf(err, "bytesource.OpenFile(%s).Stat", path)
	}
	return &FileSource{f: f, size: info.Size()}, nil
}

func (s *FileSource) Len() int64 { return s.size }

func (s *FileSource) Slice(ctx context.Context, offset, length int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, zdstat.Interruptedf("bytesource.FileSource.Slice")
	}
	if offset < 0 || length < 0 || offset+length > s.size {
		return nil, zdstat.Invariantf("bytesource.FileSource.Slice: range [%d,%d) out of bounds (len=%d)", offset, offset+length, s.size)
	}
	buf := make([]byte, length)
	if _, err := s.f.ReadAt(buf, offset); err != nil && err != io.EOF {
		return nil, zdstat.Wrapf(err, "bytesource.FileSource.Slice")
	}
	return buf, nil
}

func (s *FileSource) OpenStream(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, zdstat.Interruptedf("bytesource.FileSource.OpenStream")
	}
	if offset < 0 || length < 0 || offset+length > s.size {
		return nil, zdstat.Invariantf("bytesource.FileSource.OpenStream: range [%d,%d) out of bounds (len=%d)", offset, offset+length, s.size)
	}
	return io.NopCloser(io.NewSectionReader(s.f, offset, length)), nil
}

func (s *FileSource) Close() error {
	return s.f.Close()
}

// MemorySource is a Source backed by an in-memory byte slice. Used for
// small archives and in unit tests.
type MemorySource struct {
	data []byte
}

// NewMemorySource wraps data as a Source. data is not copied; callers must
// not mutate it afterwards.
func NewMemorySource(data []byte) *MemorySource {
	return &MemorySource{data: data}
}

func (s *MemorySource) Len() int64 { return int64(len(s.data)) }

func (s *MemorySource) Slice(ctx context.Context, offset, length int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, zdstat.Interruptedf("bytesource.MemorySource.Slice")
	}
	if offset < 0 || length < 0 || offset+length > int64(len(s.data)) {
		return nil, zdstat.Invariantf("bytesource.MemorySource.Slice: range [%d,%d) out of bounds (len=%d)", offset, offset+length, len(s.data))
	}
	out := make([]byte, length)
	copy(out, s.data[offset:offset+length])
	return out, nil
}

func (s *MemorySource) OpenStream(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, zdstat.Interruptedf("bytesource.MemorySource.OpenStream")
	}
	if offset < 0 || length < 0 || offset+length > int64(len(s.data)) {
		return nil, zdstat.Invariantf("bytesource.MemorySource.OpenStream: range [%d,%d) out of bounds (len=%d)", offset, offset+length, len(s.data))
	}
	return io.NopCloser(newBytesReader(s.data[offset : offset+length])), nil
}

func (s *MemorySource) Close() error { return nil }

type bytesReader struct {
	b   []byte
	pos int
}

func newBytesReader(b []byte) *bytesReader { return &bytesReader{b: b} }

func (r *bytesReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}
