// Package scratch implements the "transient artifact" storage described
// in spec.md §3 and §5: a scoped, write-once-then-read-many byte blob
// backed by memory up to a configurable threshold and spilling to a
// uniquely-named temporary file thereafter, optionally lz4-framed and/or
// AES-CTR encrypted at rest (see framing.go, cipher.go). Lifetime is
// deterministic — Close unlinks the backing file.
package scratch

import (
	"bytes"
	"context"
	"io"
	"os"
	"sync"

	"github.com/crdzbird/zipdelta/internal/zdstat"
)

// Blob is a write-once, read-many byte sink/source. A Blob is created
// empty; exactly one writer may be opened (double-write is forbidden per
// spec.md §5); after the writer is closed the blob becomes readable any
// number of times until Close releases it.
type Blob struct {
	mu sync.Mutex

	thresholdBytes int64
	tempDir        string
	cipher         *streamCipher // nil unless encryption is enabled
	compress       bool          // lz4-frame the spilled bytes, see framing.go

	writerOpened bool
	writerClosed bool

	mem     bytes.Buffer
	spilled bool
	file    *os.File
	size    int64
}

// Options configures a Blob's spill and encryption behaviour.
type Options struct {
	// ThresholdBytes is the maximum size kept purely in memory before
	// spilling to a temp file. Spec.md §5 default is 5 MiB; zero means
	// "use the package default".
	ThresholdBytes int64
	// TempDir is where spill files are created. Empty means os.TempDir().
	TempDir string
	// Encrypt enables at-rest AES-CTR encryption of the spilled bytes,
	// keyed by a random per-blob key (see SPEC_FULL.md §5.1). It has no
	// effect while the blob stays within ThresholdBytes.
	Encrypt bool
	// Compress lz4-frames the spilled bytes before they hit disk (and
	// before encryption, so the codec sees plaintext). It has no effect
	// while the blob stays within ThresholdBytes.
	Compress bool
}

const defaultThresholdBytes = 5 * 1024 * 1024

// New creates an empty Blob.
func New(opts Options) *Blob {
	threshold := opts.ThresholdBytes
	if threshold <= 0 {
		threshold = defaultThresholdBytes
	}
	b := &Blob{thresholdBytes: threshold, tempDir: opts.TempDir, compress: opts.Compress}
	if opts.Encrypt {
		b.cipher = newStreamCipher()
	}
	return b
}

// Writer returns a write-only handle for filling the blob. It may only be
// called once per Blob; a second call returns an error (spec.md §5,
// "double-write is forbidden").
func (b *Blob) Writer() (io.WriteCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writerOpened {
		return nil, zdstat.Invariantf("scratch.Blob.Writer: a write-stream is already open for this blob")
	}
	b.writerOpened = true
	return &blobWriter{b: b}, nil
}

type blobWriter struct {
	b *Blob
}

func (w *blobWriter) Write(p []byte) (int, error) {
	b := w.b
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writerClosed {
		return 0, zdstat.Invariantf("scratch.Blob.Write: writer already closed")
	}

	if !b.spilled && int64(b.mem.Len())+int64(len(p)) > b.thresholdBytes {
		if err := b.spillLocked(); err != nil {
			return 0, err
		}
	}

	var n int
	var err error
	if b.spilled {
		out := p
		if b.compress {
			out = lz4FrameEncode(out)
		}
		if b.cipher != nil {
			out = b.cipher.encrypt(out)
		}
		n, err = b.file.Write(out)
		if err != nil {
			return 0, zdstat.Wrapf(err, "scratch.Blob.Write: spill file")
		}
		n = len(p) // report plaintext bytes consumed, not ciphertext bytes written
	} else {
		n, err = b.mem.Write(p)
		if err != nil {
			return 0, zdstat.Wrapf(err, "scratch.Blob.Write: memory buffer")
		}
	}
	b.size += int64(n)
	return n, nil
}

func (w *blobWriter) Close() error {
	b := w.b
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writerClosed = true
	return nil
}

// spillLocked moves the in-memory contents so far to a temp file and
// marks the blob as spilled. Caller must hold b.mu.
func (b *Blob) spillLocked() error {
	f, err := os.CreateTemp(b.tempDir, "zipdelta-scratch-*.bin")
	if err != nil {
		return zdstat.Wrapf(err, "scratch.Blob.spill: creating temp file")
	}
	buffered := b.mem.Bytes()
	out := buffered
	if b.compress {
		out = lz4FrameEncode(out)
	}
	if b.cipher != nil {
		out = b.cipher.encrypt(out)
	}
	if _, err := f.Write(out); err != nil {
		f.Close()
		os.Remove(f.Name())
		return zdstat.Wrapf(err, "scratch.Blob.spill: writing buffered bytes")
	}
	b.file = f
	b.spilled = true
	b.mem.Reset()
	return nil
}

// Len returns the number of plaintext bytes written so far.
func (b *Blob) Len() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Bytes reads the blob's entire contents into memory. Intended for the
// delta computer, which needs whole-blob, random-access byte slices to
// run bsdiff's suffix-array matcher.
func (b *Blob) Bytes(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, zdstat.Interruptedf("scratch.Blob.Bytes")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.spilled {
		out := make([]byte, b.mem.Len())
		copy(out, b.mem.Bytes())
		return out, nil
	}

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, zdstat.Wrapf(err, "scratch.Blob.Bytes: seeking spill file")
	}
	raw, err := io.ReadAll(b.file)
	if err != nil {
		return nil, zdstat.Wrapf(err, "scratch.Blob.Bytes: reading spill file")
	}
	if b.cipher != nil {
		raw = b.cipher.decrypt(raw)
	}
	if b.compress {
		raw, err = lz4FrameDecodeAll(raw)
		if err != nil {
			return nil, err
		}
	}
	return raw, nil
}

// Close releases the blob's backing resource, unlinking any spill file.
func (b *Blob) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.file == nil {
		return nil
	}
	name := b.file.Name()
	err := b.file.Close()
	if rmErr := os.Remove(name); err == nil {
		err = rmErr
	}
	b.file = nil
	return err
}
