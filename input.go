package fastqx

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/edsrzf/mmap-go"
	"github.com/klauspost/pgzip"
)

// ReaderOptions configures the input-acquisition layer.
type ReaderOptions struct {
	// MaxInputSize caps the size in bytes of a file that OpenFile
	// memory-maps. 0 selects DefaultMaxInputSize. Gzip files, OpenBytes
	// slices and arbitrary io.Reader sources are not size-checked.
	MaxInputSize int64

	// BufferSize is the initial sliding-window size for streaming sources.
	// 0 selects DefaultBufferSize.
	BufferSize int

	// DisableSIMD forces the scalar byte-scan fallback even when wide
	// hardware support is detected, matching the escape hatch the
	// standard allows implementations to expose. It is a process-wide
	// setting: the most recently opened Reader's value wins for every
	// byte-scan call made anywhere in the process, including by readers
	// opened earlier and still in use.
	DisableSIMD bool

	Parser ParserOptions
}

func (o ReaderOptions) maxInputSize() int64 {
	if o.MaxInputSize > 0 {
		return o.MaxInputSize
	}
	return DefaultMaxInputSize
}

// ParserOptions configures record-level parsing behavior.
type ParserOptions struct {
	// Strict records whether the caller wants the strict sequence alphabet
	// {A,C,G,T,N,a,c,g,t,n}. No parser, streaming parser or reader in this
	// package reads it; the alphabet check runs only when a caller passes
	// strict=true to Record.Validate. It never affects the hot parse path.
	Strict bool
}

// Reader is the unified input-acquisition surface. It selects its backing
// strategy based on how it was opened (OpenFile / OpenReader / OpenBytes),
// matching spec's selection rules: a path ending in ".gz" is decoded
// through a multi-member gzip stream; any other path is memory-mapped; an
// arbitrary io.Reader is always read through the streaming parser; an
// in-memory byte slice is parsed in place.
//
// Borrowed-record iteration (Records) is available only when the source is
// a memory-mapped or in-memory region. Owned-record iteration
// (OwnedRecords) is always available.
type Reader struct {
	opts ReaderOptions

	region []byte     // set when memory-mapped or in-memory; nil otherwise
	mapped mmap.MMap  // non-nil only for the memory-mapped strategy
	file   *os.File   // underlying file handle, closed by Close
	stream *StreamingParser
	closer io.Closer // additional closer (e.g. the gzip reader), or nil
}

// OpenFile opens path per the selection rules: ".gz" suffix ⇒ streaming
// gzip decode; anything else ⇒ memory-map.
func OpenFile(path string, opts ReaderOptions) (*Reader, error) {
	setSIMDDisabled(opts.DisableSIMD)

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &Reader{
			opts:   opts,
			file:   f,
			closer: gz,
			stream: NewStreamingParser(gz, opts.BufferSize, opts.Parser),
		}, nil
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() > opts.maxInputSize() {
		f.Close()
		return nil, ErrInputTooLarge
	}
	if info.Size() == 0 {
		// mmap-go rejects zero-length mappings; an empty file has no
		// records regardless, so hand back a reader over an empty region.
		return &Reader{opts: opts, file: f, region: nil}, nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Reader{opts: opts, file: f, mapped: m, region: []byte(m)}, nil
}

// OpenReader wraps an arbitrary io.Reader for streaming, owned-record-only
// iteration.
func OpenReader(src io.Reader, opts ReaderOptions) *Reader {
	setSIMDDisabled(opts.DisableSIMD)
	return &Reader{opts: opts, stream: NewStreamingParser(src, opts.BufferSize, opts.Parser)}
}

// OpenBytes wraps an in-memory byte slice as a memory-resident region,
// exposing both borrowed and owned iteration, without touching the
// filesystem.
func OpenBytes(data []byte, opts ReaderOptions) *Reader {
	setSIMDDisabled(opts.DisableSIMD)
	return &Reader{opts: opts, region: data}
}

// IsBorrowable reports whether Records (borrowed iteration) is usable.
func (r *Reader) IsBorrowable() bool {
	return r.stream == nil
}

// Records returns an in-memory Parser over the reader's region. It panics
// if the reader was not opened from a memory-mapped or in-memory source;
// callers should check IsBorrowable first.
func (r *Reader) Records() *Parser {
	if r.stream != nil {
		panic("fastqx: Records is unavailable for a streamed source; use OwnedRecords")
	}
	return NewParser(r.region)
}

// OwnedRecords returns a callback-driven iteration over every record in the
// source, regardless of backing strategy. fn is called once per record; it
// returns false to stop early. OwnedRecords returns the first error
// encountered, or nil on clean exhaustion.
func (r *Reader) OwnedRecords(fn func(OwnedRecord) (bool, error)) error {
	if r.stream != nil {
		return r.stream.Records(fn)
	}
	p := NewParser(r.region)
	for {
		rec, err := p.ParseRecord()
		if err != nil {
			if isEOF(err) {
				return nil
			}
			return err
		}
		cont, err := fn(rec.ToOwned())
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
}

// CollectParallel parses the reader's memory-mapped region across workers
// and returns every record. It returns an error if the reader is not
// backed by a memory-mapped or in-memory region.
func (r *Reader) CollectParallel(ctx context.Context, opts ParallelOptions) ([]OwnedRecord, error) {
	if r.stream != nil {
		return nil, errNotParallelizable
	}
	return CollectParallel(ctx, r.region, opts)
}

// StreamParallel is the channel-based analogue of CollectParallel.
func (r *Reader) StreamParallel(ctx context.Context, opts ParallelOptions) (<-chan OwnedRecord, <-chan error, error) {
	if r.stream != nil {
		return nil, nil, errNotParallelizable
	}
	records, errc := StreamParallel(ctx, r.region, opts)
	return records, errc, nil
}

// Close releases the reader's resources: unmapping a memory-mapped region,
// closing a gzip decoder, and closing the underlying file handle.
func (r *Reader) Close() error {
	var firstErr error
	if r.closer != nil {
		if err := r.closer.Close(); err != nil {
			firstErr = err
		}
	}
	if r.mapped != nil {
		if err := r.mapped.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
