package fastqx

import (
	"errors"
	"io"
)

// DefaultBufferSize is the initial size of a StreamingParser's sliding
// window.
const DefaultBufferSize = 64 * 1024

// StreamingParser wraps an io.Reader behind a growable sliding window and
// repeatedly feeds the in-memory Parser, copying each parsed record out as
// an OwnedRecord before the window compacts or grows. It is the only way
// to parse a source that is not already a fully materialized byte region.
//
// Not safe for concurrent use.
type StreamingParser struct {
	src  io.Reader
	opts ParserOptions

	buf  []byte
	pos  int // start of unconsumed content within buf
	cap  int // end of valid content within buf
	eof  bool
}

// NewStreamingParser constructs a streaming parser reading from src with an
// initial window of bufferSize bytes (DefaultBufferSize if <= 0).
func NewStreamingParser(src io.Reader, bufferSize int, opts ParserOptions) *StreamingParser {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &StreamingParser{
		src:  src,
		opts: opts,
		buf:  make([]byte, bufferSize),
	}
}

// ParseNext returns the next record as an OwnedRecord, io.EOF when the
// source is exhausted with no partial record left, or an error — including
// ErrUnexpectedEOF if the source ends mid-record before the quality line, or
// *LengthMismatchError if it ends inside the quality string.
func (s *StreamingParser) ParseNext() (OwnedRecord, error) {
	for {
		window := s.buf[s.pos:s.cap]
		p := &Parser{region: window, line: 1}

		rec, err := p.ParseRecord()
		switch {
		case err == nil:
			s.pos += p.Pos()
			return rec.ToOwned(), nil

		case err == io.EOF:
			if s.eof {
				return OwnedRecord{}, io.EOF
			}
			if err := s.fill(); err != nil {
				return OwnedRecord{}, err
			}
			continue

		case straddlesWindow(err):
			// The parser ran out of region bytes before it could finish the
			// record. That's ambiguous from inside a single window: it may
			// just be the sliding window's edge, with the rest of the
			// record sitting in the source waiting to be read. Only once
			// the source itself is exhausted does the error become final.
			if s.eof {
				return OwnedRecord{}, err
			}
			if ferr := s.fill(); ferr != nil {
				return OwnedRecord{}, ferr
			}
			continue

		default:
			return OwnedRecord{}, err
		}
	}
}

// straddlesWindow reports whether err indicates the parser ran off the end
// of its region before finishing a record — ErrUnexpectedEOF (header,
// sequence, or separator truncated) or *LengthMismatchError (quality
// truncated; readQuality has no way to tell a window edge from true EOF, so
// it always reports the shortfall this way and leaves the distinction to
// the caller).
func straddlesWindow(err error) bool {
	if errors.Is(err, ErrUnexpectedEOF) {
		return true
	}
	var lm *LengthMismatchError
	return errors.As(err, &lm)
}

// fill compacts the window (moving unconsumed bytes to the front), growing
// the buffer if it is already full, then reads more bytes from the source.
// It sets s.eof once the source reports io.EOF, but still returns nil for
// that call so the caller retries the parse against whatever was read.
func (s *StreamingParser) fill() error {
	if s.eof {
		return nil
	}

	if s.pos > 0 {
		n := copy(s.buf, s.buf[s.pos:s.cap])
		s.cap = n
		s.pos = 0
	}

	if s.cap == len(s.buf) {
		grown := make([]byte, len(s.buf)*2)
		copy(grown, s.buf[:s.cap])
		s.buf = grown
	}

	n, err := s.src.Read(s.buf[s.cap:])
	s.cap += n
	if err != nil {
		if err == io.EOF {
			s.eof = true
			return nil
		}
		return err
	}
	if n == 0 {
		// A Reader that returns (0, nil) repeatedly would otherwise spin
		// forever, so a single (0, nil) read is treated as end of input: the
		// caller's next parse attempt sees s.eof set and any error it gets
		// is final.
		s.eof = true
	}
	return nil
}

// Records returns an iterator-style callback loop convenience: it calls fn
// for every record until the source is exhausted or fn returns false or an
// error occurs, then returns that error (nil on clean exhaustion).
func (s *StreamingParser) Records(fn func(OwnedRecord) (bool, error)) error {
	for {
		rec, err := s.ParseNext()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		cont, err := fn(rec)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
}
