package fastqx

import (
	"bytes"
	"sync/atomic"
)

// QualityEncoding classifies the Phred offset of a quality string, detected
// from its min/max bytes per spec §3.
type QualityEncoding uint8

const (
	// Phred33 is the modern (Sanger/Illumina 1.8+) quality offset.
	Phred33 QualityEncoding = iota
	// Phred64 is the legacy Illumina 1.3-1.7 quality offset.
	Phred64
	// UnknownEncoding indicates a quality byte fell outside 0x21..=0x7E.
	UnknownEncoding
)

// Offset returns the Phred ASCII offset for the encoding (33 for Unknown).
func (e QualityEncoding) Offset() byte {
	switch e {
	case Phred64:
		return 64
	default:
		return 33
	}
}

func (e QualityEncoding) String() string {
	switch e {
	case Phred33:
		return "Phred+33"
	case Phred64:
		return "Phred+64"
	default:
		return "Unknown"
	}
}

// DetectQualityEncoding classifies qual by its min/max byte per spec §3:
// Phred+33 if min < ';', Phred+64 if min >= '@' and max > 'h', otherwise
// Phred+33; Unknown if any byte lies outside the printable ASCII range.
func DetectQualityEncoding(qual []byte) QualityEncoding {
	if len(qual) == 0 {
		return Phred33
	}
	min, max := qual[0], qual[0]
	for _, b := range qual[1:] {
		if b < min {
			min = b
		}
		if b > max {
			max = b
		}
	}
	if min < '!' || max > '~' {
		return UnknownEncoding
	}
	if min < ';' {
		return Phred33
	}
	if min >= '@' && max > 'h' {
		return Phred64
	}
	return Phred33
}

// PhredScores converts qual to integer Phred scores under encoding,
// subtracting the per-encoding offset with saturation at zero. For
// UnknownEncoding every score is 0.
func PhredScores(qual []byte, encoding QualityEncoding) []int {
	if encoding == UnknownEncoding {
		return make([]int, len(qual))
	}
	offset := int(encoding.Offset())
	scores := make([]int, len(qual))
	for i, q := range qual {
		v := int(q) - offset
		if v < 0 {
			v = 0
		}
		scores[i] = v
	}
	return scores
}

// Record is a borrowed FASTQ record: four sub-ranges of a backing byte
// region, valid only while that region is alive. The zero value is not
// meaningful; construct with NewRecord, via a Parser, or with
// OwnedRecord.AsRecord (a StreamingParser yields OwnedRecords).
//
// Quality-encoding detection is cached lazily. The cache is a plain field,
// not synchronized: a Record must not be shared across goroutines while one
// of them may call QualityEncoding or MeanQuality for the first time. Since
// QualityEncoding is a pure function of Qual, concurrent callers that each
// want their own cache can simply call DetectQualityEncoding directly.
type Record struct {
	ID   []byte
	Desc []byte // nil if the header had no space/tab-separated description
	Seq  []byte
	Qual []byte

	encodingSet bool
	encoding    QualityEncoding
}

// NewRecord constructs a borrowed record from its four fields. desc may be
// nil.
func NewRecord(id, desc, seq, qual []byte) Record {
	return Record{ID: id, Desc: desc, Seq: seq, Qual: qual}
}

// Len returns len(Seq) (== len(Qual) for any record produced by this
// package's parsers).
func (r *Record) Len() int {
	return len(r.Seq)
}

// IsEmpty reports whether the record's sequence is zero-length.
func (r *Record) IsEmpty() bool {
	return len(r.Seq) == 0
}

// QualityEncoding returns the cached (or newly detected) quality encoding
// for this record's Qual field.
func (r *Record) QualityEncoding() QualityEncoding {
	if !r.encodingSet {
		r.encoding = DetectQualityEncoding(r.Qual)
		r.encodingSet = true
	}
	return r.encoding
}

// PhredScores materializes integer Phred scores for this record's quality
// string under its detected encoding.
func (r *Record) PhredScores() []int {
	return PhredScores(r.Qual, r.QualityEncoding())
}

// MeanQuality returns the arithmetic mean of this record's Phred scores, or
// 0 for an empty quality string.
func (r *Record) MeanQuality() float64 {
	scores := r.PhredScores()
	if len(scores) == 0 {
		return 0
	}
	var sum int
	for _, s := range scores {
		sum += s
	}
	return float64(sum) / float64(len(scores))
}

var strictBases = [256]bool{
	'A': true, 'C': true, 'G': true, 'T': true, 'N': true,
	'a': true, 'c': true, 'g': true, 't': true, 'n': true,
}

// Validate checks len(Seq) == len(Qual), that every Qual byte lies in
// 0x21..=0x7E, and — when strict is true — that every Seq byte is one of
// {A,C,G,T,N,a,c,g,t,n}. It is never called by the parser itself; strict
// mode is opt-in per spec §7.
func (r *Record) Validate(strict bool) error {
	if len(r.Seq) != len(r.Qual) {
		return &LengthMismatchError{SeqLen: len(r.Seq), QualLen: len(r.Qual)}
	}
	if strict {
		for _, b := range r.Seq {
			if !strictBases[b] {
				return &ParseError{Kind: "sequence", Err: ErrInvalidBase}
			}
		}
	}
	for _, b := range r.Qual {
		if b < '!' || b > '~' {
			return &ParseError{Kind: "quality", Err: ErrInvalidQuality}
		}
	}
	return nil
}

// AppendTo appends this record's canonical FASTQ text to dst and returns the
// extended slice: "@id[ desc]\nseq\n+\nqual" with no trailing newline (per
// spec §4.2 — callers writing multiple records add their own separators).
func (r *Record) AppendTo(dst []byte) []byte {
	dst = append(dst, '@')
	dst = append(dst, r.ID...)
	if r.Desc != nil {
		dst = append(dst, ' ')
		dst = append(dst, r.Desc...)
	}
	dst = append(dst, '\n')
	dst = append(dst, r.Seq...)
	dst = append(dst, '\n', '+', '\n')
	dst = append(dst, r.Qual...)
	return dst
}

// Bytes returns the record formatted as FASTQ text (see AppendTo).
func (r *Record) Bytes() []byte {
	estimate := len(r.ID) + len(r.Desc) + len(r.Seq) + len(r.Qual) + 8
	return r.AppendTo(make([]byte, 0, estimate))
}

func (r *Record) String() string {
	return string(r.Bytes())
}

// Equal reports whether r and other have byte-identical ID, Desc, Seq, and
// Qual fields. A nil Desc is distinct from an empty non-nil Desc.
func (r *Record) Equal(other *Record) bool {
	if (r.Desc == nil) != (other.Desc == nil) {
		return false
	}
	return bytes.Equal(r.ID, other.ID) &&
		bytes.Equal(r.Desc, other.Desc) &&
		bytes.Equal(r.Seq, other.Seq) &&
		bytes.Equal(r.Qual, other.Qual)
}

// ToOwned copies r's fields into a new OwnedRecord, safe to retain after the
// backing byte region is freed or reused.
func (r *Record) ToOwned() OwnedRecord {
	o := OwnedRecord{
		ID:   append([]byte(nil), r.ID...),
		Seq:  append([]byte(nil), r.Seq...),
		Qual: append([]byte(nil), r.Qual...),
	}
	if r.Desc != nil {
		o.Desc = append([]byte(nil), r.Desc...)
	}
	return o
}

// OwnedRecord is a FASTQ record whose four fields are independent owned
// byte buffers, safe to retain after the region it was parsed from is
// freed, compacted (streaming), or handed to another goroutine (parallel
// collection/channel transport).
type OwnedRecord struct {
	ID   []byte
	Desc []byte
	Seq  []byte
	Qual []byte

	encodingOnce atomic.Bool
	encoding     QualityEncoding
}

// AsRecord returns a borrowed Record view over o's buffers. The returned
// Record is valid for as long as o is not mutated or garbage-collected.
func (o *OwnedRecord) AsRecord() Record {
	return Record{ID: o.ID, Desc: o.Desc, Seq: o.Seq, Qual: o.Qual}
}

// Len returns len(Seq).
func (o *OwnedRecord) Len() int {
	return len(o.Seq)
}

// QualityEncoding returns the cached (or newly detected) quality encoding.
// Safe for concurrent calls: encoding is a pure function of Qual, so a
// benign race on first computation converges to the same value; the
// write-once atomic only avoids repeating the scan on the common path.
func (o *OwnedRecord) QualityEncoding() QualityEncoding {
	if !o.encodingOnce.Load() {
		enc := DetectQualityEncoding(o.Qual)
		o.encoding = enc
		o.encodingOnce.Store(true)
		return enc
	}
	return o.encoding
}

// MeanQuality returns the arithmetic mean Phred score, or 0 if empty.
func (o *OwnedRecord) MeanQuality() float64 {
	scores := PhredScores(o.Qual, o.QualityEncoding())
	if len(scores) == 0 {
		return 0
	}
	var sum int
	for _, s := range scores {
		sum += s
	}
	return float64(sum) / float64(len(scores))
}

// Validate delegates to Record.Validate over a borrowed view of o.
func (o *OwnedRecord) Validate(strict bool) error {
	r := o.AsRecord()
	return r.Validate(strict)
}

// Bytes formats o as FASTQ text; see Record.AppendTo.
func (o *OwnedRecord) Bytes() []byte {
	r := o.AsRecord()
	return r.Bytes()
}

func (o *OwnedRecord) String() string {
	return string(o.Bytes())
}
