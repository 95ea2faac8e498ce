package fastqx

import "io"

// Parser is a cursor-based parser over an immutable byte region, producing
// borrowed records. The zero value is not usable; construct with NewParser.
//
// A Parser performs zero allocations in its steady state: ParseRecord
// returns slices into the region it was constructed with. It is not safe
// for concurrent use — each goroutine that wants to parse the same region
// independently should construct its own Parser.
type Parser struct {
	region []byte
	pos    int
	line   int // 1-indexed line of the next byte to be read
}

// NewParser constructs a parser positioned at the start of region.
func NewParser(region []byte) *Parser {
	return &Parser{region: region, line: 1}
}

// Pos returns the parser's current byte offset into its region.
func (p *Parser) Pos() int {
	return p.pos
}

// Region returns the byte region this parser was constructed over.
func (p *Parser) Region() []byte {
	return p.region
}

// ParseRecord advances the cursor past the next complete record and returns
// it. It returns io.EOF (with a zero Record) when no more records remain —
// including when the remaining bytes are empty or pure trailing whitespace,
// per spec §4.3's edge policies.
func (p *Parser) ParseRecord() (Record, error) {
	p.skipBlankLines()
	if p.pos >= len(p.region) {
		return Record{}, io.EOF
	}

	startLine := p.line

	if p.region[p.pos] != '@' {
		return Record{}, invalidHeaderError(startLine)
	}
	p.pos++

	id, desc, err := p.readHeaderBody()
	if err != nil {
		return Record{}, err
	}

	seq, err := p.readSequence()
	if err != nil {
		return Record{}, err
	}

	sepLine := p.line
	if err := p.readSeparator(sepLine); err != nil {
		return Record{}, err
	}

	qual, err := p.readQuality(len(seq), sepLine)
	if err != nil {
		return Record{}, err
	}

	return Record{ID: id, Desc: desc, Seq: seq, Qual: qual}, nil
}

// skipBlankLines advances pos past any run of ASCII whitespace bytes, so
// that trailing blank lines or whitespace at end-of-input are treated as
// "no more records" rather than a malformed header.
func (p *Parser) skipBlankLines() {
	for p.pos < len(p.region) {
		switch p.region[p.pos] {
		case '\n':
			p.pos++
			p.line++
		case '\r', ' ', '\t', '\v', '\f':
			p.pos++
		default:
			return
		}
	}
}

// readLine returns the bytes from pos up to (not including) the next '\n',
// with a trailing '\r' stripped, and advances pos past the '\n' (or to the
// end of the region if none remains). ok is false if pos is already at EOF.
func (p *Parser) readLine() (line []byte, ok bool) {
	if p.pos >= len(p.region) {
		return nil, false
	}
	nl := findByte(p.region, '\n', p.pos)
	var end int
	if nl == -1 {
		end = len(p.region)
	} else {
		end = nl
	}
	line = p.region[p.pos:end]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	if nl == -1 {
		p.pos = len(p.region)
	} else {
		p.pos = nl + 1
		p.line++
	}
	return line, true
}

// readHeaderBody reads the remainder of the header line (the cursor is
// positioned just past the leading '@') and splits it into id and desc on
// the first space or tab.
func (p *Parser) readHeaderBody() (id, desc []byte, err error) {
	line, ok := p.readLine()
	if !ok {
		return nil, nil, ErrUnexpectedEOF
	}
	for i, b := range line {
		if b == ' ' || b == '\t' {
			return line[:i], line[i+1:], nil
		}
	}
	return line, nil, nil
}

// peekedLine describes one physical line starting at a given offset without
// mutating parser state: its content (namely whether it is non-empty and
// what its first byte is), the offset of its first byte, and the offset at
// which the next line begins (past its '\n', or end-of-region if the line
// is unterminated).
type peekedLine struct {
	start    int
	end      int // index of '\n', or len(region) if unterminated
	nextLine int // end+1, or len(region) if unterminated
}

// peekLine describes the physical line beginning at pos without advancing
// the parser.
func (p *Parser) peekLine(pos int) peekedLine {
	nl := findByte(p.region, '\n', pos)
	if nl == -1 {
		return peekedLine{start: pos, end: len(p.region), nextLine: len(p.region)}
	}
	return peekedLine{start: pos, end: nl, nextLine: nl + 1}
}

// readSequence reads lines starting at pos until it finds a line beginning
// with '+' (the separator), which it leaves unconsumed, and returns the
// concatenation of the intervening lines' bytes: a single line loses only
// its trailing whitespace, several lines lose every whitespace byte
// (see joinLines). When the sequence spans a
// single physical line (the common case), the returned slice is a direct
// sub-slice of the region with no allocation.
func (p *Parser) readSequence() ([]byte, error) {
	start := p.pos
	lines := 0

	for {
		if p.pos >= len(p.region) {
			return nil, ErrUnexpectedEOF
		}
		ln := p.peekLine(p.pos)
		if ln.nextLine == len(p.region) && ln.end == len(p.region) {
			// Unterminated line: whether it's a sequence continuation or
			// the separator itself, there is no quality data to follow.
			return nil, ErrUnexpectedEOF
		}
		content := trimCRLF(p.region[ln.start:ln.end])
		if len(content) > 0 && content[0] == '+' {
			// seqEnd sits at the start of the separator line, i.e. just
			// past the last sequence line's terminating newline.
			seqEnd := ln.start
			if lines <= 1 {
				return trimTrailingASCIISpace(p.region[start:seqEnd]), nil
			}
			return trimTrailingASCIISpace(joinLines(p.region[start:seqEnd])), nil
		}
		lines++
		p.pos = ln.nextLine
		p.line++
	}
}

// trimTrailingASCIISpace strips any run of trailing ASCII whitespace
// (space, tab, newline, carriage return, vertical tab, form feed) from
// region, covering both the line ending left over from the read and any
// incidental trailing whitespace a sequence line may carry.
func trimTrailingASCIISpace(region []byte) []byte {
	end := len(region)
	for end > 0 && isASCIISpace(region[end-1]) {
		end--
	}
	return region[:end]
}

func isASCIISpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// trimCRLF strips a single trailing '\r' (left over from a '\n'-stripped
// line) from region, if present.
func trimCRLF(region []byte) []byte {
	if n := len(region); n > 0 && region[n-1] == '\r' {
		return region[:n-1]
	}
	return region
}

// joinLines drops every ASCII whitespace byte (line endings included) from
// a multi-line region, returning the concatenated non-whitespace bytes.
// Allocates, since a multi-line wrapped field cannot be represented as a
// single sub-slice of the region.
func joinLines(region []byte) []byte {
	out := make([]byte, 0, len(region))
	for i := 0; i < len(region); i++ {
		b := region[i]
		if isASCIISpace(b) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// readSeparator validates that the current line begins with '+' and
// consumes it.
func (p *Parser) readSeparator(line int) error {
	lineStart := p.pos
	l, ok := p.readLine()
	if !ok {
		return ErrUnexpectedEOF
	}
	if len(l) == 0 || l[0] != '+' {
		p.pos = lineStart
		return invalidSeparatorError(line)
	}
	return nil
}

// readQuality reads forward, counting non-whitespace bytes, until it has
// collected exactly want of them (possibly spanning several physical
// lines), then consumes through the next newline so the cursor rests at
// the start of the following record.
func (p *Parser) readQuality(want int, sepLine int) ([]byte, error) {
	start := p.pos
	count := 0
	i := p.pos
	n := len(p.region)

	for count < want {
		if i >= n {
			return nil, &LengthMismatchError{Line: sepLine + 1, SeqLen: want, QualLen: count}
		}
		if !isASCIISpace(p.region[i]) {
			count++
		}
		i++
	}

	qualEnd := i
	qualRaw := p.region[start:qualEnd]
	p.line += countByte(qualRaw, '\n')

	// Consume through the next newline (inclusive), or to EOF.
	nl := findByte(p.region, '\n', i)
	if nl == -1 {
		p.pos = n
	} else {
		p.pos = nl + 1
		p.line++
	}

	if len(qualRaw) == want {
		return qualRaw, nil
	}
	return joinLines(qualRaw), nil
}
