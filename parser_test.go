package fastqx

import (
	"errors"
	"io"
	"testing"
)

func mustParseAll(t *testing.T, input string) []Record {
	t.Helper()
	p := NewParser([]byte(input))
	var recs []Record
	for {
		rec, err := p.ParseRecord()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected parse error: %v", err)
		}
		recs = append(recs, rec)
	}
	return recs
}

// S1
func TestParser_TwoRecords(t *testing.T) {
	input := "@SEQ_1\nACGT\n+\nIIII\n@SEQ_2\nTGCA\n+\nJJJJ\n"
	recs := mustParseAll(t, input)
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	checkField(t, "id[0]", recs[0].ID, "SEQ_1")
	checkField(t, "seq[0]", recs[0].Seq, "ACGT")
	checkField(t, "qual[0]", recs[0].Qual, "IIII")
	if recs[0].Desc != nil {
		t.Errorf("desc[0] = %q, want nil", recs[0].Desc)
	}
	checkField(t, "id[1]", recs[1].ID, "SEQ_2")
	checkField(t, "seq[1]", recs[1].Seq, "TGCA")
	checkField(t, "qual[1]", recs[1].Qual, "JJJJ")
}

// S2
func TestParser_HeaderWithDescription(t *testing.T) {
	input := "@SEQ_1 some description\nACGT\n+\nIIII\n"
	recs := mustParseAll(t, input)
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	checkField(t, "id", recs[0].ID, "SEQ_1")
	checkField(t, "desc", recs[0].Desc, "some description")
}

// S3
func TestParser_CRLF(t *testing.T) {
	input := "@SEQ_1\r\nACGT\r\n+\r\nIIII\r\n"
	recs := mustParseAll(t, input)
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	checkField(t, "id", recs[0].ID, "SEQ_1")
	checkField(t, "seq", recs[0].Seq, "ACGT")
	checkField(t, "qual", recs[0].Qual, "IIII")
}

// S4
func TestParser_MissingHeader(t *testing.T) {
	input := "SEQ_1\nACGT\n+\nIIII\n"
	p := NewParser([]byte(input))
	_, err := p.ParseRecord()
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want *ParseError", err)
	}
	if pe.Kind != "header" || pe.Line != 1 {
		t.Errorf("got Kind=%q Line=%d, want Kind=header Line=1", pe.Kind, pe.Line)
	}
}

// S5
func TestParser_LengthMismatch(t *testing.T) {
	input := "@SEQ_1\nACGT\n+\nIII\n"
	p := NewParser([]byte(input))
	_, err := p.ParseRecord()
	var lm *LengthMismatchError
	if !errors.As(err, &lm) {
		t.Fatalf("got %v, want *LengthMismatchError", err)
	}
	if lm.SeqLen != 4 || lm.QualLen != 3 {
		t.Errorf("got seq=%d qual=%d, want seq=4 qual=3", lm.SeqLen, lm.QualLen)
	}
}

// S6
func TestParser_QualityLineStartingWithAt(t *testing.T) {
	input := "@SEQ_1\nACGT\n+\n@III\n@SEQ_2\nTGCA\n+\nJJJJ\n"
	recs := mustParseAll(t, input)
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	checkField(t, "qual[0]", recs[0].Qual, "@III")
	checkField(t, "id[1]", recs[1].ID, "SEQ_2")
}

func TestParser_TabSeparatedHeader(t *testing.T) {
	input := "@SEQ_1\tdesc\nACGT\n+\nIIII\n"
	recs := mustParseAll(t, input)
	checkField(t, "id", recs[0].ID, "SEQ_1")
	checkField(t, "desc", recs[0].Desc, "desc")
}

func TestParser_EmptyInput(t *testing.T) {
	p := NewParser(nil)
	_, err := p.ParseRecord()
	if err != io.EOF {
		t.Fatalf("got %v, want io.EOF", err)
	}
}

func TestParser_TrailingBlankLines(t *testing.T) {
	input := "@SEQ_1\nACGT\n+\nIIII\n\n\n"
	recs := mustParseAll(t, input)
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
}

func TestParser_EmptySequenceIsValid(t *testing.T) {
	input := "@SEQ_1\n\n+\n\n"
	recs := mustParseAll(t, input)
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0].Len() != 0 {
		t.Errorf("got len %d, want 0", recs[0].Len())
	}
}

func TestParser_WrappedSequence(t *testing.T) {
	input := "@SEQ_1\nACGT\nACGT\n+\nIIIIIIII\n"
	recs := mustParseAll(t, input)
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	checkField(t, "seq", recs[0].Seq, "ACGTACGT")
}

func TestParser_TruncatedMidRecord(t *testing.T) {
	input := "@SEQ_1\nACGT\n+\nII"
	p := NewParser([]byte(input))
	_, err := p.ParseRecord()
	var lm *LengthMismatchError
	if !errors.As(err, &lm) {
		t.Fatalf("got %v, want *LengthMismatchError", err)
	}
}

func TestParser_TruncatedBeforeSeparator(t *testing.T) {
	input := "@SEQ_1\nACGT\n"
	p := NewParser([]byte(input))
	_, err := p.ParseRecord()
	if !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("got %v, want ErrUnexpectedEOF", err)
	}
}

// readSequence's lookahead only stops on a line starting with '+', so a
// malformed separator is indistinguishable from sequence wrapping through
// ParseRecord; readSeparator's own rejection path is exercised directly.
func TestParser_ReadSeparator_RejectsNonPlus(t *testing.T) {
	p := &Parser{region: []byte("-\nIIII\n"), line: 1}
	err := p.readSeparator(1)
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Kind != "separator" {
		t.Fatalf("got %v, want separator ParseError", err)
	}
}

func TestParser_TrailingWhitespaceStripped(t *testing.T) {
	input := "@SEQ_1\nACGT \t\n+\nIIII\n"
	recs := mustParseAll(t, input)
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	checkField(t, "seq", recs[0].Seq, "ACGT")
}

func TestParser_RepeatedRun_Deterministic(t *testing.T) {
	input := "@SEQ_1\nACGT\n+\nIIII\n@SEQ_2\nTGCA\n+\nJJJJ\n"
	a := mustParseAll(t, input)
	b := mustParseAll(t, input)
	if len(a) != len(b) {
		t.Fatalf("got %d vs %d records", len(a), len(b))
	}
	for i := range a {
		if !a[i].Equal(&b[i]) {
			t.Errorf("record %d differs between runs", i)
		}
	}
}

func checkField(t *testing.T, name string, got []byte, want string) {
	t.Helper()
	if string(got) != want {
		t.Errorf("%s = %q, want %q", name, got, want)
	}
}
