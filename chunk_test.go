package fastqx

import (
	"context"
	"fmt"
	"sort"
	"testing"
)

func TestFindChunkBoundaries_AlignsToRecordStarts(t *testing.T) {
	region := []byte("@SEQ_1\nACGT\n+\nIIII\n@SEQ_2\nTGCA\n+\nJJJJ\n@SEQ_3\nGGCC\n+\nKKKK\n")
	chunks := FindChunkBoundaries(region, 3)

	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	if chunks[0].start != 0 {
		t.Errorf("first chunk should start at 0, got %d", chunks[0].start)
	}
	if chunks[len(chunks)-1].end != len(region) {
		t.Errorf("last chunk should end at region length %d, got %d", len(region), chunks[len(chunks)-1].end)
	}
	for _, c := range chunks {
		if c.start > 0 && region[c.start] != '@' {
			t.Errorf("chunk boundary %d is not aligned to a header byte", c.start)
		}
	}
}

// S6, at chunk-boundary granularity: the finder must not treat a quality
// line's leading '@' as a record start.
func TestFindChunkBoundaries_SkipsQualityAt(t *testing.T) {
	// Built so a naive split point would land inside "@III" (the quality
	// line of the first record).
	rec1 := "@SEQ_1\nACGT\n+\n@III\n"
	rec2 := "@SEQ_2\nTGCA\n+\nJJJJ\n"
	region := []byte(rec1 + rec2)

	// A split point well before the quality line's embedded '@' still
	// must not align there: the preceding-newline check alone accepts it,
	// but the trial parse starting from it fails to find a valid record
	// (it misreads rec2's header/sequence as more wrapped sequence/quality
	// with no matching length), so the finder must reject it and advance
	// to the true start of SEQ_2.
	aligned := alignToRecordStart(region, 8)
	if aligned != len(rec1) {
		t.Errorf("got aligned index %d, want %d (start of SEQ_2)", aligned, len(rec1))
	}
}

func TestCollectParallel_MatchesSequential(t *testing.T) {
	var sb []byte
	ids := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("SEQ_%d", i)
		ids = append(ids, id)
		sb = append(sb, []byte(fmt.Sprintf("@%s\nACGTACGT\n+\nIIIIIIII\n", id))...)
	}

	seq := mustParseAll(t, string(sb))

	got, err := CollectParallel(context.Background(), sb, ParallelOptions{Workers: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(seq) {
		t.Fatalf("got %d records, want %d", len(got), len(seq))
	}

	gotIDs := make([]string, len(got))
	for i, r := range got {
		gotIDs[i] = string(r.ID)
	}
	sort.Strings(gotIDs)
	sort.Strings(ids)
	for i := range ids {
		if gotIDs[i] != ids[i] {
			t.Fatalf("id set mismatch at %d: got %q, want %q", i, gotIDs[i], ids[i])
			break
		}
	}
}

func TestStreamParallel_DeliversAllRecords(t *testing.T) {
	var sb []byte
	for i := 0; i < 50; i++ {
		sb = append(sb, []byte(fmt.Sprintf("@SEQ_%d\nACGT\n+\nIIII\n", i))...)
	}

	records, errc := StreamParallel(context.Background(), sb, ParallelOptions{Workers: 4, ChannelCapacity: 2})

	count := 0
	for range records {
		count++
	}
	if err := <-errc; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 50 {
		t.Fatalf("got %d records, want 50", count)
	}
}

func TestCollectParallel_PropagatesChunkError(t *testing.T) {
	bad := []byte("not-a-fastq-record-at-all\n")
	_, err := CollectParallel(context.Background(), bad, ParallelOptions{Workers: 1})
	if err == nil {
		t.Fatal("expected an error from malformed input")
	}
}

func TestFindChunkBoundaries_EmptyRegion(t *testing.T) {
	chunks := FindChunkBoundaries(nil, 4)
	if chunks != nil {
		t.Errorf("got %v, want nil", chunks)
	}
}
