package fastqx

import (
	"context"
	"errors"
	"io"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// isEOF reports whether err is the sentinel meaning "no more records" as
// opposed to a genuine parse failure.
func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

// ParallelOptions configures the parallel driver.
type ParallelOptions struct {
	// Workers is the number of worker goroutines. 0 selects
	// runtime.GOMAXPROCS(0).
	Workers int

	// ChannelCapacity bounds the Stream surface's output channel. 0
	// selects a capacity equal to the worker count.
	ChannelCapacity int
}

func (o ParallelOptions) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (o ParallelOptions) channelCapacity(workers int) int {
	if o.ChannelCapacity > 0 {
		return o.ChannelCapacity
	}
	return workers
}

// chunk is a non-overlapping byte range of a region, guaranteed to start at
// a true record boundary (or at 0) and to contain only whole records.
type chunk struct {
	start, end int
}

// FindChunkBoundaries partitions region into at most workers chunks, each
// starting at a true record boundary: offset 0, or the least index i such
// that region[i-1] == '\n', region[i] == '@', and a trial parse starting at
// i succeeds. Candidate split points are advanced forward until such an
// index is found; the final chunk always runs to the end of region.
func FindChunkBoundaries(region []byte, workers int) []chunk {
	if len(region) == 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}

	approx := len(region) / workers
	if approx < 1 {
		approx = len(region)
	}

	var starts []int
	starts = append(starts, 0)
	for s := approx; s < len(region) && len(starts) < workers; s += approx {
		aligned := alignToRecordStart(region, s)
		if aligned >= len(region) {
			break
		}
		if aligned > starts[len(starts)-1] {
			starts = append(starts, aligned)
		}
	}

	chunks := make([]chunk, len(starts))
	for i, s := range starts {
		end := len(region)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		chunks[i] = chunk{start: s, end: end}
	}
	return chunks
}

// alignToRecordStart returns the least index i >= s with i > 0 such that
// region[i-1] == '\n', region[i] == '@', and a trial parse starting at i
// succeeds in producing at least one record. Index 0 is never returned. It
// returns len(region) if no such index exists before the end of the region.
//
// This rejects candidates where '@' is the first byte of a quality line —
// the soundness argument rests on requiring both the preceding-newline
// check and a successful trial parse, since a bare newline-then-'@' check
// alone cannot distinguish a header from a quality line that happens to
// start with '@'.
func alignToRecordStart(region []byte, s int) int {
	for i := s; i < len(region); i++ {
		if region[i] != '@' {
			continue
		}
		if i > 0 && region[i-1] != '\n' {
			continue
		}
		if i == 0 {
			continue // already covered by the first chunk's fixed start
		}
		trial := NewParser(region[i:])
		if _, err := trial.ParseRecord(); err == nil {
			return i
		}
	}
	return len(region)
}

// CollectParallel parses region's chunks concurrently and returns every
// yielded record, concatenated in chunk order (order across chunks is not
// otherwise meaningful; order within a chunk matches file order). It
// returns the first error observed from any chunk, after every worker has
// finished or failed.
func CollectParallel(ctx context.Context, region []byte, opts ParallelOptions) ([]OwnedRecord, error) {
	workers := opts.workers()
	chunks := FindChunkBoundaries(region, workers)

	results := make([][]OwnedRecord, len(chunks))
	g, ctx := errgroup.WithContext(ctx)

	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			recs, err := parseChunk(region[c.start:c.end])
			if err != nil {
				return &ChunkError{ChunkStart: int64(c.start), Err: err}
			}
			results[i] = recs
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return nil
			}
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	out := make([]OwnedRecord, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// StreamParallel parses region's chunks concurrently and delivers every
// yielded record on the returned channel, which is closed once all workers
// finish. Workers block on send when the channel is full (backpressure).
// Any chunk error is sent to the returned error channel (capacity 1) and
// causes remaining in-flight sends to stop once each worker reaches its
// next record boundary; cancel ctx to stop early.
func StreamParallel(ctx context.Context, region []byte, opts ParallelOptions) (<-chan OwnedRecord, <-chan error) {
	workers := opts.workers()
	chunks := FindChunkBoundaries(region, workers)

	records := make(chan OwnedRecord, opts.channelCapacity(workers))
	errc := make(chan error, 1)

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range chunks {
		c := c
		g.Go(func() error {
			p := NewParser(region[c.start:c.end])
			for {
				rec, err := p.ParseRecord()
				if err != nil {
					if isEOF(err) {
						return nil
					}
					return &ChunkError{ChunkStart: int64(c.start), Err: err}
				}
				select {
				case records <- rec.ToOwned():
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		})
	}

	go func() {
		err := g.Wait()
		close(records)
		if err != nil {
			errc <- err
		}
		close(errc)
	}()

	return records, errc
}

// parseChunk runs the in-memory parser to completion over region, copying
// out every record as owned.
func parseChunk(region []byte) ([]OwnedRecord, error) {
	p := NewParser(region)
	var out []OwnedRecord
	for {
		rec, err := p.ParseRecord()
		if err != nil {
			if isEOF(err) {
				return out, nil
			}
			return out, err
		}
		out = append(out, rec.ToOwned())
	}
}
