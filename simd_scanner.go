package fastqx

import (
	"math/bits"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// =============================================================================
// Runtime Feature Detection
// =============================================================================
//
// The byte-scan primitives below dispatch between a word-at-a-time (SWAR:
// SIMD-within-a-register) fast path and a scalar fallback. The word path
// processes wordSize bytes per iteration using the "hasless"/"haszero" bit
// trick (Bit Twiddling Hacks, also used internally by several Go standard
// library string/bytes routines); it needs no architecture-specific
// intrinsics or assembly, so it runs on every architecture Go supports.
// useWideScan additionally gates on AMD64 having AVX2 available, matching
// the vintage of hardware the wide path is tuned for — on anything older
// the scalar loop is already fast enough relative to I/O and mmap cost.
//
// =============================================================================

// useWideScan is set once at process start and never written again.
var useWideScan = cpu.X86.HasAVX2

// simdDisabled is the runtime escape hatch ReaderOptions.DisableSIMD sets:
// every OpenFile/OpenReader/OpenBytes call stores its value here before
// constructing a parser, forcing the scalar fallback for the whole process
// while set. Unlike useWideScan it may be written many times, so opening
// readers with different DisableSIMD settings concurrently races; callers
// that need per-reader control should not share a process with a reader
// that disables it.
var simdDisabled atomic.Bool

// setSIMDDisabled implements ReaderOptions.DisableSIMD.
func setSIMDDisabled(disabled bool) {
	simdDisabled.Store(disabled)
}

const (
	wordSize      = 8 // bytes per uint64 lane
	simdMinLength = 32
)

const (
	loBits   = 0x0101010101010101
	hiBits   = 0x8080808080808080
	lowSeven = 0x7F7F7F7F7F7F7F7F
)

// broadcast replicates b into every byte lane of a uint64.
func broadcast(b byte) uint64 {
	return loBits * uint64(b)
}

// hasZeroByte reports, per byte lane of v, whether that lane is zero,
// packing the result into the high bit of each lane:
// ^(((v & 0x7F..7F) + 0x7F..7F) | v | 0x7F..7F) has the high bit of lane i
// set iff byte i of v is 0. No carry crosses a lane, so the per-lane result
// is exact and can be popcounted.
func hasZeroByte(v uint64) uint64 {
	return ^(((v & lowSeven) + lowSeven) | v | lowSeven)
}

// shouldScanWide reports whether the wide word-scanning path is worth its
// setup cost for a region of this length.
func shouldScanWide(n int) bool {
	return useWideScan && !simdDisabled.Load() && n >= simdMinLength
}

// =============================================================================
// Byte-scan primitives (spec §4.1)
// =============================================================================

// findByte returns the index of the first occurrence of target at or after
// start, or -1 if none exists. The returned index is always the least i >=
// start with region[i] == target, identical to a scalar linear scan.
func findByte(region []byte, target byte, start int) int {
	if start < 0 {
		start = 0
	}
	if start >= len(region) {
		return -1
	}
	tail := region[start:]

	if !shouldScanWide(len(tail)) {
		return scalarFindByte(tail, target, start)
	}

	pattern := broadcast(target)
	i := 0
	n := len(tail)
	for ; i+wordSize <= n; i += wordSize {
		word := loadWord(tail, i)
		if masked := hasZeroByte(word ^ pattern); masked != 0 {
			return start + i + bits.TrailingZeros64(masked)/8
		}
	}
	for ; i < n; i++ {
		if tail[i] == target {
			return start + i
		}
	}
	return -1
}

func scalarFindByte(region []byte, target byte, start int) int {
	for i, b := range region {
		if b == target {
			return start + i
		}
	}
	return -1
}

// countByte returns the number of occurrences of target in region.
// Invariant under concatenation: count(A++B, t) == count(A, t) + count(B, t).
func countByte(region []byte, target byte) int {
	if !shouldScanWide(len(region)) {
		return scalarCountByte(region, target)
	}

	pattern := broadcast(target)
	count := 0
	i := 0
	n := len(region)
	for ; i+wordSize <= n; i += wordSize {
		word := loadWord(region, i)
		count += bits.OnesCount64(hasZeroByte(word^pattern)) / 8
	}
	for ; i < n; i++ {
		if region[i] == target {
			count++
		}
	}
	return count
}

func scalarCountByte(region []byte, target byte) int {
	n := 0
	for _, b := range region {
		if b == target {
			n++
		}
	}
	return n
}

// validateASCII reports whether every byte in region is <= 127.
func validateASCII(region []byte) bool {
	if !shouldScanWide(len(region)) {
		return scalarValidateASCII(region)
	}

	i := 0
	n := len(region)
	for ; i+wordSize <= n; i += wordSize {
		if loadWord(region, i)&hiBits != 0 {
			return false
		}
	}
	for ; i < n; i++ {
		if region[i] > 127 {
			return false
		}
	}
	return true
}

func scalarValidateASCII(region []byte) bool {
	for _, b := range region {
		if b > 127 {
			return false
		}
	}
	return true
}

// findAllNewlines returns the ascending indices of every '\n' in region.
func findAllNewlines(region []byte) []int {
	if len(region) == 0 {
		return nil
	}
	positions := make([]int, 0, len(region)/64+1)
	pos := 0
	for {
		idx := findByte(region, '\n', pos)
		if idx == -1 {
			break
		}
		positions = append(positions, idx)
		pos = idx + 1
	}
	return positions
}

// loadWord reads 8 bytes from data starting at off as a little-endian
// uint64. The caller guarantees off+8 <= len(data).
func loadWord(data []byte, off int) uint64 {
	_ = data[off+7] // bounds check hint
	return uint64(data[off]) | uint64(data[off+1])<<8 | uint64(data[off+2])<<16 |
		uint64(data[off+3])<<24 | uint64(data[off+4])<<32 | uint64(data[off+5])<<40 |
		uint64(data[off+6])<<48 | uint64(data[off+7])<<56
}
