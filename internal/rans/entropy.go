package rans

import "math"

// EntropyData is an incremental Shannon entropy snapshot.
type EntropyData struct {
	EntropyNorm      float64
	NumValues        int
	MaxSymbol        int
	NumUniqueSymbols int
}

// EntropyTracker estimates the cost of symbol sequences as they grow.
// The constrained multi-parallelogram scheme uses it to pick crease
// configurations without running the full coder.
type EntropyTracker struct {
	data        EntropyData
	frequencies []int
}

// NewEntropyTracker returns an empty tracker.
func NewEntropyTracker() *EntropyTracker {
	return &EntropyTracker{}
}

// Push records symbols and returns the updated snapshot.
func (t *EntropyTracker) Push(symbols []uint32) EntropyData {
	return t.update(symbols, true)
}

// Peek returns the snapshot as if symbols were recorded, without
// mutating the tracker.
func (t *EntropyTracker) Peek(symbols []uint32) EntropyData {
	return t.update(symbols, false)
}

func (t *EntropyTracker) update(symbols []uint32, push bool) EntropyData {
	ret := t.data
	ret.NumValues += len(symbols)
	for _, sym := range symbols {
		s := int(sym)
		if len(t.frequencies) <= s {
			grown := make([]int, s+1)
			copy(grown, t.frequencies)
			t.frequencies = grown
		}
		freq := t.frequencies[s]
		var oldNorm float64
		if freq > 1 {
			oldNorm = float64(freq) * math.Log2(float64(freq))
		} else if freq == 0 {
			ret.NumUniqueSymbols++
			if s > ret.MaxSymbol {
				ret.MaxSymbol = s
			}
		}
		newFreq := freq + 1
		ret.EntropyNorm += float64(newFreq)*math.Log2(float64(newFreq)) - oldNorm
		if push {
			t.frequencies[s] = newFreq
		}
	}
	if push {
		t.data = ret
	}
	return ret
}

// NumberOfDataBits returns the estimated payload bits for a snapshot.
func NumberOfDataBits(d EntropyData) int64 {
	if d.NumValues < 2 {
		return 0
	}
	n := float64(d.NumValues)
	return int64(math.Ceil(n*math.Log2(n) - d.EntropyNorm))
}

// NumberOfRAnsTableBits returns the estimated frequency table bits for a
// snapshot.
func NumberOfRAnsTableBits(d EntropyData) int64 {
	return int64(approxFrequencyTableBits(uint32(d.MaxSymbol+1), uint32(d.NumUniqueSymbols)))
}
