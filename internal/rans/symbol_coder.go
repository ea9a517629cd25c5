package rans

import (
	"fmt"
	"sort"

	"github.com/Faultbox/dracodec/internal/bitio"
	"github.com/Faultbox/dracodec/internal/status"
)

// ransSym is one entry of the normalized frequency table.
type ransSym struct {
	prob    uint32
	cumProb uint32
}

// precisionForBitLength maps the bit length of the unique-symbol count to
// the rANS precision in bits, clamped to [12, 20].
func precisionForBitLength(symbolsBitLength uint32) uint32 {
	prec := 3 * symbolsBitLength / 2
	if prec < 12 {
		return 12
	}
	if prec > 20 {
		return 20
	}
	return prec
}

// approxFrequencyTableBits estimates the serialized frequency table size.
func approxFrequencyTableBits(maxValue, numUniqueSymbols uint32) uint64 {
	var diff uint32
	if maxValue >= numUniqueSymbols {
		diff = maxValue - numUniqueSymbols
	}
	zeroBits := 8 * (uint64(numUniqueSymbols) + uint64(diff)/64)
	return 8*uint64(numUniqueSymbols) + zeroBits
}

// SymbolEncoder encodes a symbol sequence with static frequencies.
type SymbolEncoder struct {
	ans           coder
	table         []ransSym
	numSymbols    int
	precision     uint32
	precisionBits uint32
	lBase         uint32
}

// NewSymbolEncoder builds the normalized frequency table for the given
// precision and writes it to buf. Frequencies are normalized to sum
// exactly to 2^precisionBits; the rounding residue goes to the
// largest-count symbol (ties broken by the lowest symbol id).
func NewSymbolEncoder(precisionBits uint32, frequencies []uint64, buf *bitio.Encoder) (*SymbolEncoder, error) {
	e := &SymbolEncoder{
		precisionBits: precisionBits,
		precision:     1 << precisionBits,
	}
	e.lBase = e.precision * 4

	numSymbols := 0
	var totalFreq uint64
	for i, f := range frequencies {
		totalFreq += f
		if f > 0 {
			numSymbols = i + 1
		}
	}
	if totalFreq == 0 {
		return nil, fmt.Errorf("%w: empty frequency table", status.ErrInvalidParameter)
	}
	e.numSymbols = numSymbols
	e.table = make([]ransSym, numSymbols)

	totalFreqF := float64(totalFreq)
	precisionF := float64(e.precision)
	var totalProb uint32
	for i := 0; i < numSymbols; i++ {
		freq := frequencies[i]
		prob := uint32(float64(freq)/totalFreqF*precisionF + 0.5)
		if prob == 0 && freq > 0 {
			prob = 1
		}
		e.table[i].prob = prob
		totalProb += prob
	}

	if totalProb != e.precision {
		sorted := make([]int, numSymbols)
		for i := range sorted {
			sorted[i] = i
		}
		// Ascending by probability; equal counts ordered by descending id
		// so the final entry is the largest count with the lowest id.
		sort.SliceStable(sorted, func(a, b int) bool {
			pa, pb := e.table[sorted[a]].prob, e.table[sorted[b]].prob
			if pa != pb {
				return pa < pb
			}
			return sorted[a] > sorted[b]
		})
		if totalProb < e.precision {
			e.table[sorted[numSymbols-1]].prob += e.precision - totalProb
		} else {
			errTotal := int32(totalProb) - int32(e.precision)
			for errTotal > 0 {
				relError := precisionF / float64(totalProb)
				adjusted := false
				for j := numSymbols - 1; j > 0; j-- {
					id := sorted[j]
					if e.table[id].prob <= 1 {
						if j == numSymbols-1 {
							return nil, fmt.Errorf("%w: cannot normalize frequency table", status.ErrInternal)
						}
						break
					}
					newProb := int32(relError * float64(e.table[id].prob))
					fix := int32(e.table[id].prob) - newProb
					if fix == 0 {
						fix = 1
					}
					if fix >= int32(e.table[id].prob) {
						fix = int32(e.table[id].prob) - 1
					}
					if fix > errTotal {
						fix = errTotal
					}
					e.table[id].prob -= uint32(fix)
					totalProb -= uint32(fix)
					errTotal -= fix
					adjusted = true
					if totalProb == e.precision {
						break
					}
				}
				if !adjusted {
					return nil, fmt.Errorf("%w: cannot normalize frequency table", status.ErrInternal)
				}
			}
		}
	}

	var cum uint32
	for i := 0; i < numSymbols; i++ {
		e.table[i].cumProb = cum
		cum += e.table[i].prob
	}
	if cum != e.precision {
		return nil, fmt.Errorf("%w: frequency table sums to %d, want %d", status.ErrInternal, cum, e.precision)
	}

	if err := e.writeTable(buf); err != nil {
		return nil, err
	}
	return e, nil
}

// writeTable serializes the frequency table: per symbol one byte holding
// the low 6 probability bits and a 2-bit extra-byte count, or a
// run-length of zero-frequency symbols (mode 3).
func (e *SymbolEncoder) writeTable(buf *bitio.Encoder) error {
	if err := buf.PutVarint(uint64(e.numSymbols)); err != nil {
		return err
	}
	for i := 0; i < e.numSymbols; i++ {
		prob := e.table[i].prob
		if prob == 0 {
			offset := 0
			for offset < (1<<6)-1 {
				if i+offset+1 >= e.numSymbols {
					break
				}
				if e.table[i+offset+1].prob > 0 {
					break
				}
				offset++
			}
			if err := buf.PutUint8(uint8(offset)<<2 | 3); err != nil {
				return err
			}
			i += offset
			continue
		}
		extra := 0
		if prob >= 1<<6 {
			extra++
			if prob >= 1<<14 {
				extra++
				if prob >= 1<<22 {
					return fmt.Errorf("%w: symbol probability overflow", status.ErrInternal)
				}
			}
		}
		if err := buf.PutUint8(uint8(prob)<<2 | uint8(extra)); err != nil {
			return err
		}
		for b := 0; b < extra; b++ {
			if err := buf.PutUint8(uint8(prob >> uint(8*(b+1)-2))); err != nil {
				return err
			}
		}
	}
	return nil
}

// StartEncoding resets the rANS state.
func (e *SymbolEncoder) StartEncoding() {
	e.ans.writeInit(e.lBase)
}

// EncodeSymbol pushes one symbol. Symbols must be fed in reverse order.
func (e *SymbolEncoder) EncodeSymbol(sym uint32) error {
	if int(sym) >= e.numSymbols {
		return fmt.Errorf("%w: symbol %d outside alphabet of %d", status.ErrInternal, sym, e.numSymbols)
	}
	s := e.table[sym]
	p := s.prob
	for e.ans.state >= e.lBase/e.precision*ansIOBase*p {
		e.ans.buf = append(e.ans.buf, byte(e.ans.state%ansIOBase))
		e.ans.state /= ansIOBase
	}
	e.ans.state = e.ans.state/p*e.precision + e.ans.state%p + s.cumProb
	return nil
}

// EndEncoding flushes the state and writes the size-prefixed payload.
func (e *SymbolEncoder) EndEncoding(buf *bitio.Encoder) error {
	if _, err := e.ans.writeEnd(); err != nil {
		return err
	}
	if err := buf.PutVarint(uint64(len(e.ans.buf))); err != nil {
		return err
	}
	return buf.PutBytes(e.ans.buf)
}

// SymbolDecoder decodes a symbol sequence produced by SymbolEncoder.
type SymbolDecoder struct {
	ans           decoder
	table         []ransSym
	lut           []uint32
	numSymbols    int
	precision     uint32
	precisionBits uint32
	lBase         uint32
}

// NewSymbolDecoder reads the frequency table from buf.
func NewSymbolDecoder(precisionBits uint32, buf *bitio.Decoder) (*SymbolDecoder, error) {
	d := &SymbolDecoder{
		precisionBits: precisionBits,
		precision:     1 << precisionBits,
	}
	d.lBase = d.precision * 4
	if err := d.readTable(buf); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *SymbolDecoder) readTable(buf *bitio.Decoder) error {
	n, err := buf.Varint()
	if err != nil {
		return err
	}
	if n > uint64(d.precision) {
		return fmt.Errorf("%w: alphabet size %d exceeds precision", status.ErrCorruptBitstream, n)
	}
	d.numSymbols = int(n)
	if d.numSymbols == 0 {
		return nil
	}
	d.table = make([]ransSym, d.numSymbols)

	for i := 0; i < d.numSymbols; i++ {
		b, err := buf.Uint8()
		if err != nil {
			return err
		}
		mode := b & 3
		if mode == 3 {
			offset := int(b >> 2)
			if i+offset >= d.numSymbols {
				return fmt.Errorf("%w: zero run past table end", status.ErrCorruptBitstream)
			}
			i += offset
			continue
		}
		prob := uint32(b >> 2)
		for x := 0; x < int(mode); x++ {
			extra, err := buf.Uint8()
			if err != nil {
				return err
			}
			prob |= uint32(extra) << uint(8*(x+1)-2)
		}
		d.table[i].prob = prob
	}

	d.lut = make([]uint32, d.precision)
	var cum uint32
	for i := 0; i < d.numSymbols; i++ {
		prob := d.table[i].prob
		d.table[i].cumProb = cum
		end := cum + prob
		if end > d.precision {
			return fmt.Errorf("%w: frequency table exceeds precision", status.ErrCorruptBitstream)
		}
		for j := cum; j < end; j++ {
			d.lut[j] = uint32(i)
		}
		cum = end
	}
	if cum != d.precision {
		return fmt.Errorf("%w: frequency table sums to %d, want %d", status.ErrCorruptBitstream, cum, d.precision)
	}
	return nil
}

// StartDecoding consumes the size-prefixed rANS payload.
func (d *SymbolDecoder) StartDecoding(buf *bitio.Decoder) error {
	size, err := buf.Varint()
	if err != nil {
		return err
	}
	if d.numSymbols <= 1 {
		// Degenerate alphabet: the payload still has to be skipped.
		return buf.Advance(int(size))
	}
	data, err := buf.Slice(int(size))
	if err != nil {
		return err
	}
	return d.ans.readInit(data, d.lBase)
}

// DecodeSymbol pops the next symbol in forward order.
func (d *SymbolDecoder) DecodeSymbol() uint32 {
	if d.numSymbols <= 1 {
		return 0
	}
	d.ans.normalize()
	quo := d.ans.state >> d.precisionBits
	rem := d.ans.state & (d.precision - 1)
	id := d.lut[rem]
	s := d.table[id]
	d.ans.state = quo*s.prob + rem - s.cumProb
	return id
}
