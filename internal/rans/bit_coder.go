package rans

import (
	"fmt"
	"math/bits"

	"github.com/Faultbox/dracodec/internal/bitio"
	"github.com/Faultbox/dracodec/internal/status"
)

// BitEncoder buffers individual bits and entropy-codes them with a single
// probability estimated from the observed zero/one counts. The stream is
// self-contained: an 8-bit probability, a varint payload size and the
// rANS bytes.
type BitEncoder struct {
	bitCounts    [2]uint64
	words        []uint32
	localBits    uint32
	numLocalBits uint32
}

// NewBitEncoder returns a cleared bit encoder.
func NewBitEncoder() *BitEncoder {
	return &BitEncoder{}
}

// StartEncoding resets all state.
func (e *BitEncoder) StartEncoding() {
	e.bitCounts = [2]uint64{}
	e.words = e.words[:0]
	e.localBits = 0
	e.numLocalBits = 0
}

// EncodeBit appends one bit.
func (e *BitEncoder) EncodeBit(bit bool) {
	if bit {
		e.bitCounts[1]++
		e.localBits |= 1 << e.numLocalBits
	} else {
		e.bitCounts[0]++
	}
	e.numLocalBits++
	if e.numLocalBits == 32 {
		e.words = append(e.words, e.localBits)
		e.numLocalBits = 0
		e.localBits = 0
	}
}

// EncodeLeastSignificantBits32 appends the nbits low bits of value,
// most significant of those first.
func (e *BitEncoder) EncodeLeastSignificantBits32(nbits uint32, value uint32) {
	reversed := bits.Reverse32(value) >> (32 - nbits)
	ones := uint32(bits.OnesCount32(reversed))
	e.bitCounts[0] += uint64(nbits - ones)
	e.bitCounts[1] += uint64(ones)

	remaining := 32 - e.numLocalBits
	if nbits <= remaining {
		e.localBits |= reversed << e.numLocalBits
		e.numLocalBits += nbits
		if e.numLocalBits == 32 {
			e.words = append(e.words, e.localBits)
			e.localBits = 0
			e.numLocalBits = 0
		}
	} else {
		e.localBits |= reversed << e.numLocalBits
		e.words = append(e.words, e.localBits)
		e.localBits = reversed >> remaining
		e.numLocalBits = nbits - remaining
	}
}

// EndEncoding estimates the zero probability, rANS-codes the buffered
// bits in reverse and writes the stream to buf.
func (e *BitEncoder) EndEncoding(buf *bitio.Encoder) error {
	total := e.bitCounts[0] + e.bitCounts[1]
	if total == 0 {
		total = 1
	}
	zeroProbRaw := uint32(float64(e.bitCounts[0])/float64(total)*256.0 + 0.5)
	zeroProb := uint8(255)
	if zeroProbRaw < 255 {
		zeroProb = uint8(zeroProbRaw)
	}
	if zeroProb == 0 {
		zeroProb = 1
	}

	var ans coder
	ans.writeInit(ansLBase)
	for i := int(e.numLocalBits) - 1; i >= 0; i-- {
		ans.rabsWrite((e.localBits>>uint(i))&1 != 0, zeroProb)
	}
	for w := len(e.words) - 1; w >= 0; w-- {
		word := e.words[w]
		for i := 31; i >= 0; i-- {
			ans.rabsWrite((word>>uint(i))&1 != 0, zeroProb)
		}
	}
	if _, err := ans.writeEnd(); err != nil {
		return err
	}

	if err := buf.PutUint8(zeroProb); err != nil {
		return err
	}
	if err := buf.PutVarint(uint64(len(ans.buf))); err != nil {
		return err
	}
	return buf.PutBytes(ans.buf)
}

// BitDecoder decodes a BitEncoder stream.
type BitDecoder struct {
	ans      decoder
	probZero uint8
	active   bool
}

// NewBitDecoder returns an inactive bit decoder.
func NewBitDecoder() *BitDecoder {
	return &BitDecoder{}
}

// StartDecoding reads the probability, size and payload from buf.
func (d *BitDecoder) StartDecoding(buf *bitio.Decoder) error {
	d.active = false
	prob, err := buf.Uint8()
	if err != nil {
		return err
	}
	d.probZero = prob
	size, err := buf.Varint()
	if err != nil {
		return err
	}
	data, err := buf.Slice(int(size))
	if err != nil {
		return err
	}
	if err := d.ans.readInit(data, ansLBase); err != nil {
		return fmt.Errorf("%w: rANS bit stream", status.ErrCorruptBitstream)
	}
	d.active = true
	return nil
}

// DecodeNextBit returns the next bit, or false once the stream ends.
func (d *BitDecoder) DecodeNextBit() bool {
	if !d.active {
		return false
	}
	return d.ans.rabsRead(d.probZero)
}

// DecodeLeastSignificantBits32 reads nbits bits, MSB first, matching
// EncodeLeastSignificantBits32.
func (d *BitDecoder) DecodeLeastSignificantBits32(nbits uint32) uint32 {
	var v uint32
	for i := uint32(0); i < nbits; i++ {
		v <<= 1
		if d.DecodeNextBit() {
			v |= 1
		}
	}
	return v
}

// EndDecoding releases the borrowed payload.
func (d *BitDecoder) EndDecoding() {
	d.active = false
}
