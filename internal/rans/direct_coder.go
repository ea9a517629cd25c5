package rans

import (
	"fmt"

	"github.com/Faultbox/dracodec/internal/bitio"
	"github.com/Faultbox/dracodec/internal/status"
)

// DirectBitEncoder writes fixed-width bit fields without a probability
// model. Bits are packed MSB-first into 32-bit words; the stream is a
// 32-bit byte size followed by the words.
type DirectBitEncoder struct {
	words        []uint32
	localBits    uint32
	numLocalBits uint32
}

// NewDirectBitEncoder returns a cleared direct bit encoder.
func NewDirectBitEncoder() *DirectBitEncoder {
	return &DirectBitEncoder{}
}

// StartEncoding resets all state.
func (e *DirectBitEncoder) StartEncoding() {
	e.words = e.words[:0]
	e.localBits = 0
	e.numLocalBits = 0
}

// EncodeBit appends one bit.
func (e *DirectBitEncoder) EncodeBit(bit bool) {
	if bit {
		e.localBits |= 1 << (31 - e.numLocalBits)
	}
	e.numLocalBits++
	if e.numLocalBits == 32 {
		e.words = append(e.words, e.localBits)
		e.numLocalBits = 0
		e.localBits = 0
	}
}

// EncodeLeastSignificantBits32 appends the nbits low bits of value.
func (e *DirectBitEncoder) EncodeLeastSignificantBits32(nbits uint32, value uint32) {
	remaining := 32 - e.numLocalBits
	value <<= 32 - nbits
	if nbits <= remaining {
		value >>= e.numLocalBits
		e.localBits |= value
		e.numLocalBits += nbits
		if e.numLocalBits == 32 {
			e.words = append(e.words, e.localBits)
			e.localBits = 0
			e.numLocalBits = 0
		}
	} else {
		value >>= 32 - nbits
		e.numLocalBits = nbits - remaining
		e.localBits |= value >> e.numLocalBits
		e.words = append(e.words, e.localBits)
		e.localBits = value << (32 - e.numLocalBits)
	}
}

// EndEncoding flushes the partial word and writes the stream to buf.
func (e *DirectBitEncoder) EndEncoding(buf *bitio.Encoder) error {
	e.words = append(e.words, e.localBits)
	if err := buf.PutUint32(uint32(len(e.words) * 4)); err != nil {
		return err
	}
	for _, w := range e.words {
		if err := buf.PutUint32(w); err != nil {
			return err
		}
	}
	e.StartEncoding()
	return nil
}

// DirectBitDecoder reads a DirectBitEncoder stream.
type DirectBitDecoder struct {
	words       []uint32
	pos         int
	numUsedBits uint32
}

// NewDirectBitDecoder returns an empty direct bit decoder.
func NewDirectBitDecoder() *DirectBitDecoder {
	return &DirectBitDecoder{}
}

// StartDecoding reads the size prefix and word payload from buf.
func (d *DirectBitDecoder) StartDecoding(buf *bitio.Decoder) error {
	d.words = d.words[:0]
	d.pos = 0
	d.numUsedBits = 0
	sizeInBytes, err := buf.Uint32()
	if err != nil {
		return err
	}
	if sizeInBytes == 0 || sizeInBytes&3 != 0 {
		return fmt.Errorf("%w: direct bit stream size %d", status.ErrCorruptBitstream, sizeInBytes)
	}
	if buf.Remaining() < int(sizeInBytes) {
		return fmt.Errorf("%w: truncated direct bit stream", status.ErrBufferUnderflow)
	}
	numWords := int(sizeInBytes / 4)
	for i := 0; i < numWords; i++ {
		w, err := buf.Uint32()
		if err != nil {
			return err
		}
		d.words = append(d.words, w)
	}
	return nil
}

// DecodeNextBit returns the next bit, or false past the end.
func (d *DirectBitDecoder) DecodeNextBit() bool {
	if d.pos >= len(d.words) {
		return false
	}
	bit := d.words[d.pos]&(1<<(31-d.numUsedBits)) != 0
	d.numUsedBits++
	if d.numUsedBits == 32 {
		d.pos++
		d.numUsedBits = 0
	}
	return bit
}

// DecodeLeastSignificantBits32 reads nbits bits into the low bits of the
// result.
func (d *DirectBitDecoder) DecodeLeastSignificantBits32(nbits uint32) (uint32, error) {
	remaining := 32 - d.numUsedBits
	if nbits <= remaining {
		if d.pos >= len(d.words) {
			return 0, fmt.Errorf("%w: direct bit stream exhausted", status.ErrBufferUnderflow)
		}
		v := d.words[d.pos] << d.numUsedBits >> (32 - nbits)
		d.numUsedBits += nbits
		if d.numUsedBits == 32 {
			d.pos++
			d.numUsedBits = 0
		}
		return v, nil
	}
	if d.pos+1 >= len(d.words) {
		return 0, fmt.Errorf("%w: direct bit stream exhausted", status.ErrBufferUnderflow)
	}
	valueL := d.words[d.pos] << d.numUsedBits
	d.numUsedBits = nbits - remaining
	d.pos++
	valueR := d.words[d.pos] >> (32 - d.numUsedBits)
	return valueL>>(32-d.numUsedBits-remaining) | valueR, nil
}
