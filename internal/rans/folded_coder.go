package rans

import (
	"github.com/Faultbox/dracodec/internal/bitio"
)

// FoldedBit32Encoder splits 32-bit values into per-position bit planes,
// each compressed by its own adaptive bit coder, plus one coder for
// standalone bits. There is no threshold and no head/tail split: every
// one of the nbits bits of a value goes through its plane's adaptive
// coder, and no bits are written as direct bits.
type FoldedBit32Encoder struct {
	planes     [32]*BitEncoder
	bitEncoder *BitEncoder
}

// NewFoldedBit32Encoder returns a cleared folded encoder.
func NewFoldedBit32Encoder() *FoldedBit32Encoder {
	f := &FoldedBit32Encoder{bitEncoder: NewBitEncoder()}
	for i := range f.planes {
		f.planes[i] = NewBitEncoder()
	}
	return f
}

// StartEncoding resets all plane coders.
func (f *FoldedBit32Encoder) StartEncoding() {
	for _, p := range f.planes {
		p.StartEncoding()
	}
	f.bitEncoder.StartEncoding()
}

// EncodeBit appends one standalone bit.
func (f *FoldedBit32Encoder) EncodeBit(bit bool) {
	f.bitEncoder.EncodeBit(bit)
}

// EncodeLeastSignificantBits32 spreads the nbits low bits of value over
// the per-position plane coders, MSB first.
func (f *FoldedBit32Encoder) EncodeLeastSignificantBits32(nbits uint32, value uint32) {
	selector := uint32(1) << (nbits - 1)
	for i := uint32(0); i < nbits; i++ {
		f.planes[i].EncodeBit(value&selector != 0)
		selector >>= 1
	}
}

// EndEncoding flushes every plane stream followed by the bit stream.
func (f *FoldedBit32Encoder) EndEncoding(buf *bitio.Encoder) error {
	for _, p := range f.planes {
		if err := p.EndEncoding(buf); err != nil {
			return err
		}
	}
	return f.bitEncoder.EndEncoding(buf)
}

// FoldedBit32Decoder mirrors FoldedBit32Encoder.
type FoldedBit32Decoder struct {
	planes     [32]*BitDecoder
	bitDecoder *BitDecoder
}

// NewFoldedBit32Decoder returns an inactive folded decoder.
func NewFoldedBit32Decoder() *FoldedBit32Decoder {
	f := &FoldedBit32Decoder{bitDecoder: NewBitDecoder()}
	for i := range f.planes {
		f.planes[i] = NewBitDecoder()
	}
	return f
}

// StartDecoding reads all plane streams followed by the bit stream.
func (f *FoldedBit32Decoder) StartDecoding(buf *bitio.Decoder) error {
	for _, p := range f.planes {
		if err := p.StartDecoding(buf); err != nil {
			return err
		}
	}
	return f.bitDecoder.StartDecoding(buf)
}

// DecodeNextBit returns the next standalone bit.
func (f *FoldedBit32Decoder) DecodeNextBit() bool {
	return f.bitDecoder.DecodeNextBit()
}

// DecodeLeastSignificantBits32 reassembles nbits bits from the planes.
func (f *FoldedBit32Decoder) DecodeLeastSignificantBits32(nbits uint32) uint32 {
	var v uint32
	for i := uint32(0); i < nbits; i++ {
		v <<= 1
		if f.planes[i].DecodeNextBit() {
			v |= 1
		}
	}
	return v
}

// EndDecoding releases all plane payloads.
func (f *FoldedBit32Decoder) EndDecoding() {
	f.bitDecoder.EndDecoding()
	for _, p := range f.planes {
		p.EndDecoding()
	}
}
