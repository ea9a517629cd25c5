package rans

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/Faultbox/dracodec/internal/bitio"
	"github.com/Faultbox/dracodec/internal/status"
)

// Symbol stream coding schemes.
const (
	symbolSchemeTagged = 0
	symbolSchemeRaw    = 1

	maxRawEncodingBitLength = 18
)

// EncodeSymbols compresses a sequence of unsigned symbols. Values are
// grouped by numComponents; the encoder picks the tagged or raw scheme by
// estimated size and records the choice in a leading byte.
func EncodeSymbols(symbols []uint32, numComponents int, buf *bitio.Encoder) error {
	if len(symbols) == 0 {
		return nil
	}
	if numComponents <= 0 {
		numComponents = 1
	}

	bitLengths := make([]uint32, 0, len(symbols)/numComponents+1)
	var maxValue uint32
	for i := 0; i < len(symbols); i += numComponents {
		end := i + numComponents
		if end > len(symbols) {
			end = len(symbols)
		}
		var maxComponent uint32
		for _, v := range symbols[i:end] {
			if v > maxComponent {
				maxComponent = v
			}
		}
		bitLen := uint32(1)
		if maxComponent > 0 {
			bitLen = uint32(bits.Len32(maxComponent))
		}
		if maxComponent > maxValue {
			maxValue = maxComponent
		}
		bitLengths = append(bitLengths, bitLen)
	}

	taggedBits := estimateTaggedBits(bitLengths, numComponents)
	rawBits := estimateRawBits(symbols, maxValue)
	maxValueBitLength := uint32(bits.Len32(maxValue))

	if taggedBits < rawBits || maxValueBitLength > maxRawEncodingBitLength {
		if err := buf.PutUint8(symbolSchemeTagged); err != nil {
			return err
		}
		return encodeTaggedSymbols(symbols, numComponents, bitLengths, buf)
	}
	if err := buf.PutUint8(symbolSchemeRaw); err != nil {
		return err
	}
	return encodeRawSymbols(symbols, maxValue, buf)
}

// EstimateSymbolBits returns the approximate encoded size in bits; used
// by the encoder's scheme dry runs.
func EstimateSymbolBits(symbols []uint32, numComponents int) uint64 {
	if len(symbols) == 0 {
		return 0
	}
	if numComponents <= 0 {
		numComponents = 1
	}
	bitLengths := make([]uint32, 0, len(symbols)/numComponents+1)
	var maxValue uint32
	for i := 0; i < len(symbols); i += numComponents {
		end := i + numComponents
		if end > len(symbols) {
			end = len(symbols)
		}
		var maxComponent uint32
		for _, v := range symbols[i:end] {
			if v > maxComponent {
				maxComponent = v
			}
		}
		bitLen := uint32(1)
		if maxComponent > 0 {
			bitLen = uint32(bits.Len32(maxComponent))
		}
		if maxComponent > maxValue {
			maxValue = maxComponent
		}
		bitLengths = append(bitLengths, bitLen)
	}
	tagged := estimateTaggedBits(bitLengths, numComponents)
	raw := estimateRawBits(symbols, maxValue)
	if tagged < raw {
		return tagged
	}
	return raw
}

func estimateRawBits(symbols []uint32, maxValue uint32) uint64 {
	frequencies := make([]uint64, maxValue+1)
	for _, s := range symbols {
		frequencies[s]++
	}
	var totalFreq uint64
	var numPresent uint32
	for _, f := range frequencies {
		if f > 0 {
			totalFreq += f
			numPresent++
		}
	}
	if totalFreq == 0 {
		return 0
	}
	var entropy float64
	totalF := float64(totalFreq)
	for _, f := range frequencies {
		if f > 0 {
			p := float64(f) / totalF
			entropy += -math.Log2(p) * float64(f)
		}
	}
	return uint64(math.Ceil(entropy)) + approxFrequencyTableBits(maxValue, numPresent)
}

func estimateTaggedBits(bitLengths []uint32, numComponents int) uint64 {
	var valueBits uint64
	for _, l := range bitLengths {
		valueBits += uint64(l) * uint64(numComponents)
	}
	var tagFreq [33]uint64
	for _, l := range bitLengths {
		tagFreq[l]++
	}
	var totalTags uint64
	var numPresent uint32
	for _, f := range tagFreq {
		if f > 0 {
			totalTags += f
			numPresent++
		}
	}
	if totalTags == 0 {
		return valueBits
	}
	var entropy float64
	totalF := float64(totalTags)
	for _, f := range tagFreq {
		if f > 0 {
			p := float64(f) / totalF
			entropy += -math.Log2(p) * float64(f)
		}
	}
	return valueBits + uint64(math.Ceil(entropy)) + approxFrequencyTableBits(32, numPresent)
}

// encodeRawSymbols rANS-codes the symbols directly. The precision is
// derived from the unique symbol count and recorded as one byte.
func encodeRawSymbols(symbols []uint32, maxValue uint32, buf *bitio.Encoder) error {
	frequencies := make([]uint64, maxValue+1)
	for _, s := range symbols {
		frequencies[s]++
	}
	var numUnique uint32
	for _, f := range frequencies {
		if f > 0 {
			numUnique++
		}
	}
	uniqueBitLength := uint32(bits.Len32(numUnique))
	if uniqueBitLength < 1 {
		uniqueBitLength = 1
	}
	if uniqueBitLength > maxRawEncodingBitLength {
		uniqueBitLength = maxRawEncodingBitLength
	}
	if err := buf.PutUint8(uint8(uniqueBitLength)); err != nil {
		return err
	}

	enc, err := NewSymbolEncoder(precisionForBitLength(uniqueBitLength), frequencies, buf)
	if err != nil {
		return err
	}
	enc.StartEncoding()
	for i := len(symbols) - 1; i >= 0; i-- {
		if err := enc.EncodeSymbol(symbols[i]); err != nil {
			return err
		}
	}
	return enc.EndEncoding(buf)
}

// encodeTaggedSymbols rANS-codes per-group bit lengths and stores the
// values as direct bits of that width.
func encodeTaggedSymbols(symbols []uint32, numComponents int, bitLengths []uint32, buf *bitio.Encoder) error {
	var tagFreq [33]uint64
	for _, l := range bitLengths {
		tagFreq[l]++
	}
	tagEncoder, err := NewSymbolEncoder(precisionForBitLength(5), tagFreq[:], buf)
	if err != nil {
		return err
	}

	valueBuf := bitio.NewEncoder()
	if err := valueBuf.StartBitEncoding(32*len(symbols), false); err != nil {
		return err
	}

	tagEncoder.StartEncoding()
	for i, l := range bitLengths {
		base := i * numComponents
		for j := 0; j < numComponents && base+j < len(symbols); j++ {
			if err := valueBuf.PutBits(symbols[base+j], int(l)); err != nil {
				return err
			}
		}
	}
	// The bit-length tags are LIFO; the raw values above are FIFO.
	for i := len(bitLengths) - 1; i >= 0; i-- {
		if err := tagEncoder.EncodeSymbol(bitLengths[i]); err != nil {
			return err
		}
	}
	if err := tagEncoder.EndEncoding(buf); err != nil {
		return err
	}
	valueBuf.EndBitEncoding()
	return buf.PutBytes(valueBuf.Bytes())
}

// DecodeSymbols reads numValues symbols written by EncodeSymbols.
func DecodeSymbols(numValues, numComponents int, buf *bitio.Decoder, out []uint32) error {
	if numValues == 0 {
		return nil
	}
	if numComponents <= 0 {
		numComponents = 1
	}
	if len(out) < numValues {
		return fmt.Errorf("%w: symbol output too small", status.ErrInternal)
	}
	scheme, err := buf.Uint8()
	if err != nil {
		return err
	}
	switch scheme {
	case symbolSchemeTagged:
		return decodeTaggedSymbols(numValues, numComponents, buf, out)
	case symbolSchemeRaw:
		return decodeRawSymbols(numValues, buf, out)
	default:
		return fmt.Errorf("%w: symbol coding scheme %d", status.ErrCorruptBitstream, scheme)
	}
}

func decodeRawSymbols(numValues int, buf *bitio.Decoder, out []uint32) error {
	uniqueBitLength, err := buf.Uint8()
	if err != nil {
		return err
	}
	if uniqueBitLength == 0 || uint32(uniqueBitLength) > maxRawEncodingBitLength {
		return fmt.Errorf("%w: symbol bit length %d", status.ErrCorruptBitstream, uniqueBitLength)
	}
	dec, err := NewSymbolDecoder(precisionForBitLength(uint32(uniqueBitLength)), buf)
	if err != nil {
		return err
	}
	if err := dec.StartDecoding(buf); err != nil {
		return err
	}
	for i := 0; i < numValues; i++ {
		out[i] = dec.DecodeSymbol()
	}
	return nil
}

func decodeTaggedSymbols(numValues, numComponents int, buf *bitio.Decoder, out []uint32) error {
	tagDecoder, err := NewSymbolDecoder(precisionForBitLength(5), buf)
	if err != nil {
		return err
	}
	if err := tagDecoder.StartDecoding(buf); err != nil {
		return err
	}
	if err := buf.StartBitDecoding(false); err != nil {
		return err
	}
	numChunks := numValues / numComponents
	for i := 0; i < numChunks; i++ {
		l := tagDecoder.DecodeSymbol()
		if l == 0 || l > 32 {
			return fmt.Errorf("%w: symbol tag %d", status.ErrCorruptBitstream, l)
		}
		base := i * numComponents
		for j := 0; j < numComponents; j++ {
			v, err := buf.Bits(int(l))
			if err != nil {
				return err
			}
			out[base+j] = v
		}
	}
	buf.EndBitDecoding()
	return nil
}
