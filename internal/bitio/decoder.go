package bitio

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Faultbox/dracodec/internal/status"
)

// Decoder is a position-advancing view over an encoded byte slice. The
// underlying data is borrowed, never copied.
type Decoder struct {
	data []byte
	pos  int

	bitActive bool
	bitOffset int // bits consumed since StartBitDecoding
	bitStart  int // byte offset where the bit section begins
	bitLimit  int // total bits available when size-prefixed, -1 otherwise
}

// NewDecoder returns a decoder positioned at the start of data.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Position returns the current byte offset.
func (d *Decoder) Position() int {
	return d.pos
}

// SetPosition moves the read cursor. Only valid outside bit mode.
func (d *Decoder) SetPosition(pos int) error {
	if d.bitActive {
		return fmt.Errorf("%w: seek during bit decoding", status.ErrInvalidState)
	}
	if pos < 0 || pos > len(d.data) {
		return fmt.Errorf("%w: position %d out of range", status.ErrInvalidParameter, pos)
	}
	d.pos = pos
	return nil
}

// DecodedSize returns the total size of the underlying data.
func (d *Decoder) DecodedSize() int {
	return len(d.data)
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.pos
}

// RemainingData returns the unread tail of the buffer.
func (d *Decoder) RemainingData() []byte {
	return d.data[d.pos:]
}

// Advance skips n bytes.
func (d *Decoder) Advance(n int) error {
	if err := d.checkByteMode(); err != nil {
		return err
	}
	if n < 0 || n > d.Remaining() {
		return fmt.Errorf("%w: advance %d with %d remaining", status.ErrBufferUnderflow, n, d.Remaining())
	}
	d.pos += n
	return nil
}

func (d *Decoder) checkByteMode() error {
	if d.bitActive {
		return fmt.Errorf("%w: byte read during bit decoding", status.ErrInvalidState)
	}
	return nil
}

func (d *Decoder) take(n int) ([]byte, error) {
	if err := d.checkByteMode(); err != nil {
		return nil, err
	}
	if d.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", status.ErrBufferUnderflow, n, d.Remaining())
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// Uint8 reads a single byte.
func (d *Decoder) Uint8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint16 reads a little-endian 16-bit value.
func (d *Decoder) Uint16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Uint32 reads a little-endian 32-bit value.
func (d *Decoder) Uint32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Uint64 reads a little-endian 64-bit value.
func (d *Decoder) Uint64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Int32 reads a little-endian signed 32-bit value.
func (d *Decoder) Int32() (int32, error) {
	v, err := d.Uint32()
	return int32(v), err
}

// Float32 reads a little-endian IEEE 754 float.
func (d *Decoder) Float32() (float32, error) {
	v, err := d.Uint32()
	return math.Float32frombits(v), err
}

// Float64 reads a little-endian IEEE 754 double.
func (d *Decoder) Float64() (float64, error) {
	v, err := d.Uint64()
	return math.Float64frombits(v), err
}

// Bytes reads len(dst) bytes into dst.
func (d *Decoder) Bytes(dst []byte) error {
	b, err := d.take(len(dst))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

// Slice returns a borrowed view of the next n bytes.
func (d *Decoder) Slice(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative slice length", status.ErrInvalidParameter)
	}
	return d.take(n)
}

// Varint reads an unsigned LEB128 varint. At most ten bytes are consumed.
func (d *Decoder) Varint() (uint64, error) {
	if err := d.checkByteMode(); err != nil {
		return 0, err
	}
	var v uint64
	var shift uint
	for i := 0; i < 10; i++ {
		if d.Remaining() == 0 {
			return 0, fmt.Errorf("%w: truncated varint", status.ErrBufferUnderflow)
		}
		b := d.data[d.pos]
		d.pos++
		v |= uint64(b&0x7F) << shift
		if b < 0x80 {
			return v, nil
		}
		shift += 7
	}
	return 0, fmt.Errorf("%w: varint too long", status.ErrCorruptBitstream)
}

// String reads a null-terminated string.
func (d *Decoder) String() (string, error) {
	if err := d.checkByteMode(); err != nil {
		return "", err
	}
	for i := d.pos; i < len(d.data); i++ {
		if d.data[i] == 0 {
			s := string(d.data[d.pos:i])
			d.pos = i + 1
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unterminated string", status.ErrBufferUnderflow)
}

// StartBitDecoding switches into bit mode. When sizePrefixed is set, a
// 32-bit bit count precedes the bit data and bounds the reads.
func (d *Decoder) StartBitDecoding(sizePrefixed bool) error {
	if d.bitActive {
		return fmt.Errorf("%w: bit decoding already active", status.ErrInvalidState)
	}
	limit := -1
	if sizePrefixed {
		n, err := d.Uint32()
		if err != nil {
			return err
		}
		if int(n) > d.Remaining()*8 {
			return fmt.Errorf("%w: bit sequence size %d exceeds buffer", status.ErrCorruptBitstream, n)
		}
		limit = int(n)
	}
	d.bitActive = true
	d.bitStart = d.pos
	d.bitOffset = 0
	d.bitLimit = limit
	return nil
}

// Bits reads nbits bits, LSB first, matching Encoder.PutBits.
func (d *Decoder) Bits(nbits int) (uint32, error) {
	if !d.bitActive {
		return 0, fmt.Errorf("%w: bit read outside bit decoding", status.ErrInvalidState)
	}
	if nbits < 0 || nbits > 32 {
		return 0, fmt.Errorf("%w: bit count %d", status.ErrInvalidParameter, nbits)
	}
	if d.bitLimit >= 0 && d.bitOffset+nbits > d.bitLimit {
		return 0, fmt.Errorf("%w: bit sequence exhausted", status.ErrBufferUnderflow)
	}
	var v uint32
	for i := 0; i < nbits; i++ {
		byteOff := d.bitStart + d.bitOffset/8
		if byteOff >= len(d.data) {
			return 0, fmt.Errorf("%w: bit read past end", status.ErrBufferUnderflow)
		}
		shift := uint(d.bitOffset % 8)
		bit := (d.data[byteOff] >> shift) & 1
		v |= uint32(bit) << uint(i)
		d.bitOffset++
	}
	return v, nil
}

// EndBitDecoding leaves bit mode, advancing past the consumed bit bytes.
// Size-prefixed sequences advance past the full declared length so the
// caller stays aligned with the encoder.
func (d *Decoder) EndBitDecoding() {
	if !d.bitActive {
		return
	}
	bits := d.bitOffset
	if d.bitLimit >= 0 {
		bits = d.bitLimit
	}
	d.pos = d.bitStart + (bits+7)/8
	if d.pos > len(d.data) {
		d.pos = len(d.data)
	}
	d.bitActive = false
}
