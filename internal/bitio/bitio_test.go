package bitio

import (
	"errors"
	"testing"

	"github.com/Faultbox/dracodec/internal/status"
)

func TestByteRoundTrip(t *testing.T) {
	enc := NewEncoder()
	if err := enc.PutUint8(0xAB); err != nil {
		t.Fatalf("PutUint8 failed: %v", err)
	}
	if err := enc.PutUint16(0x1234); err != nil {
		t.Fatalf("PutUint16 failed: %v", err)
	}
	if err := enc.PutUint32(0xDEADBEEF); err != nil {
		t.Fatalf("PutUint32 failed: %v", err)
	}
	if err := enc.PutUint64(0x0123456789ABCDEF); err != nil {
		t.Fatalf("PutUint64 failed: %v", err)
	}
	if err := enc.PutFloat32(3.5); err != nil {
		t.Fatalf("PutFloat32 failed: %v", err)
	}
	if err := enc.PutString("draco"); err != nil {
		t.Fatalf("PutString failed: %v", err)
	}

	dec := NewDecoder(enc.Bytes())
	if v, _ := dec.Uint8(); v != 0xAB {
		t.Errorf("expected 0xAB, got %#x", v)
	}
	if v, _ := dec.Uint16(); v != 0x1234 {
		t.Errorf("expected 0x1234, got %#x", v)
	}
	if v, _ := dec.Uint32(); v != 0xDEADBEEF {
		t.Errorf("expected 0xDEADBEEF, got %#x", v)
	}
	if v, _ := dec.Uint64(); v != 0x0123456789ABCDEF {
		t.Errorf("expected 0x0123456789ABCDEF, got %#x", v)
	}
	if v, _ := dec.Float32(); v != 3.5 {
		t.Errorf("expected 3.5, got %f", v)
	}
	if s, _ := dec.String(); s != "draco" {
		t.Errorf("expected draco, got %q", s)
	}
	if dec.Remaining() != 0 {
		t.Errorf("expected empty buffer, %d bytes left", dec.Remaining())
	}
}

func TestLittleEndianLayout(t *testing.T) {
	enc := NewEncoder()
	if err := enc.PutUint32(0x12345678); err != nil {
		t.Fatalf("PutUint32 failed: %v", err)
	}
	want := []byte{0x78, 0x56, 0x34, 0x12}
	got := enc.Bytes()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: expected %#x, got %#x", i, want[i], got[i])
		}
	}
}

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 16383, 16384, 1 << 32, 1<<64 - 1}
	enc := NewEncoder()
	for _, v := range values {
		if err := enc.PutVarint(v); err != nil {
			t.Fatalf("PutVarint(%d) failed: %v", v, err)
		}
	}
	dec := NewDecoder(enc.Bytes())
	for _, v := range values {
		got, err := dec.Varint()
		if err != nil {
			t.Fatalf("Varint failed: %v", err)
		}
		if got != v {
			t.Errorf("expected %d, got %d", v, got)
		}
	}
}

func TestBitModeRoundTrip(t *testing.T) {
	enc := NewEncoder()
	if err := enc.StartBitEncoding(64, true); err != nil {
		t.Fatalf("StartBitEncoding failed: %v", err)
	}
	if err := enc.PutBits(0b1010, 4); err != nil {
		t.Fatalf("PutBits failed: %v", err)
	}
	if err := enc.PutBits(0b1100, 4); err != nil {
		t.Fatalf("PutBits failed: %v", err)
	}
	if err := enc.PutBits(0x3FF, 10); err != nil {
		t.Fatalf("PutBits failed: %v", err)
	}
	enc.EndBitEncoding()

	dec := NewDecoder(enc.Bytes())
	if err := dec.StartBitDecoding(true); err != nil {
		t.Fatalf("StartBitDecoding failed: %v", err)
	}
	if v, _ := dec.Bits(4); v != 0b1010 {
		t.Errorf("expected 0b1010, got %#b", v)
	}
	if v, _ := dec.Bits(4); v != 0b1100 {
		t.Errorf("expected 0b1100, got %#b", v)
	}
	if v, _ := dec.Bits(10); v != 0x3FF {
		t.Errorf("expected 0x3FF, got %#x", v)
	}
	dec.EndBitDecoding()
	if dec.Remaining() != 0 {
		t.Errorf("expected aligned end, %d bytes left", dec.Remaining())
	}
}

func TestBitPacking(t *testing.T) {
	enc := NewEncoder()
	if err := enc.StartBitEncoding(16, false); err != nil {
		t.Fatalf("StartBitEncoding failed: %v", err)
	}
	if err := enc.PutBits(0b1010, 4); err != nil {
		t.Fatalf("PutBits failed: %v", err)
	}
	if err := enc.PutBits(0b1100, 4); err != nil {
		t.Fatalf("PutBits failed: %v", err)
	}
	enc.EndBitEncoding()
	// Bits pack little-endian within each byte.
	if len(enc.Bytes()) != 1 || enc.Bytes()[0] != 0b11001010 {
		t.Fatalf("expected [0b11001010], got %#v", enc.Bytes())
	}
}

func TestMixedModeRejected(t *testing.T) {
	enc := NewEncoder()
	if err := enc.StartBitEncoding(8, false); err != nil {
		t.Fatalf("StartBitEncoding failed: %v", err)
	}
	if err := enc.PutUint8(1); !errors.Is(err, status.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
	enc.EndBitEncoding()
	if err := enc.PutUint8(1); err != nil {
		t.Errorf("byte write after EndBitEncoding failed: %v", err)
	}
}

func TestUnderflow(t *testing.T) {
	dec := NewDecoder([]byte{1, 2})
	if _, err := dec.Uint32(); !errors.Is(err, status.ErrBufferUnderflow) {
		t.Errorf("expected ErrBufferUnderflow, got %v", err)
	}
	if _, err := dec.Varint(); err != nil {
		t.Errorf("varint within bounds failed: %v", err)
	}
	if _, err := dec.Uint8(); err != nil {
		t.Errorf("second byte read failed: %v", err)
	}
	if _, err := dec.Uint8(); !errors.Is(err, status.ErrBufferUnderflow) {
		t.Errorf("expected ErrBufferUnderflow at end, got %v", err)
	}
}

func TestSetPosition(t *testing.T) {
	dec := NewDecoder([]byte{10, 20, 30})
	if err := dec.SetPosition(2); err != nil {
		t.Fatalf("SetPosition failed: %v", err)
	}
	if v, _ := dec.Uint8(); v != 30 {
		t.Errorf("expected 30, got %d", v)
	}
	if err := dec.SetPosition(4); !errors.Is(err, status.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}
