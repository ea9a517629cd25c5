package draco

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/klauspost/compress/flate"
)

// benchmarkGrid builds an n x n height-field mesh.
func benchmarkGrid(b *testing.B, n int) *Mesh {
	b.Helper()
	m := NewMesh()
	m.SetNumPoints(n * n)
	pos, err := NewPointAttribute(Position, DTFloat32, 3, false)
	if err != nil {
		b.Fatalf("NewPointAttribute failed: %v", err)
	}
	pos.Reset(n * n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			h := float32(math.Sin(float64(x)*0.35) * math.Cos(float64(y)*0.2))
			err := pos.SetFloat32(AttributeValueIndex(y*n+x), []float32{float32(x), float32(y), h})
			if err != nil {
				b.Fatalf("SetFloat32 failed: %v", err)
			}
		}
	}
	m.AddAttribute(pos)
	for y := 0; y < n-1; y++ {
		for x := 0; x < n-1; x++ {
			a := PointIndex(y*n + x)
			bb := PointIndex(y*n + x + 1)
			c := PointIndex((y+1)*n + x + 1)
			d := PointIndex((y+1)*n + x)
			m.AddFace(Face{a, bb, c})
			m.AddFace(Face{a, c, d})
		}
	}
	return m
}

func BenchmarkEncodeMesh(b *testing.B) {
	m := benchmarkGrid(b, 32)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := EncodeMesh(m, nil, nil); err != nil {
			b.Fatalf("EncodeMesh failed: %v", err)
		}
	}
}

func BenchmarkDecodeMesh(b *testing.B) {
	m := benchmarkGrid(b, 32)
	data, err := EncodeMesh(m, nil, nil)
	if err != nil {
		b.Fatalf("EncodeMesh failed: %v", err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := DecodeMesh(data); err != nil {
			b.Fatalf("DecodeMesh failed: %v", err)
		}
	}
}

// BenchmarkFlateBaseline deflates the raw vertex buffer for a size
// comparison against the geometry-aware codec.
func BenchmarkFlateBaseline(b *testing.B) {
	m := benchmarkGrid(b, 32)
	pos := m.NamedAttribute(Position)
	raw := new(bytes.Buffer)
	v := make([]float32, 3)
	for i := 0; i < pos.NumEntries(); i++ {
		if err := pos.Float32(AttributeValueIndex(i), v); err != nil {
			b.Fatalf("Float32 failed: %v", err)
		}
		if err := binary.Write(raw, binary.LittleEndian, v); err != nil {
			b.Fatalf("binary.Write failed: %v", err)
		}
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var out bytes.Buffer
		w, err := flate.NewWriter(&out, flate.BestCompression)
		if err != nil {
			b.Fatalf("NewWriter failed: %v", err)
		}
		if _, err := w.Write(raw.Bytes()); err != nil {
			b.Fatalf("Write failed: %v", err)
		}
		if err := w.Close(); err != nil {
			b.Fatalf("Close failed: %v", err)
		}
	}
}
