package pred

import (
	"testing"

	"github.com/Faultbox/dracodec/internal/bitio"
	"github.com/Faultbox/dracodec/internal/corner"
	"github.com/Faultbox/dracodec/internal/octa"
)

// stripMeshData builds the prediction context for a six-face triangle
// strip traversed depth first.
func stripMeshData(t *testing.T) *MeshData {
	t.Helper()
	faces := [][3]corner.VertexIndex{
		{0, 1, 2}, {2, 1, 3}, {2, 3, 4}, {4, 3, 5}, {4, 5, 6}, {6, 5, 7},
	}
	table, err := corner.NewTable(faces, 8)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	seeds := make([]corner.CornerIndex, table.NumFaces())
	for f := range seeds {
		seeds[f] = table.FirstCorner(corner.FaceIndex(f))
	}
	seq := corner.Traverse(corner.TraversalDepthFirst, table, seeds)
	if len(seq.Order) != 8 {
		t.Fatalf("traversal reached %d of 8 vertices", len(seq.Order))
	}
	return &MeshData{Table: table, DataToCorner: seq.DataToCorner, VertexToData: seq.VertexToData}
}

func testValues(n, numComponents int) []int32 {
	values := make([]int32, n*numComponents)
	for i := range values {
		values[i] = int32((i*37)%1000 - 250)
	}
	return values
}

func roundTripScheme(t *testing.T, enc Encoder, makeDec func(transformType int) Decoder, values []int32, numComponents int) {
	t.Helper()
	corr := make([]int32, len(values))
	if err := enc.ComputeCorrections(values, numComponents, corr); err != nil {
		t.Fatalf("ComputeCorrections failed: %v", err)
	}
	buf := bitio.NewEncoder()
	if err := enc.EncodePredictionData(buf); err != nil {
		t.Fatalf("EncodePredictionData failed: %v", err)
	}

	dec := makeDec(enc.TransformType())
	src := bitio.NewDecoder(buf.Bytes())
	if err := dec.DecodePredictionData(src); err != nil {
		t.Fatalf("DecodePredictionData failed: %v", err)
	}
	out := make([]int32, len(values))
	if err := dec.ComputeOriginalValues(corr, numComponents, out); err != nil {
		t.Fatalf("ComputeOriginalValues failed: %v", err)
	}
	for i := range values {
		if out[i] != values[i] {
			t.Fatalf("value %d: expected %d, got %d", i, values[i], out[i])
		}
	}
}

func TestDeltaRoundTrip(t *testing.T) {
	values := testValues(50, 3)
	roundTripScheme(t, NewDeltaEncoder(), func(tt int) Decoder {
		d, err := NewDeltaDecoder(tt)
		if err != nil {
			t.Fatalf("NewDeltaDecoder failed: %v", err)
		}
		return d
	}, values, 3)
}

func TestParallelogramRoundTrip(t *testing.T) {
	md := stripMeshData(t)
	values := testValues(8, 3)
	roundTripScheme(t, NewParallelogramEncoder(md), func(tt int) Decoder {
		d, err := NewParallelogramDecoder(md, tt)
		if err != nil {
			t.Fatalf("NewParallelogramDecoder failed: %v", err)
		}
		return d
	}, values, 3)
}

func TestConstrainedMultiRoundTrip(t *testing.T) {
	md := stripMeshData(t)
	values := testValues(8, 3)
	roundTripScheme(t, NewConstrainedMultiEncoder(md), func(tt int) Decoder {
		d, err := NewConstrainedMultiDecoder(md, tt)
		if err != nil {
			t.Fatalf("NewConstrainedMultiDecoder failed: %v", err)
		}
		return d
	}, values, 3)
}

func TestTexCoordsRoundTrip(t *testing.T) {
	md := stripMeshData(t)
	// Quantized positions along the strip.
	positions := make([]int32, 8*3)
	for i := 0; i < 8; i++ {
		positions[i*3] = int32(i * 100)
		positions[i*3+1] = int32((i % 2) * 100)
		positions[i*3+2] = 0
	}
	posFor := func(dataID int) [3]int64 {
		return [3]int64{
			int64(positions[dataID*3]),
			int64(positions[dataID*3+1]),
			int64(positions[dataID*3+2]),
		}
	}
	uvs := make([]int32, 8*2)
	for i := 0; i < 8; i++ {
		uvs[i*2] = int32(i * 50)
		uvs[i*2+1] = int32((i % 2) * 70)
	}
	roundTripScheme(t, NewTexCoordsEncoder(md, posFor), func(tt int) Decoder {
		d, err := NewTexCoordsDecoder(md, posFor, tt)
		if err != nil {
			t.Fatalf("NewTexCoordsDecoder failed: %v", err)
		}
		return d
	}, uvs, 2)
}

func TestDeltaOctahedronRoundTrip(t *testing.T) {
	const bits = 8
	tb, ok := octa.NewToolBox(bits)
	if !ok {
		t.Fatal("NewToolBox failed")
	}
	dirs := [][3]float32{
		{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {-1, 0, 0}, {0, -1, 0}, {0, 0, -1},
		{0.5, 0.5, 0.7}, {-0.5, 0.7, -0.5}, {0.9, -0.1, 0.4}, {-0.2, -0.9, 0.3},
	}
	values := make([]int32, 0, len(dirs)*2)
	for _, d := range dirs {
		s, tt := tb.FloatVectorToQuantizedOctahedralCoords(d)
		values = append(values, s, tt)
	}
	enc, err := NewDeltaOctahedronEncoder(bits)
	if err != nil {
		t.Fatalf("NewDeltaOctahedronEncoder failed: %v", err)
	}
	roundTripScheme(t, enc, func(tt int) Decoder {
		d, err := NewDeltaDecoder(tt)
		if err != nil {
			t.Fatalf("NewDeltaDecoder failed: %v", err)
		}
		return d
	}, values, 2)
}

func TestGeometricNormalRoundTrip(t *testing.T) {
	const bits = 8
	md := stripMeshData(t)
	positions := make([]int32, 8*3)
	for i := 0; i < 8; i++ {
		positions[i*3] = int32(i * 64)
		positions[i*3+1] = int32((i % 2) * 64)
		positions[i*3+2] = int32(i)
	}
	posFor := func(dataID int) [3]int64 {
		return [3]int64{
			int64(positions[dataID*3]),
			int64(positions[dataID*3+1]),
			int64(positions[dataID*3+2]),
		}
	}
	tb, ok := octa.NewToolBox(bits)
	if !ok {
		t.Fatal("NewToolBox failed")
	}
	values := make([]int32, 0, 16)
	for i := 0; i < 8; i++ {
		s, tt := tb.FloatVectorToQuantizedOctahedralCoords([3]float32{0.1 * float32(i), 0.3, 0.9})
		values = append(values, s, tt)
	}
	enc, err := NewGeometricNormalEncoder(md, posFor, bits)
	if err != nil {
		t.Fatalf("NewGeometricNormalEncoder failed: %v", err)
	}
	roundTripScheme(t, enc, func(tt int) Decoder {
		d, err := NewGeometricNormalDecoder(md, posFor, tt)
		if err != nil {
			t.Fatalf("NewGeometricNormalDecoder failed: %v", err)
		}
		return d
	}, values, 2)
}

func TestWrapTransformBounds(t *testing.T) {
	w := newWrapTransform()
	w.initEncoding([]int32{-5, 10, 3}, 1)
	corr := make([]int32, 1)
	out := make([]int32, 1)
	for orig := int32(-5); orig <= 10; orig++ {
		for p := int32(-20); p <= 20; p += 5 {
			w.computeCorrection([]int32{orig}, []int32{p}, corr)
			w.computeOriginal([]int32{p}, corr, out)
			if out[0] != orig {
				t.Fatalf("orig %d pred %d: got %d", orig, p, out[0])
			}
		}
	}
}
