package draco

import (
	"bytes"
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/Faultbox/dracodec/pkg/vmath"
)

// createTriangleMesh builds the unit triangle fixture.
func createTriangleMesh(t *testing.T) *Mesh {
	t.Helper()
	return createMesh(t, [][]float32{
		{0, 0, 0}, {1, 0, 0}, {0.5, 1, 0},
	}, []Face{{0, 1, 2}})
}

// createQuadMesh builds two triangles over four corners of a square.
func createQuadMesh(t *testing.T) *Mesh {
	t.Helper()
	return createMesh(t, [][]float32{
		{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	}, []Face{{0, 1, 2}, {0, 2, 3}})
}

func createMesh(t *testing.T, positions [][]float32, faces []Face) *Mesh {
	t.Helper()
	m := NewMesh()
	m.SetNumPoints(len(positions))
	pos, err := NewPointAttribute(Position, DTFloat32, 3, false)
	if err != nil {
		t.Fatalf("NewPointAttribute failed: %v", err)
	}
	pos.Reset(len(positions))
	for i, p := range positions {
		if err := pos.SetFloat32(AttributeValueIndex(i), p); err != nil {
			t.Fatalf("SetFloat32 failed: %v", err)
		}
	}
	m.AddAttribute(pos)
	for _, f := range faces {
		m.AddFace(f)
	}
	return m
}

// positionTriangles returns the mesh faces as sorted position triples,
// independent of vertex indexing.
func positionTriangles(t *testing.T, m *Mesh) [][9]float32 {
	t.Helper()
	pos := m.NamedAttribute(Position)
	if pos == nil {
		t.Fatal("mesh has no position attribute")
	}
	read := func(p PointIndex) [3]float32 {
		v := make([]float32, 3)
		if err := pos.Float32(pos.MappedIndex(p), v); err != nil {
			t.Fatalf("Float32 failed: %v", err)
		}
		return [3]float32{v[0], v[1], v[2]}
	}
	tris := make([][9]float32, m.NumFaces())
	for f := 0; f < m.NumFaces(); f++ {
		face := m.Face(FaceIndex(f))
		corners := [][3]float32{read(face[0]), read(face[1]), read(face[2])}
		sort.Slice(corners, func(a, b int) bool {
			for c := 0; c < 3; c++ {
				if corners[a][c] != corners[b][c] {
					return corners[a][c] < corners[b][c]
				}
			}
			return false
		})
		var tri [9]float32
		for i, c := range corners {
			copy(tri[i*3:], c[:])
		}
		tris[f] = tri
	}
	sort.Slice(tris, func(a, b int) bool {
		for c := 0; c < 9; c++ {
			if tris[a][c] != tris[b][c] {
				return tris[a][c] < tris[b][c]
			}
		}
		return false
	})
	return tris
}

func matchTriangles(t *testing.T, want, got [][9]float32, tolerance float32) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("expected %d triangles, got %d", len(want), len(got))
	}
	for i := range want {
		for c := 0; c < 9; c++ {
			if diff := want[i][c] - got[i][c]; diff > tolerance || diff < -tolerance {
				t.Fatalf("triangle %d component %d: %f vs %f", i, c, want[i][c], got[i][c])
			}
		}
	}
}

func TestUnitTriangleRoundTrip(t *testing.T) {
	m := createTriangleMesh(t)
	opts := DefaultOptions()
	if err := opts.SetQuantizationBits(Position, 14); err != nil {
		t.Fatalf("SetQuantizationBits failed: %v", err)
	}

	data, err := EncodeMesh(m, opts, nil)
	if err != nil {
		t.Fatalf("EncodeMesh failed: %v", err)
	}
	if len(data) <= 20 || len(data) >= 120 {
		t.Errorf("stream size %d outside (20, 120)", len(data))
	}

	decoded, err := DecodeMesh(data)
	if err != nil {
		t.Fatalf("DecodeMesh failed: %v", err)
	}
	if decoded.NumFaces() != 1 {
		t.Fatalf("expected 1 face, got %d", decoded.NumFaces())
	}
	if decoded.NumPoints() != 3 {
		t.Fatalf("expected 3 points, got %d", decoded.NumPoints())
	}
	matchTriangles(t, positionTriangles(t, m), positionTriangles(t, decoded), 1.0/8192)
}

func TestQuadRoundTrip(t *testing.T) {
	m := createQuadMesh(t)
	data, err := EncodeMesh(m, nil, nil)
	if err != nil {
		t.Fatalf("EncodeMesh failed: %v", err)
	}
	decoded, err := DecodeMesh(data)
	if err != nil {
		t.Fatalf("DecodeMesh failed: %v", err)
	}
	if decoded.NumFaces() != 2 {
		t.Fatalf("expected 2 faces, got %d", decoded.NumFaces())
	}
	if decoded.NumPoints() != 4 {
		t.Fatalf("expected 4 points, got %d", decoded.NumPoints())
	}
	matchTriangles(t, positionTriangles(t, m), positionTriangles(t, decoded), 1.0/4096)

	// Re-encoding the decoded mesh is deterministic.
	again1, err := EncodeMesh(decoded, nil, nil)
	if err != nil {
		t.Fatalf("re-encode failed: %v", err)
	}
	again2, err := EncodeMesh(decoded, nil, nil)
	if err != nil {
		t.Fatalf("re-encode failed: %v", err)
	}
	if !bytes.Equal(again1, again2) {
		t.Error("re-encoding the decoded mesh produced different bytes")
	}
}

func TestMeshSequentialRoundTrip(t *testing.T) {
	m := createQuadMesh(t)
	opts := DefaultOptions()
	if err := opts.SetEncodingMethod(MethodSequential); err != nil {
		t.Fatalf("SetEncodingMethod failed: %v", err)
	}
	data, err := EncodeMesh(m, opts, nil)
	if err != nil {
		t.Fatalf("EncodeMesh failed: %v", err)
	}
	decoded, err := DecodeMesh(data)
	if err != nil {
		t.Fatalf("DecodeMesh failed: %v", err)
	}
	// Sequential coding preserves the input indexing.
	for f := 0; f < m.NumFaces(); f++ {
		if decoded.Face(FaceIndex(f)) != m.Face(FaceIndex(f)) {
			t.Fatalf("face %d: expected %v, got %v", f, m.Face(FaceIndex(f)), decoded.Face(FaceIndex(f)))
		}
	}
	matchTriangles(t, positionTriangles(t, m), positionTriangles(t, decoded), 1.0/4096)
}

// spherePoint places point i deterministically on the unit sphere.
func spherePoint(i int) vmath.Vec3 {
	golden := math.Pi * (3 - math.Sqrt(5))
	y := 1 - 2*float64(i)/99
	r := math.Sqrt(1 - y*y)
	theta := golden * float64(i)
	return vmath.Vec3{
		X: float32(r * math.Cos(theta)),
		Y: float32(y),
		Z: float32(r * math.Sin(theta)),
	}
}

func TestPointCloudRoundTrip(t *testing.T) {
	pc := NewPointCloud()
	pc.SetNumPoints(100)
	pos, err := NewPointAttribute(Position, DTFloat32, 3, false)
	if err != nil {
		t.Fatalf("NewPointAttribute failed: %v", err)
	}
	pos.Reset(100)
	for i := 0; i < 100; i++ {
		p := spherePoint(i)
		if err := pos.SetFloat32(AttributeValueIndex(i), []float32{p.X, p.Y, p.Z}); err != nil {
			t.Fatalf("SetFloat32 failed: %v", err)
		}
	}
	pc.AddAttribute(pos)

	opts := DefaultOptions()
	if err := opts.SetQuantizationBits(Position, 11); err != nil {
		t.Fatalf("SetQuantizationBits failed: %v", err)
	}
	data, err := EncodePointCloud(pc, opts, nil)
	if err != nil {
		t.Fatalf("EncodePointCloud failed: %v", err)
	}
	decoded, err := DecodePointCloud(data)
	if err != nil {
		t.Fatalf("DecodePointCloud failed: %v", err)
	}
	if decoded.NumPoints() != 100 {
		t.Fatalf("expected 100 points, got %d", decoded.NumPoints())
	}

	decodedPos := decoded.NamedAttribute(Position)
	maxDist := float32(math.Sqrt(3) / 1024)
	v := make([]float32, 3)
	for i := 0; i < 100; i++ {
		if err := decodedPos.Float32(AttributeValueIndex(i), v); err != nil {
			t.Fatalf("Float32 failed: %v", err)
		}
		want := spherePoint(i)
		if d := want.Distance(vmath.Vec3{X: v[0], Y: v[1], Z: v[2]}); d > maxDist {
			t.Errorf("point %d: distance %f exceeds %f", i, d, maxDist)
		}
	}
}

// createOctahedronMesh builds the octahedron with per-vertex normals
// equal to the vertex directions.
func createOctahedronMesh(t *testing.T) *Mesh {
	t.Helper()
	positions := [][]float32{
		{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1},
	}
	faces := []Face{
		{0, 2, 4}, {2, 1, 4}, {1, 3, 4}, {3, 0, 4},
		{2, 0, 5}, {1, 2, 5}, {3, 1, 5}, {0, 3, 5},
	}
	m := createMesh(t, positions, faces)
	normals, err := NewPointAttribute(Normal, DTFloat32, 3, false)
	if err != nil {
		t.Fatalf("NewPointAttribute failed: %v", err)
	}
	normals.Reset(len(positions))
	for i, p := range positions {
		if err := normals.SetFloat32(AttributeValueIndex(i), p); err != nil {
			t.Fatalf("SetFloat32 failed: %v", err)
		}
	}
	m.AddAttribute(normals)
	return m
}

func TestNormalsRoundTrip(t *testing.T) {
	m := createOctahedronMesh(t)
	opts := DefaultOptions()
	if err := opts.SetQuantizationBits(Normal, 8); err != nil {
		t.Fatalf("SetQuantizationBits failed: %v", err)
	}
	data, err := EncodeMesh(m, opts, nil)
	if err != nil {
		t.Fatalf("EncodeMesh failed: %v", err)
	}
	decoded, err := DecodeMesh(data)
	if err != nil {
		t.Fatalf("DecodeMesh failed: %v", err)
	}

	// Match decoded vertices to inputs through positions, then compare
	// normals by angle.
	pos := decoded.NamedAttribute(Position)
	nrm := decoded.NamedAttribute(Normal)
	if pos == nil || nrm == nil {
		t.Fatal("decoded mesh is missing attributes")
	}
	maxAngle := float32(1.0 * math.Pi / 180)
	pv := make([]float32, 3)
	nv := make([]float32, 3)
	for p := 0; p < decoded.NumPoints(); p++ {
		if err := pos.Float32(AttributeValueIndex(p), pv); err != nil {
			t.Fatalf("Float32 failed: %v", err)
		}
		if err := nrm.Float32(AttributeValueIndex(p), nv); err != nil {
			t.Fatalf("Float32 failed: %v", err)
		}
		// The original normal equals the normalized position.
		want := vmath.Vec3{X: pv[0], Y: pv[1], Z: pv[2]}
		got := vmath.Vec3{X: nv[0], Y: nv[1], Z: nv[2]}
		if angle := want.AngleTo(got); angle > maxAngle {
			t.Errorf("point %d: normal off by %f rad", p, angle)
		}
	}
}

func TestIntegerPositionsBitExact(t *testing.T) {
	m := NewMesh()
	m.SetNumPoints(4)
	pos, err := NewPointAttribute(Position, DTInt32, 3, false)
	if err != nil {
		t.Fatalf("NewPointAttribute failed: %v", err)
	}
	pos.Reset(4)
	coords := [][3]int32{{0, 0, 0}, {1000, 0, -7}, {1000, 1000, 3}, {0, 1000, 12345}}
	for i, c := range coords {
		for k := 0; k < 3; k++ {
			pos.setComponentInt32(AttributeValueIndex(i), k, c[k])
		}
	}
	m.AddAttribute(pos)
	m.AddFace(Face{0, 1, 2})
	m.AddFace(Face{0, 2, 3})

	data, err := EncodeMesh(m, nil, nil)
	if err != nil {
		t.Fatalf("EncodeMesh failed: %v", err)
	}
	decoded, err := DecodeMesh(data)
	if err != nil {
		t.Fatalf("DecodeMesh failed: %v", err)
	}

	want := make(map[[3]int32]int)
	for _, c := range coords {
		want[c]++
	}
	dp := decoded.NamedAttribute(Position)
	for p := 0; p < decoded.NumPoints(); p++ {
		var c [3]int32
		for k := 0; k < 3; k++ {
			c[k] = dp.componentInt32(AttributeValueIndex(p), k)
		}
		want[c]--
	}
	for c, n := range want {
		if n != 0 {
			t.Errorf("integer position %v not preserved bit-for-bit (count %d)", c, n)
		}
	}
}

func TestCorruptedHeader(t *testing.T) {
	data, err := EncodeMesh(createTriangleMesh(t), nil, nil)
	if err != nil {
		t.Fatalf("EncodeMesh failed: %v", err)
	}
	data[4] = 'X' // "DRACO" -> "DRACX"
	if _, err := Decode(data); !errors.Is(err, ErrCorruptBitstream) {
		t.Errorf("expected ErrCorruptBitstream, got %v", err)
	}
}

func TestUnsupportedVersion(t *testing.T) {
	data, err := EncodeMesh(createTriangleMesh(t), nil, nil)
	if err != nil {
		t.Fatalf("EncodeMesh failed: %v", err)
	}
	data[5] = 9 // future major version
	if _, err := Decode(data); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestTruncatedStream(t *testing.T) {
	data, err := EncodeMesh(createQuadMesh(t), nil, nil)
	if err != nil {
		t.Fatalf("EncodeMesh failed: %v", err)
	}
	truncated := data[:len(data)-10]
	if _, err := Decode(truncated); !errors.Is(err, ErrBufferUnderflow) {
		t.Errorf("expected ErrBufferUnderflow, got %v", err)
	}
}

func TestInvalidInputs(t *testing.T) {
	if _, err := EncodeMesh(nil, nil, nil); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("nil mesh: expected ErrInvalidParameter, got %v", err)
	}

	// No position attribute.
	m := NewMesh()
	m.SetNumPoints(3)
	generic, err := NewPointAttribute(Generic, DTFloat32, 1, false)
	if err != nil {
		t.Fatalf("NewPointAttribute failed: %v", err)
	}
	generic.Reset(3)
	m.AddAttribute(generic)
	m.AddFace(Face{0, 1, 2})
	if _, err := EncodeMesh(m, nil, nil); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("no position: expected ErrInvalidParameter, got %v", err)
	}

	// Face index out of range.
	bad := createTriangleMesh(t)
	bad.SetFace(0, Face{0, 1, 7})
	if _, err := EncodeMesh(bad, nil, nil); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("bad face: expected ErrInvalidParameter, got %v", err)
	}

	// Isolated vertex under EdgeBreaker.
	isolated := createMesh(t, [][]float32{
		{0, 0, 0}, {1, 0, 0}, {0.5, 1, 0}, {5, 5, 5},
	}, []Face{{0, 1, 2}})
	if _, err := EncodeMesh(isolated, nil, nil); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("isolated vertex: expected ErrInvalidParameter, got %v", err)
	}
}

func TestNonManifoldRejected(t *testing.T) {
	m := createMesh(t, [][]float32{
		{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 1},
	}, []Face{{0, 1, 2}, {1, 0, 3}, {0, 1, 4}})
	if _, err := EncodeMesh(m, nil, nil); !errors.Is(err, ErrNonManifold) {
		t.Errorf("expected ErrNonManifold, got %v", err)
	}
}

func TestZigZagRoundTrip(t *testing.T) {
	values := []int32{0, -1, 1, -2, 2, 1 << 30, -(1 << 30), math.MaxInt32, math.MinInt32}
	for _, v := range values {
		if got := zigzagDecode(zigzagEncode(v)); got != v {
			t.Errorf("zigzag(%d) roundtrips to %d", v, got)
		}
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	meta := &Metadata{}
	meta.Add("generator", []byte("dracodec-test"))
	meta.Add("units", []byte("meters"))

	data, err := EncodeMesh(createTriangleMesh(t), nil, meta)
	if err != nil {
		t.Fatalf("EncodeMesh failed: %v", err)
	}
	_, decoded, err := DecodeWithMetadata(data)
	if err != nil {
		t.Fatalf("DecodeWithMetadata failed: %v", err)
	}
	if decoded == nil {
		t.Fatal("expected metadata")
	}
	if v, ok := decoded.Get("generator"); !ok || string(v) != "dracodec-test" {
		t.Errorf("generator entry = %q, present %v", v, ok)
	}
	if v, ok := decoded.Get("units"); !ok || string(v) != "meters" {
		t.Errorf("units entry = %q, present %v", v, ok)
	}
}

func TestMetadataDeflate(t *testing.T) {
	meta := &Metadata{}
	long := bytes.Repeat([]byte("abcdefgh"), 64)
	meta.Add("blob", long)

	opts := DefaultOptions()
	opts.SetMetadataDeflate(true)
	data, err := EncodeMesh(createTriangleMesh(t), opts, meta)
	if err != nil {
		t.Fatalf("EncodeMesh failed: %v", err)
	}
	_, decoded, err := DecodeWithMetadata(data)
	if err != nil {
		t.Fatalf("DecodeWithMetadata failed: %v", err)
	}
	if v, ok := decoded.Get("blob"); !ok || !bytes.Equal(v, long) {
		t.Error("deflated metadata did not roundtrip")
	}
}

func TestDeterministicOutput(t *testing.T) {
	m := createOctahedronMesh(t)
	a, err := EncodeMesh(m, nil, nil)
	if err != nil {
		t.Fatalf("EncodeMesh failed: %v", err)
	}
	b, err := EncodeMesh(m, nil, nil)
	if err != nil {
		t.Fatalf("EncodeMesh failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("two encodes of the same input differ")
	}
}

func TestSpeedSettingsRoundTrip(t *testing.T) {
	m := createOctahedronMesh(t)
	for speed := 0; speed <= 10; speed += 2 {
		opts := DefaultOptions()
		if err := opts.SetSpeed(speed, speed); err != nil {
			t.Fatalf("SetSpeed failed: %v", err)
		}
		data, err := EncodeMesh(m, opts, nil)
		if err != nil {
			t.Fatalf("speed %d: EncodeMesh failed: %v", speed, err)
		}
		decoded, err := DecodeMesh(data)
		if err != nil {
			t.Fatalf("speed %d: DecodeMesh failed: %v", speed, err)
		}
		if decoded.NumFaces() != m.NumFaces() || decoded.NumPoints() != m.NumPoints() {
			t.Fatalf("speed %d: size mismatch", speed)
		}
	}
}

func TestMappedAttributeRoundTrip(t *testing.T) {
	// Four points sharing two color values.
	m := createQuadMesh(t)
	color, err := NewPointAttribute(Color, DTUint8, 3, true)
	if err != nil {
		t.Fatalf("NewPointAttribute failed: %v", err)
	}
	color.Reset(2)
	if err := color.SetValue(0, []byte{255, 0, 0}); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	if err := color.SetValue(1, []byte{0, 0, 255}); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	color.SetExplicitMapping([]AttributeValueIndex{0, 0, 1, 1})
	m.AddAttribute(color)

	data, err := EncodeMesh(m, nil, nil)
	if err != nil {
		t.Fatalf("EncodeMesh failed: %v", err)
	}
	decoded, err := DecodeMesh(data)
	if err != nil {
		t.Fatalf("DecodeMesh failed: %v", err)
	}
	dc := decoded.NamedAttribute(Color)
	if dc == nil {
		t.Fatal("decoded mesh lost the color attribute")
	}
	reds, blues := 0, 0
	for p := 0; p < decoded.NumPoints(); p++ {
		v, err := dc.Value(dc.MappedIndex(PointIndex(p)))
		if err != nil {
			t.Fatalf("Value failed: %v", err)
		}
		switch {
		case v[0] == 255 && v[2] == 0:
			reds++
		case v[0] == 0 && v[2] == 255:
			blues++
		default:
			t.Errorf("point %d: unexpected color %v", p, v)
		}
	}
	if reds != 2 || blues != 2 {
		t.Errorf("expected 2 red and 2 blue points, got %d and %d", reds, blues)
	}
}
