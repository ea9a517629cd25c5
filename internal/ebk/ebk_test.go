package ebk

import (
	"testing"

	"github.com/Faultbox/dracodec/internal/bitio"
	"github.com/Faultbox/dracodec/internal/corner"
)

// roundTrip encodes the faces, decodes them back and checks the
// reconstructed topology is isomorphic to the input.
func roundTrip(t *testing.T, faces [][3]corner.VertexIndex, numVertices int) *DecodedConnectivity {
	t.Helper()
	table, err := corner.NewTable(faces, numVertices)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	buf := bitio.NewEncoder()
	enc, err := EncodeConnectivity(table, corner.TraversalDepthFirst, buf)
	if err != nil {
		t.Fatalf("EncodeConnectivity failed: %v", err)
	}
	if len(enc.Seeds) != len(faces) {
		t.Fatalf("expected %d seeds, got %d", len(faces), len(enc.Seeds))
	}

	dec := bitio.NewDecoder(buf.Bytes())
	conn, err := DecodeConnectivity(dec)
	if err != nil {
		t.Fatalf("DecodeConnectivity failed: %v", err)
	}
	if len(conn.Faces) != len(faces) {
		t.Fatalf("expected %d faces, got %d", len(faces), len(conn.Faces))
	}
	if conn.NumPoints != numVertices {
		t.Fatalf("expected %d points, got %d", numVertices, conn.NumPoints)
	}
	if dec.Remaining() != 0 {
		t.Fatalf("connectivity block not fully consumed, %d bytes left", dec.Remaining())
	}

	// Per-vertex valence distribution is a topology invariant.
	wantValence := valenceHistogram(faces, numVertices)
	gotFaces := make([][3]corner.VertexIndex, len(conn.Faces))
	copy(gotFaces, conn.Faces)
	gotValence := valenceHistogram(gotFaces, conn.NumPoints)
	for valence, count := range wantValence {
		if gotValence[valence] != count {
			t.Errorf("valence %d: expected %d vertices, got %d", valence, count, gotValence[valence])
		}
	}
	return conn
}

func valenceHistogram(faces [][3]corner.VertexIndex, numVertices int) map[int]int {
	perVertex := make([]int, numVertices)
	for _, f := range faces {
		for _, v := range f {
			perVertex[v]++
		}
	}
	hist := make(map[int]int)
	for _, n := range perVertex {
		hist[n]++
	}
	return hist
}

func TestSingleTriangle(t *testing.T) {
	roundTrip(t, [][3]corner.VertexIndex{{0, 1, 2}}, 3)
}

func TestQuad(t *testing.T) {
	roundTrip(t, [][3]corner.VertexIndex{{0, 1, 2}, {0, 2, 3}}, 4)
}

func TestStrip(t *testing.T) {
	roundTrip(t, [][3]corner.VertexIndex{
		{0, 1, 2}, {2, 1, 3}, {2, 3, 4}, {4, 3, 5}, {4, 5, 6}, {6, 5, 7},
	}, 8)
}

func TestClosedTetrahedron(t *testing.T) {
	roundTrip(t, [][3]corner.VertexIndex{
		{0, 1, 2}, {0, 3, 1}, {0, 2, 3}, {1, 3, 2},
	}, 4)
}

func TestClosedOctahedron(t *testing.T) {
	roundTrip(t, [][3]corner.VertexIndex{
		{0, 2, 4}, {2, 1, 4}, {1, 3, 4}, {3, 0, 4},
		{2, 0, 5}, {1, 2, 5}, {3, 1, 5}, {0, 3, 5},
	}, 6)
}

func TestTwoComponents(t *testing.T) {
	roundTrip(t, [][3]corner.VertexIndex{
		{0, 1, 2}, {0, 2, 3},
		{4, 5, 6},
	}, 7)
}

func TestFanWithInteriorVertex(t *testing.T) {
	// A full fan: vertex 0 is interior, the rim is a hole.
	roundTrip(t, [][3]corner.VertexIndex{
		{0, 1, 2}, {0, 2, 3}, {0, 3, 4}, {0, 4, 5}, {0, 5, 1},
	}, 6)
}

func TestSymbolConservation(t *testing.T) {
	faces := [][3]corner.VertexIndex{
		{0, 1, 2}, {2, 1, 3}, {2, 3, 4},
	}
	table, err := corner.NewTable(faces, 5)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	buf := bitio.NewEncoder()
	enc, err := EncodeConnectivity(table, corner.TraversalDepthFirst, buf)
	if err != nil {
		t.Fatalf("EncodeConnectivity failed: %v", err)
	}
	// Boundary-seeded component: one symbol per face.
	if enc.NumSymbols != len(faces) {
		t.Errorf("expected %d symbols, got %d", len(faces), enc.NumSymbols)
	}
}

func TestTruncatedConnectivity(t *testing.T) {
	faces := [][3]corner.VertexIndex{{0, 1, 2}, {0, 2, 3}}
	table, err := corner.NewTable(faces, 4)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	buf := bitio.NewEncoder()
	if _, err := EncodeConnectivity(table, corner.TraversalDepthFirst, buf); err != nil {
		t.Fatalf("EncodeConnectivity failed: %v", err)
	}
	data := buf.Bytes()
	for cut := 1; cut < len(data); cut++ {
		if _, err := DecodeConnectivity(bitio.NewDecoder(data[:cut])); err == nil {
			t.Errorf("truncation at %d of %d decoded without error", cut, len(data))
		}
	}
}
