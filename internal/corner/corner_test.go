package corner

import (
	"errors"
	"testing"

	"github.com/Faultbox/dracodec/internal/status"
)

// quadFaces returns two triangles sharing the edge (0, 2).
func quadFaces() [][3]VertexIndex {
	return [][3]VertexIndex{
		{0, 1, 2},
		{0, 2, 3},
	}
}

func TestNextPrevFace(t *testing.T) {
	table, err := NewTable(quadFaces(), 4)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	for c := CornerIndex(0); c < 6; c++ {
		if table.Next(table.Next(table.Next(c))) != c {
			t.Errorf("Next^3 is not identity at corner %d", c)
		}
		if table.Prev(table.Next(c)) != c {
			t.Errorf("Prev(Next) is not identity at corner %d", c)
		}
		if table.Face(c) != FaceIndex(c/3) {
			t.Errorf("Face(%d) = %d", c, table.Face(c))
		}
	}
}

func TestOppositeInvolution(t *testing.T) {
	table, err := NewTable(quadFaces(), 4)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	numLinked := 0
	for c := CornerIndex(0); c < 6; c++ {
		o := table.Opposite(c)
		if o == InvalidCorner {
			continue
		}
		numLinked++
		if table.Opposite(o) != c {
			t.Errorf("Opposite is not an involution at corner %d", c)
		}
		// The linked corners must agree on the shared edge.
		ce := [2]VertexIndex{table.Vertex(table.Next(c)), table.Vertex(table.Prev(c))}
		oe := [2]VertexIndex{table.Vertex(table.Next(o)), table.Vertex(table.Prev(o))}
		if !(ce[0] == oe[1] && ce[1] == oe[0]) {
			t.Errorf("corners %d and %d disagree on their edge: %v vs %v", c, o, ce, oe)
		}
	}
	// One interior edge, two linked corners.
	if numLinked != 2 {
		t.Errorf("expected 2 linked corners, got %d", numLinked)
	}
}

func TestBoundaryDetection(t *testing.T) {
	table, err := NewTable(quadFaces(), 4)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	for v := VertexIndex(0); v < 4; v++ {
		if !table.IsOnBoundary(v) {
			t.Errorf("vertex %d should be on the quad boundary", v)
		}
	}
}

func TestClosedTetrahedron(t *testing.T) {
	faces := [][3]VertexIndex{
		{0, 1, 2},
		{0, 3, 1},
		{0, 2, 3},
		{1, 3, 2},
	}
	table, err := NewTable(faces, 4)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	for c := CornerIndex(0); c < 12; c++ {
		if table.Opposite(c) == InvalidCorner {
			t.Errorf("closed mesh has boundary at corner %d", c)
		}
	}
	for v := VertexIndex(0); v < 4; v++ {
		if table.IsOnBoundary(v) {
			t.Errorf("vertex %d flagged as boundary on a closed mesh", v)
		}
	}
}

func TestNonManifoldEdgeRejected(t *testing.T) {
	// Three faces share the edge (0, 1).
	faces := [][3]VertexIndex{
		{0, 1, 2},
		{1, 0, 3},
		{0, 1, 4},
	}
	if _, err := NewTable(faces, 5); !errors.Is(err, status.ErrNonManifold) {
		t.Errorf("expected ErrNonManifold, got %v", err)
	}
}

func TestNonManifoldVertexRejected(t *testing.T) {
	// Two triangle fans joined only at vertex 0.
	faces := [][3]VertexIndex{
		{0, 1, 2},
		{0, 3, 4},
	}
	if _, err := NewTable(faces, 5); !errors.Is(err, status.ErrNonManifold) {
		t.Errorf("expected ErrNonManifold, got %v", err)
	}
}

func TestTraverseVisitsAllVertices(t *testing.T) {
	table, err := NewTable(quadFaces(), 4)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	seeds := []CornerIndex{table.FirstCorner(0), table.FirstCorner(1)}
	for _, method := range []int{TraversalDepthFirst, TraversalMaxPredictionDegree} {
		seq := Traverse(method, table, seeds)
		if len(seq.Order) != 4 {
			t.Fatalf("method %d: visited %d of 4 vertices", method, len(seq.Order))
		}
		seen := make(map[VertexIndex]bool)
		for i, v := range seq.Order {
			if seen[v] {
				t.Fatalf("method %d: vertex %d visited twice", method, v)
			}
			seen[v] = true
			if seq.VertexToData[v] != int32(i) {
				t.Errorf("method %d: VertexToData[%d] = %d, want %d", method, v, seq.VertexToData[v], i)
			}
			if table.Vertex(seq.DataToCorner[i]) != v {
				t.Errorf("method %d: DataToCorner[%d] does not point at vertex %d", method, i, v)
			}
		}
	}
}
