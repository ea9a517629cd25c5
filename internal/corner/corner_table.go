// Package corner implements the half-edge connectivity substrate for
// triangle meshes: corner indexing, opposite-corner pairing, boundary
// analysis and the deterministic traversers that sequence attribute
// values.
//
// For corner c of face c/3: Next(c) and Prev(c) rotate within the face,
// Opposite(c) crosses the edge opposite c. Construction groups corners by
// unordered edge key and pairs the two corners sharing each edge; a third
// corner on an edge makes the mesh non-manifold.
package corner

import (
	"fmt"

	"github.com/Faultbox/dracodec/internal/status"
)

// VertexIndex identifies a connectivity vertex.
type VertexIndex uint32

// CornerIndex identifies one of the 3F corners.
type CornerIndex uint32

// FaceIndex identifies a triangle.
type FaceIndex uint32

// Invalid index sentinels.
const (
	InvalidVertex VertexIndex = ^VertexIndex(0)
	InvalidCorner CornerIndex = ^CornerIndex(0)
	InvalidFace   FaceIndex   = ^FaceIndex(0)
)

// Table is a corner table over a fixed face list.
type Table struct {
	cornerToVertex []VertexIndex
	opposite       []CornerIndex
	leftMost       []CornerIndex // per vertex, the left-most corner of its fan
	numVertices    int
}

// NewTable builds the table from faces. numVertices bounds the vertex
// ids; every face index must be below it. Non-manifold edges and
// vertices fail with ErrNonManifold.
func NewTable(faces [][3]VertexIndex, numVertices int) (*Table, error) {
	t := &Table{
		cornerToVertex: make([]VertexIndex, len(faces)*3),
		opposite:       make([]CornerIndex, len(faces)*3),
		leftMost:       make([]CornerIndex, numVertices),
		numVertices:    numVertices,
	}
	for i := range t.opposite {
		t.opposite[i] = InvalidCorner
	}
	for i := range t.leftMost {
		t.leftMost[i] = InvalidCorner
	}
	for f, face := range faces {
		for k := 0; k < 3; k++ {
			v := face[k]
			if int(v) >= numVertices {
				return nil, fmt.Errorf("%w: face %d references vertex %d of %d", status.ErrInvalidParameter, f, v, numVertices)
			}
			t.cornerToVertex[3*f+k] = v
		}
	}
	if err := t.computeOpposites(); err != nil {
		return nil, err
	}
	if err := t.computeLeftMostCorners(); err != nil {
		return nil, err
	}
	return t, nil
}

// computeOpposites pairs corners across shared edges. The edge key is the
// unordered (min, max) vertex pair of the edge opposite each corner.
func (t *Table) computeOpposites() error {
	type edgeKey struct {
		a, b VertexIndex
	}
	edges := make(map[edgeKey]CornerIndex, len(t.cornerToVertex))
	for c := 0; c < len(t.cornerToVertex); c++ {
		ci := CornerIndex(c)
		va := t.Vertex(t.Next(ci))
		vb := t.Vertex(t.Prev(ci))
		key := edgeKey{va, vb}
		if key.a > key.b {
			key.a, key.b = key.b, key.a
		}
		if other, ok := edges[key]; ok {
			if other == InvalidCorner {
				return fmt.Errorf("%w: edge (%d,%d) shared by more than two faces", status.ErrNonManifold, key.a, key.b)
			}
			// Two corners on the same oriented side indicate a mirrored
			// face pair; that edge is non-manifold as well.
			if t.Vertex(t.Next(other)) == va {
				return fmt.Errorf("%w: inconsistently oriented faces on edge (%d,%d)", status.ErrNonManifold, key.a, key.b)
			}
			t.opposite[c] = other
			t.opposite[other] = ci
			edges[key] = InvalidCorner
		} else {
			edges[key] = ci
		}
	}
	return nil
}

// computeLeftMostCorners assigns each vertex the left-most corner of its
// fan (the boundary corner when open, any corner when closed) and
// verifies the fan covers every incident corner.
func (t *Table) computeLeftMostCorners() error {
	visitedVertex := make([]bool, t.numVertices)
	visitedCorner := make([]bool, len(t.cornerToVertex))

	for c := 0; c < len(t.cornerToVertex); c++ {
		if visitedCorner[c] {
			continue
		}
		v := t.cornerToVertex[c]
		if visitedVertex[v] {
			// A second, disconnected fan around an already walked vertex.
			return fmt.Errorf("%w: vertex %d joins disconnected fans", status.ErrNonManifold, v)
		}
		visitedVertex[v] = true
		// Swing left to the fan start (boundary corner or full circle).
		first := CornerIndex(c)
		act := first
		for {
			next := t.SwingLeft(act)
			if next == InvalidCorner || next == first {
				break
			}
			act = next
		}
		start := act
		t.leftMost[v] = start
		for act != InvalidCorner {
			if visitedCorner[act] {
				break
			}
			visitedCorner[act] = true
			act = t.SwingRight(act)
			if act == start {
				break
			}
		}
	}
	return nil
}

// NumCorners returns 3F.
func (t *Table) NumCorners() int {
	return len(t.cornerToVertex)
}

// NumFaces returns F.
func (t *Table) NumFaces() int {
	return len(t.cornerToVertex) / 3
}

// NumVertices returns the vertex id bound.
func (t *Table) NumVertices() int {
	return t.numVertices
}

// Next rotates to the following corner within the face.
func (t *Table) Next(c CornerIndex) CornerIndex {
	if c == InvalidCorner {
		return c
	}
	if (c+1)%3 != 0 {
		return c + 1
	}
	return c - 2
}

// Prev rotates to the preceding corner within the face.
func (t *Table) Prev(c CornerIndex) CornerIndex {
	if c == InvalidCorner {
		return c
	}
	if c%3 != 0 {
		return c - 1
	}
	return c + 2
}

// Vertex returns the vertex at corner c.
func (t *Table) Vertex(c CornerIndex) VertexIndex {
	if c == InvalidCorner {
		return InvalidVertex
	}
	return t.cornerToVertex[c]
}

// Face returns the face owning corner c.
func (t *Table) Face(c CornerIndex) FaceIndex {
	if c == InvalidCorner {
		return InvalidFace
	}
	return FaceIndex(c / 3)
}

// FirstCorner returns the tip corner of face f.
func (t *Table) FirstCorner(f FaceIndex) CornerIndex {
	return CornerIndex(f * 3)
}

// Opposite returns the corner across the edge opposite c, or
// InvalidCorner on a boundary.
func (t *Table) Opposite(c CornerIndex) CornerIndex {
	if c == InvalidCorner {
		return c
	}
	return t.opposite[c]
}

// LeftMostCorner returns the stored fan-start corner of v.
func (t *Table) LeftMostCorner(v VertexIndex) CornerIndex {
	if int(v) >= len(t.leftMost) {
		return InvalidCorner
	}
	return t.leftMost[v]
}

// LeftCorner returns Opposite(Prev(c)).
func (t *Table) LeftCorner(c CornerIndex) CornerIndex {
	return t.Opposite(t.Prev(c))
}

// RightCorner returns Opposite(Next(c)).
func (t *Table) RightCorner(c CornerIndex) CornerIndex {
	return t.Opposite(t.Next(c))
}

// SwingRight rotates clockwise around the vertex at c.
func (t *Table) SwingRight(c CornerIndex) CornerIndex {
	return t.Next(t.Opposite(t.Next(c)))
}

// SwingLeft rotates counter-clockwise around the vertex at c.
func (t *Table) SwingLeft(c CornerIndex) CornerIndex {
	return t.Prev(t.Opposite(t.Prev(c)))
}

// IsDegenerated reports whether face f repeats a vertex.
func (t *Table) IsDegenerated(f FaceIndex) bool {
	c := t.FirstCorner(f)
	v0 := t.Vertex(c)
	v1 := t.Vertex(t.Next(c))
	v2 := t.Vertex(t.Prev(c))
	return v0 == v1 || v1 == v2 || v2 == v0
}

// IsOnBoundary reports whether vertex v touches an open edge.
func (t *Table) IsOnBoundary(v VertexIndex) bool {
	start := t.LeftMostCorner(v)
	if start == InvalidCorner {
		return true
	}
	c := start
	for {
		if t.Opposite(c) == InvalidCorner {
			return true
		}
		if t.Opposite(t.Prev(c)) == InvalidCorner {
			return true
		}
		c = t.SwingRight(c)
		if c == InvalidCorner {
			return true
		}
		if c == start {
			return false
		}
	}
}

// The EdgeBreaker decoder assembles connectivity incrementally through
// Builder (builder.go), whose Finalize produces a Table.
