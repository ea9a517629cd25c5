package corner

import (
	"fmt"

	"github.com/Faultbox/dracodec/internal/status"
)

// Builder assembles a corner table incrementally. The EdgeBreaker decoder
// creates faces one at a time while reconstructing connectivity and only
// afterwards knows the final vertex ids; Finalize compacts them and
// produces an immutable Table.
type Builder struct {
	cornerToVertex []VertexIndex
	opposite       []CornerIndex
	leftMost       map[VertexIndex]CornerIndex
}

// NewBuilder returns a builder for numFaces faces with all corners
// unmapped.
func NewBuilder(numFaces int) *Builder {
	b := &Builder{
		cornerToVertex: make([]VertexIndex, numFaces*3),
		opposite:       make([]CornerIndex, numFaces*3),
		leftMost:       make(map[VertexIndex]CornerIndex),
	}
	for i := range b.cornerToVertex {
		b.cornerToVertex[i] = InvalidVertex
		b.opposite[i] = InvalidCorner
	}
	return b
}

// NumCorners returns 3F.
func (b *Builder) NumCorners() int {
	return len(b.cornerToVertex)
}

// Next rotates to the following corner within the face.
func (b *Builder) Next(c CornerIndex) CornerIndex {
	if c == InvalidCorner {
		return c
	}
	if (c+1)%3 != 0 {
		return c + 1
	}
	return c - 2
}

// Prev rotates to the preceding corner within the face.
func (b *Builder) Prev(c CornerIndex) CornerIndex {
	if c == InvalidCorner {
		return c
	}
	if c%3 != 0 {
		return c - 1
	}
	return c + 2
}

// MapCornerToVertex assigns vertex v to corner c.
func (b *Builder) MapCornerToVertex(c CornerIndex, v VertexIndex) {
	b.cornerToVertex[c] = v
}

// Vertex returns the vertex at corner c.
func (b *Builder) Vertex(c CornerIndex) VertexIndex {
	if c == InvalidCorner || int(c) >= len(b.cornerToVertex) {
		return InvalidVertex
	}
	return b.cornerToVertex[c]
}

// Link sets mutual opposites for c1 and c2.
func (b *Builder) Link(c1, c2 CornerIndex) {
	b.opposite[c1] = c2
	b.opposite[c2] = c1
}

// Opposite returns the corner across from c, or InvalidCorner.
func (b *Builder) Opposite(c CornerIndex) CornerIndex {
	if c == InvalidCorner || int(c) >= len(b.opposite) {
		return InvalidCorner
	}
	return b.opposite[c]
}

// SetLeftMost records c as the working fan-start corner of v.
func (b *Builder) SetLeftMost(v VertexIndex, c CornerIndex) {
	b.leftMost[v] = c
}

// LeftMost returns the working fan-start corner of v.
func (b *Builder) LeftMost(v VertexIndex) CornerIndex {
	if c, ok := b.leftMost[v]; ok {
		return c
	}
	return InvalidCorner
}

// MakeVertexIsolated removes v from the fan-start map after a merge.
func (b *Builder) MakeVertexIsolated(v VertexIndex) {
	delete(b.leftMost, v)
}

// SwingLeft rotates counter-clockwise around the vertex at c.
func (b *Builder) SwingLeft(c CornerIndex) CornerIndex {
	return b.Prev(b.Opposite(b.Prev(c)))
}

// SwingRight rotates clockwise around the vertex at c.
func (b *Builder) SwingRight(c CornerIndex) CornerIndex {
	return b.Next(b.Opposite(b.Next(c)))
}

// RemapVertices rewrites every corner's vertex through oldToNew.
func (b *Builder) RemapVertices(oldToNew map[VertexIndex]VertexIndex) {
	for i, v := range b.cornerToVertex {
		if nv, ok := oldToNew[v]; ok {
			b.cornerToVertex[i] = nv
		}
	}
}

// Finalize freezes the builder into a Table over numVertices compacted
// vertex ids, recomputing the fan-start corners from the final
// connectivity.
func (b *Builder) Finalize(numVertices int) (*Table, error) {
	t := &Table{
		cornerToVertex: b.cornerToVertex,
		opposite:       b.opposite,
		leftMost:       make([]CornerIndex, numVertices),
		numVertices:    numVertices,
	}
	for i := range t.leftMost {
		t.leftMost[i] = InvalidCorner
	}
	for _, v := range t.cornerToVertex {
		if v == InvalidVertex || int(v) >= numVertices {
			return nil, fmt.Errorf("%w: unmapped corner after reconstruction", status.ErrCorruptBitstream)
		}
	}
	if err := t.computeLeftMostCorners(); err != nil {
		return nil, fmt.Errorf("%w: reconstructed connectivity is inconsistent", status.ErrCorruptBitstream)
	}
	return t, nil
}
