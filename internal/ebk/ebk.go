// Package ebk implements the EdgeBreaker connectivity codec. The encoder
// walks each connected component face by face emitting the symbols
// {C, L, R, S, E}; handles produce topology split events and holes are
// folded into the traversal by pre-visiting boundary vertices. The
// decoder consumes the symbol stream in reverse, growing a corner table
// one face per symbol.
package ebk

// Traversal symbols.
const (
	symC = 0
	symS = 1
	symL = 2
	symR = 3
	symE = 4
)

// Wire bit patterns: C is a single zero bit, the rest are three bits
// (LSB first).
var symbolBitPattern = [5]uint32{0, 1, 3, 5, 7}
var symbolBitLength = [5]int{1, 3, 3, 3, 3}

// Edges of a face referenced by topology split events.
const (
	leftFaceEdge  = 0
	rightFaceEdge = 1
)

// splitEvent records a handle: the S symbol whose branch face was
// already traversed, and the symbol/edge it reattaches to.
type splitEvent struct {
	splitSymbolID  uint32
	sourceSymbolID uint32
	sourceEdge     int
}
