package ebk

import (
	"fmt"
	"sort"

	"github.com/Faultbox/dracodec/internal/bitio"
	"github.com/Faultbox/dracodec/internal/corner"
	"github.com/Faultbox/dracodec/internal/rans"
	"github.com/Faultbox/dracodec/internal/status"
)

// EncodedConnectivity carries the encoder-side traversal outcome needed
// to sequence attributes: the seed corners, ordered so that the k-th
// seed corresponds to the k-th face the decoder creates.
type EncodedConnectivity struct {
	Seeds      []corner.CornerIndex
	NumSymbols int
}

type connectivityEncoder struct {
	table *corner.Table

	visitedFaces    []bool
	visitedVertices []bool
	vertexHoleID    []int32
	visitedHoles    []bool

	symbols           []uint8
	processedCorners  []corner.CornerIndex
	initFaceCorners   []corner.CornerIndex
	startFaceEncoder  *rans.BitEncoder
	faceToSplitSymbol map[corner.FaceIndex]uint32
	splitEvents       []splitEvent
	lastSymbolID      int
}

// EncodeConnectivity runs EdgeBreaker over the corner table and writes
// the connectivity block (traversal method byte excluded; the caller
// frames it). traversalMethod is not used or written here; the caller
// records the method byte for the decoder.
func EncodeConnectivity(t *corner.Table, traversalMethod int, buf *bitio.Encoder) (*EncodedConnectivity, error) {
	e := &connectivityEncoder{
		table:             t,
		visitedFaces:      make([]bool, t.NumFaces()),
		visitedVertices:   make([]bool, t.NumVertices()),
		vertexHoleID:      make([]int32, t.NumVertices()),
		startFaceEncoder:  rans.NewBitEncoder(),
		faceToSplitSymbol: make(map[corner.FaceIndex]uint32),
		lastSymbolID:      -1,
	}
	for i := range e.vertexHoleID {
		e.vertexHoleID[i] = -1
	}
	e.startFaceEncoder.StartEncoding()
	e.findHoles()

	for f := 0; f < t.NumFaces(); f++ {
		fi := corner.FaceIndex(f)
		if e.visitedFaces[f] {
			continue
		}
		startCorner, interior := e.findInitFaceConfiguration(fi)
		e.startFaceEncoder.EncodeBit(interior)
		if interior {
			for _, c := range []corner.CornerIndex{startCorner, t.Next(startCorner), t.Prev(startCorner)} {
				e.visitedVertices[t.Vertex(c)] = true
			}
			e.visitedFaces[f] = true
			e.initFaceCorners = append(e.initFaceCorners, t.Next(startCorner))
			opp := t.Opposite(t.Next(startCorner))
			if opp != corner.InvalidCorner && !e.visitedFaces[t.Face(opp)] {
				if err := e.encodeFromCorner(opp); err != nil {
					return nil, err
				}
			}
		} else {
			e.encodeHole(t.Next(startCorner), true)
			if err := e.encodeFromCorner(startCorner); err != nil {
				return nil, err
			}
		}
	}

	if len(e.symbols) != t.NumFaces()-len(e.initFaceCorners) {
		return nil, fmt.Errorf("%w: edgebreaker emitted %d symbols for %d faces", status.ErrInternal, len(e.symbols), t.NumFaces())
	}

	// Seed order matches the decoder's face creation order: reversed
	// processed corners, then the interior start faces.
	seeds := make([]corner.CornerIndex, 0, len(e.processedCorners)+len(e.initFaceCorners))
	for i := len(e.processedCorners) - 1; i >= 0; i-- {
		seeds = append(seeds, e.processedCorners[i])
	}
	seeds = append(seeds, e.initFaceCorners...)

	if err := e.writeConnectivity(buf); err != nil {
		return nil, err
	}
	return &EncodedConnectivity{Seeds: seeds, NumSymbols: len(e.symbols)}, nil
}

// findHoles assigns a hole id to every vertex on each boundary loop.
func (e *connectivityEncoder) findHoles() {
	t := e.table
	visited := make([]bool, t.NumCorners())
	numHoles := 0
	for c := 0; c < t.NumCorners(); c++ {
		ci := corner.CornerIndex(c)
		if visited[c] || t.Opposite(ci) != corner.InvalidCorner {
			continue
		}
		holeID := int32(numHoles)
		numHoles++
		cur := ci
		for {
			visited[cur] = true
			e.vertexHoleID[t.Vertex(t.Next(cur))] = holeID
			e.vertexHoleID[t.Vertex(t.Prev(cur))] = holeID
			// Advance to the next boundary edge around the loop.
			cur = t.Next(cur)
			for t.Opposite(cur) != corner.InvalidCorner {
				cur = t.Next(t.Opposite(cur))
			}
			if cur == ci {
				break
			}
		}
	}
	e.visitedHoles = make([]bool, numHoles)
}

// findInitFaceConfiguration picks the traversal entry for a component.
// Interior configuration (no boundary contact) starts anywhere on the
// face; otherwise the returned corner faces a boundary edge.
func (e *connectivityEncoder) findInitFaceConfiguration(f corner.FaceIndex) (corner.CornerIndex, bool) {
	t := e.table
	c := t.FirstCorner(f)
	for i := 0; i < 3; i++ {
		if t.Opposite(c) == corner.InvalidCorner {
			return c, false
		}
		if e.vertexHoleID[t.Vertex(c)] != -1 {
			// Swing right to the boundary and face its edge.
			act := c
			for {
				right := t.SwingRight(act)
				if right == corner.InvalidCorner {
					break
				}
				act = right
			}
			return t.Prev(act), false
		}
		c = t.Next(c)
	}
	return t.FirstCorner(f), true
}

// encodeHole walks a boundary loop marking its vertices visited so the
// traversal never emits C for them.
func (e *connectivityEncoder) encodeHole(startCorner corner.CornerIndex, markFirstVertex bool) {
	t := e.table
	c := t.Prev(startCorner)
	for t.Opposite(c) != corner.InvalidCorner {
		c = t.Prev(t.Opposite(c))
	}
	startVertex := t.Vertex(startCorner)
	if markFirstVertex {
		e.visitedVertices[startVertex] = true
	}
	if id := e.vertexHoleID[startVertex]; id >= 0 {
		e.visitedHoles[id] = true
	}
	act := t.Vertex(t.Prev(c))
	for act != startVertex {
		e.visitedVertices[act] = true
		c = t.Next(c)
		for t.Opposite(c) != corner.InvalidCorner {
			c = t.Next(t.Opposite(c))
		}
		act = t.Vertex(t.Prev(c))
	}
}

func (e *connectivityEncoder) checkSplitEvent(srcSymbolID int, srcEdge int, neighborFace corner.FaceIndex) {
	if splitID, ok := e.faceToSplitSymbol[neighborFace]; ok {
		e.splitEvents = append(e.splitEvents, splitEvent{
			splitSymbolID:  splitID,
			sourceSymbolID: uint32(srcSymbolID),
			sourceEdge:     srcEdge,
		})
		delete(e.faceToSplitSymbol, neighborFace)
	}
}

// encodeFromCorner runs the symbol-emitting traversal from one gate.
func (e *connectivityEncoder) encodeFromCorner(start corner.CornerIndex) error {
	t := e.table
	stack := []corner.CornerIndex{start}
	numFaces := t.NumFaces()

	for len(stack) > 0 {
		cornerID := stack[len(stack)-1]
		if cornerID == corner.InvalidCorner || e.visitedFaces[t.Face(cornerID)] {
			stack = stack[:len(stack)-1]
			continue
		}
		for steps := 0; steps < numFaces; steps++ {
			e.lastSymbolID++
			faceID := t.Face(cornerID)
			e.visitedFaces[faceID] = true
			e.processedCorners = append(e.processedCorners, cornerID)

			vertID := t.Vertex(cornerID)
			onBoundary := e.vertexHoleID[vertID] != -1
			if !e.visitedVertices[vertID] {
				e.visitedVertices[vertID] = true
				if !onBoundary {
					e.symbols = append(e.symbols, symC)
					cornerID = t.RightCorner(cornerID)
					continue
				}
			}

			rightCorner := t.RightCorner(cornerID)
			leftCorner := t.LeftCorner(cornerID)
			rightFace := t.Face(rightCorner)
			leftFace := t.Face(leftCorner)
			rightVisited := rightFace == corner.InvalidFace || e.visitedFaces[rightFace]
			leftVisited := leftFace == corner.InvalidFace || e.visitedFaces[leftFace]

			if rightVisited {
				if rightFace != corner.InvalidFace {
					e.checkSplitEvent(e.lastSymbolID, rightFaceEdge, rightFace)
				}
				if leftVisited {
					if leftFace != corner.InvalidFace {
						e.checkSplitEvent(e.lastSymbolID, leftFaceEdge, leftFace)
					}
					e.symbols = append(e.symbols, symE)
					stack = stack[:len(stack)-1]
					break
				}
				e.symbols = append(e.symbols, symR)
				cornerID = leftCorner
			} else if leftVisited {
				if leftFace != corner.InvalidFace {
					e.checkSplitEvent(e.lastSymbolID, leftFaceEdge, leftFace)
				}
				e.symbols = append(e.symbols, symL)
				cornerID = rightCorner
			} else {
				e.symbols = append(e.symbols, symS)
				if onBoundary {
					// The tip lies on an unvisited hole; fold its
					// boundary into the visited set now.
					if holeID := e.vertexHoleID[vertID]; holeID >= 0 && !e.visitedHoles[holeID] {
						e.encodeHole(t.Next(cornerID), false)
					}
				}
				e.faceToSplitSymbol[faceID] = uint32(e.lastSymbolID)
				stack[len(stack)-1] = leftCorner
				stack = append(stack, rightCorner)
				break
			}
		}
	}
	return nil
}

// writeConnectivity serializes counts, split events, the reversed symbol
// stream and the start-face bits.
func (e *connectivityEncoder) writeConnectivity(buf *bitio.Encoder) error {
	t := e.table
	if err := buf.PutVarint(uint64(t.NumVertices())); err != nil {
		return err
	}
	if err := buf.PutVarint(uint64(t.NumFaces())); err != nil {
		return err
	}
	// Per-corner attribute connectivity is not encoded.
	if err := buf.PutUint8(0); err != nil {
		return err
	}
	if err := buf.PutVarint(uint64(len(e.symbols))); err != nil {
		return err
	}
	numSplitSymbols := 0
	for _, s := range e.symbols {
		if s == symS {
			numSplitSymbols++
		}
	}
	if err := buf.PutVarint(uint64(numSplitSymbols)); err != nil {
		return err
	}

	if err := e.writeSplitEvents(buf); err != nil {
		return err
	}

	if err := buf.StartBitEncoding(3*len(e.symbols)+8, true); err != nil {
		return err
	}
	for i := len(e.symbols) - 1; i >= 0; i-- {
		s := e.symbols[i]
		if err := buf.PutBits(symbolBitPattern[s], symbolBitLength[s]); err != nil {
			return err
		}
	}
	buf.EndBitEncoding()

	return e.startFaceEncoder.EndEncoding(buf)
}

func (e *connectivityEncoder) writeSplitEvents(buf *bitio.Encoder) error {
	events := e.splitEvents
	sort.Slice(events, func(a, b int) bool {
		return events[a].sourceSymbolID < events[b].sourceSymbolID
	})
	if err := buf.PutVarint(uint64(len(events))); err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	var lastSource uint32
	for _, ev := range events {
		if err := buf.PutVarint(uint64(ev.sourceSymbolID - lastSource)); err != nil {
			return err
		}
		if err := buf.PutVarint(uint64(ev.sourceSymbolID - ev.splitSymbolID)); err != nil {
			return err
		}
		lastSource = ev.sourceSymbolID
	}
	if err := buf.StartBitEncoding(len(events), false); err != nil {
		return err
	}
	for _, ev := range events {
		bit := uint32(0)
		if ev.sourceEdge == rightFaceEdge {
			bit = 1
		}
		if err := buf.PutBits(bit, 1); err != nil {
			return err
		}
	}
	buf.EndBitEncoding()
	return nil
}
