package ebk

import (
	"fmt"
	"sort"

	"github.com/Faultbox/dracodec/internal/bitio"
	"github.com/Faultbox/dracodec/internal/corner"
	"github.com/Faultbox/dracodec/internal/rans"
	"github.com/Faultbox/dracodec/internal/status"
)

// DecodedConnectivity is the reconstructed mesh topology. Faces use
// compacted vertex ids; Seeds lists the tip corner of every face in
// creation order, which drives attribute sequencing.
type DecodedConnectivity struct {
	Table     *corner.Table
	Faces     [][3]corner.VertexIndex
	NumPoints int
	Seeds     []corner.CornerIndex
}

// DecodeConnectivity reads the connectivity block written by
// EncodeConnectivity and rebuilds the corner table by consuming the
// symbol stream in reverse emission order.
func DecodeConnectivity(buf *bitio.Decoder) (*DecodedConnectivity, error) {
	numPoints64, err := buf.Varint()
	if err != nil {
		return nil, err
	}
	numFaces64, err := buf.Varint()
	if err != nil {
		return nil, err
	}
	numAttrData, err := buf.Uint8()
	if err != nil {
		return nil, err
	}
	if numAttrData != 0 {
		return nil, fmt.Errorf("%w: per-corner attribute connectivity", status.ErrUnsupportedFeature)
	}
	numSymbols64, err := buf.Varint()
	if err != nil {
		return nil, err
	}
	numSplitSymbols64, err := buf.Varint()
	if err != nil {
		return nil, err
	}
	numPoints := int(numPoints64)
	numFaces := int(numFaces64)
	numSymbols := int(numSymbols64)
	numSplitSymbols := int(numSplitSymbols64)
	if numFaces > buf.Remaining()*8 || numSymbols > numFaces || numPoints > 3*numFaces {
		return nil, fmt.Errorf("%w: implausible connectivity counts", status.ErrCorruptBitstream)
	}
	if numFaces == 0 {
		return nil, fmt.Errorf("%w: empty face list", status.ErrCorruptBitstream)
	}

	events, err := readSplitEvents(buf)
	if err != nil {
		return nil, err
	}
	if len(events) > numSplitSymbols {
		return nil, fmt.Errorf("%w: %d split events for %d split symbols", status.ErrCorruptBitstream, len(events), numSplitSymbols)
	}

	symbols, err := readSymbolStream(buf, numSymbols)
	if err != nil {
		return nil, err
	}

	return reconstruct(buf, symbols, events, numPoints, numFaces, numSplitSymbols)
}

func readSplitEvents(buf *bitio.Decoder) ([]splitEvent, error) {
	n, err := buf.Varint()
	if err != nil {
		return nil, err
	}
	if n > uint64(buf.Remaining()) {
		return nil, fmt.Errorf("%w: split event count %d", status.ErrCorruptBitstream, n)
	}
	events := make([]splitEvent, 0, n)
	var lastSource int64
	for i := uint64(0); i < n; i++ {
		delta, err := buf.Varint()
		if err != nil {
			return nil, err
		}
		source := lastSource + int64(delta)
		splitDelta, err := buf.Varint()
		if err != nil {
			return nil, err
		}
		if int64(splitDelta) > source {
			return nil, fmt.Errorf("%w: split symbol delta exceeds source id", status.ErrCorruptBitstream)
		}
		events = append(events, splitEvent{
			splitSymbolID:  uint32(source - int64(splitDelta)),
			sourceSymbolID: uint32(source),
		})
		lastSource = source
	}
	if n > 0 {
		if err := buf.StartBitDecoding(false); err != nil {
			return nil, err
		}
		for i := range events {
			bit, err := buf.Bits(1)
			if err != nil {
				return nil, err
			}
			if bit != 0 {
				events[i].sourceEdge = rightFaceEdge
			}
		}
		buf.EndBitDecoding()
	}
	return events, nil
}

func readSymbolStream(buf *bitio.Decoder, numSymbols int) ([]uint8, error) {
	if numSymbols == 0 {
		return nil, nil
	}
	if err := buf.StartBitDecoding(true); err != nil {
		return nil, err
	}
	symbols := make([]uint8, numSymbols)
	for i := 0; i < numSymbols; i++ {
		first, err := buf.Bits(1)
		if err != nil {
			return nil, err
		}
		pattern := uint32(0)
		if first != 0 {
			suffix, err := buf.Bits(2)
			if err != nil {
				return nil, err
			}
			pattern = 1 | suffix<<1
		}
		switch pattern {
		case 0:
			symbols[i] = symC
		case 1:
			symbols[i] = symS
		case 3:
			symbols[i] = symL
		case 5:
			symbols[i] = symR
		case 7:
			symbols[i] = symE
		default:
			return nil, fmt.Errorf("%w: traversal bit pattern %d", status.ErrCorruptBitstream, pattern)
		}
	}
	buf.EndBitDecoding()
	return symbols, nil
}

// reconstruct replays the reversed symbol stream. Symbol i creates face
// i; start faces fill in the remainder while draining the active stack.
func reconstruct(buf *bitio.Decoder, symbols []uint8, events []splitEvent, numPoints, numFaces, numSplitSymbols int) (*DecodedConnectivity, error) {
	b := corner.NewBuilder(numFaces)
	numSymbols := len(symbols)

	// Split events arrive keyed by encoder symbol ids; flip them into
	// the decoder's processing order.
	sourceToEvents := make(map[uint32][]splitEvent)
	for _, ev := range events {
		if int(ev.sourceSymbolID) >= numSymbols || int(ev.splitSymbolID) >= numSymbols {
			return nil, fmt.Errorf("%w: split event symbol out of range", status.ErrCorruptBitstream)
		}
		decoderID := uint32(numSymbols) - ev.sourceSymbolID - 1
		sourceToEvents[decoderID] = append(sourceToEvents[decoderID], ev)
	}

	maxVertices := numPoints + numSplitSymbols
	var activeStack []corner.CornerIndex
	splitActiveCorners := make(map[int]corner.CornerIndex)

	nextVertex := corner.VertexIndex(0)
	newVertex := func() (corner.VertexIndex, error) {
		if int(nextVertex) >= maxVertices {
			return 0, fmt.Errorf("%w: more vertices than declared", status.ErrCorruptBitstream)
		}
		v := nextVertex
		nextVertex++
		return v, nil
	}

	for symbolID := 0; symbolID < numSymbols; symbolID++ {
		c := corner.CornerIndex(symbolID * 3)
		checkSplit := false

		switch symbols[symbolID] {
		case symE:
			v0, err := newVertex()
			if err != nil {
				return nil, err
			}
			v1, err := newVertex()
			if err != nil {
				return nil, err
			}
			v2, err := newVertex()
			if err != nil {
				return nil, err
			}
			b.MapCornerToVertex(c, v0)
			b.MapCornerToVertex(c+1, v1)
			b.MapCornerToVertex(c+2, v2)
			b.SetLeftMost(v0, c)
			b.SetLeftMost(v1, c+1)
			b.SetLeftMost(v2, c+2)
			activeStack = append(activeStack, c)
			checkSplit = true

		case symC:
			if len(activeStack) == 0 {
				return nil, fmt.Errorf("%w: empty gate stack on C", status.ErrCorruptBitstream)
			}
			cornerA := activeStack[len(activeStack)-1]
			vertexX := b.Vertex(b.Next(cornerA))
			lmcX := b.LeftMost(vertexX)
			if lmcX == corner.InvalidCorner {
				return nil, fmt.Errorf("%w: missing fan corner on C", status.ErrCorruptBitstream)
			}
			cornerB := b.Next(lmcX)
			if cornerA == cornerB {
				return nil, fmt.Errorf("%w: C symbol gates coincide", status.ErrCorruptBitstream)
			}
			if b.Opposite(cornerA) != corner.InvalidCorner || b.Opposite(cornerB) != corner.InvalidCorner {
				return nil, fmt.Errorf("%w: C symbol gate already linked", status.ErrCorruptBitstream)
			}
			b.Link(cornerA, c+1)
			b.Link(cornerB, c+2)
			vertAPrev := b.Vertex(b.Prev(cornerA))
			vertBNext := b.Vertex(b.Next(cornerB))
			if vertexX == vertAPrev || vertexX == vertBNext {
				return nil, fmt.Errorf("%w: degenerate face on C", status.ErrCorruptBitstream)
			}
			b.MapCornerToVertex(c, vertexX)
			b.MapCornerToVertex(c+1, vertBNext)
			b.MapCornerToVertex(c+2, vertAPrev)
			b.SetLeftMost(vertAPrev, c+2)
			activeStack[len(activeStack)-1] = c

		case symR, symL:
			if len(activeStack) == 0 {
				return nil, fmt.Errorf("%w: empty gate stack on L/R", status.ErrCorruptBitstream)
			}
			cornerA := activeStack[len(activeStack)-1]
			if b.Opposite(cornerA) != corner.InvalidCorner {
				return nil, fmt.Errorf("%w: L/R gate already linked", status.ErrCorruptBitstream)
			}
			var oppCorner, cornerL, cornerR corner.CornerIndex
			if symbols[symbolID] == symR {
				oppCorner, cornerL, cornerR = c+2, c+1, c
			} else {
				oppCorner, cornerL, cornerR = c+1, c, c+2
			}
			b.Link(oppCorner, cornerA)
			nv, err := newVertex()
			if err != nil {
				return nil, err
			}
			b.MapCornerToVertex(oppCorner, nv)
			b.SetLeftMost(nv, oppCorner)
			vertexR := b.Vertex(b.Prev(cornerA))
			b.MapCornerToVertex(cornerR, vertexR)
			b.SetLeftMost(vertexR, cornerR)
			b.MapCornerToVertex(cornerL, b.Vertex(b.Next(cornerA)))
			activeStack[len(activeStack)-1] = c
			checkSplit = true

		case symS:
			if len(activeStack) == 0 {
				return nil, fmt.Errorf("%w: empty gate stack on S", status.ErrCorruptBitstream)
			}
			cornerB := activeStack[len(activeStack)-1]
			activeStack = activeStack[:len(activeStack)-1]
			if split, ok := splitActiveCorners[symbolID]; ok {
				activeStack = append(activeStack, split)
			}
			if len(activeStack) == 0 {
				return nil, fmt.Errorf("%w: empty gate stack after split on S", status.ErrCorruptBitstream)
			}
			cornerA := activeStack[len(activeStack)-1]
			if cornerA == cornerB {
				return nil, fmt.Errorf("%w: S symbol gates coincide", status.ErrCorruptBitstream)
			}
			if b.Opposite(cornerA) != corner.InvalidCorner || b.Opposite(cornerB) != corner.InvalidCorner {
				return nil, fmt.Errorf("%w: S symbol gate already linked", status.ErrCorruptBitstream)
			}
			b.Link(cornerA, c+2)
			b.Link(cornerB, c+1)
			vertexP := b.Vertex(b.Prev(cornerA))
			b.MapCornerToVertex(c, vertexP)
			b.MapCornerToVertex(c+1, b.Vertex(b.Next(cornerA)))
			vertBPrev := b.Vertex(b.Prev(cornerB))
			b.MapCornerToVertex(c+2, vertBPrev)
			b.SetLeftMost(vertBPrev, c+2)

			// Merge the vertex at next(cornerB) into vertexP.
			cornerN := b.Next(cornerB)
			vertexN := b.Vertex(cornerN)
			if lmcN := b.LeftMost(vertexN); lmcN != corner.InvalidCorner {
				b.SetLeftMost(vertexP, lmcN)
			}
			for act := cornerN; act != corner.InvalidCorner; act = b.SwingLeft(act) {
				b.MapCornerToVertex(act, vertexP)
				if b.SwingLeft(act) == cornerN {
					return nil, fmt.Errorf("%w: cyclic fan while merging on S", status.ErrCorruptBitstream)
				}
			}
			for act := b.SwingRight(cornerN); act != corner.InvalidCorner; act = b.SwingRight(act) {
				b.MapCornerToVertex(act, vertexP)
				if b.SwingRight(act) == cornerN {
					return nil, fmt.Errorf("%w: cyclic fan while merging on S", status.ErrCorruptBitstream)
				}
			}
			// Corners disconnected from the swing walk may still carry
			// the merged vertex id.
			for i := 0; i < b.NumCorners(); i++ {
				if b.Vertex(corner.CornerIndex(i)) == vertexN {
					b.MapCornerToVertex(corner.CornerIndex(i), vertexP)
				}
			}
			b.MakeVertexIsolated(vertexN)
			activeStack[len(activeStack)-1] = c
		}

		if checkSplit {
			for _, ev := range sourceToEvents[uint32(symbolID)] {
				top := activeStack[len(activeStack)-1]
				var newActive corner.CornerIndex
				if ev.sourceEdge == rightFaceEdge {
					newActive = b.Next(top)
				} else {
					newActive = b.Prev(top)
				}
				decoderSplitID := numSymbols - int(ev.splitSymbolID) - 1
				splitActiveCorners[decoderSplitID] = newActive
			}
		}
	}

	numDecodedFaces := numSymbols
	var seeds []corner.CornerIndex
	for f := 0; f < numSymbols; f++ {
		seeds = append(seeds, corner.CornerIndex(f*3))
	}

	// Drain the remaining gates: each pop reads one start-face bit; an
	// interior configuration stitches a new face between three existing
	// boundary fans.
	if len(activeStack) > 0 {
		startFaces := rans.NewBitDecoder()
		if err := startFaces.StartDecoding(buf); err != nil {
			return nil, err
		}
		for len(activeStack) > 0 {
			cornerA := activeStack[len(activeStack)-1]
			activeStack = activeStack[:len(activeStack)-1]
			if !startFaces.DecodeNextBit() {
				continue
			}
			if numDecodedFaces >= numFaces {
				return nil, fmt.Errorf("%w: more faces than declared", status.ErrCorruptBitstream)
			}
			vertN := b.Vertex(b.Next(cornerA))
			lmcN := b.LeftMost(vertN)
			if lmcN == corner.InvalidCorner {
				return nil, fmt.Errorf("%w: missing fan corner on start face", status.ErrCorruptBitstream)
			}
			cornerB := b.Next(lmcN)
			vertX := b.Vertex(b.Next(cornerB))
			lmcX := b.LeftMost(vertX)
			if lmcX == corner.InvalidCorner {
				return nil, fmt.Errorf("%w: missing fan corner on start face", status.ErrCorruptBitstream)
			}
			cornerC := b.Next(lmcX)
			if cornerA == cornerB || cornerA == cornerC || cornerB == cornerC {
				return nil, fmt.Errorf("%w: start face gates coincide", status.ErrCorruptBitstream)
			}
			if b.Opposite(cornerA) != corner.InvalidCorner ||
				b.Opposite(cornerB) != corner.InvalidCorner ||
				b.Opposite(cornerC) != corner.InvalidCorner {
				return nil, fmt.Errorf("%w: start face gate already linked", status.ErrCorruptBitstream)
			}
			vertP := b.Vertex(b.Next(cornerC))
			nc := corner.CornerIndex(numDecodedFaces * 3)
			numDecodedFaces++
			b.Link(nc, cornerA)
			b.Link(nc+1, cornerB)
			b.Link(nc+2, cornerC)
			b.MapCornerToVertex(nc, vertX)
			b.MapCornerToVertex(nc+1, vertP)
			b.MapCornerToVertex(nc+2, vertN)
			seeds = append(seeds, nc)
		}
		startFaces.EndDecoding()
	}

	if numDecodedFaces != numFaces {
		return nil, fmt.Errorf("%w: decoded %d of %d faces", status.ErrCorruptBitstream, numDecodedFaces, numFaces)
	}

	// Compact vertex ids: split-merged ids leave gaps.
	used := make([]corner.VertexIndex, 0, numPoints)
	seen := make(map[corner.VertexIndex]bool)
	for i := 0; i < b.NumCorners(); i++ {
		v := b.Vertex(corner.CornerIndex(i))
		if v == corner.InvalidVertex {
			return nil, fmt.Errorf("%w: unmapped corner after symbol replay", status.ErrCorruptBitstream)
		}
		if !seen[v] {
			seen[v] = true
			used = append(used, v)
		}
	}
	sort.Slice(used, func(a, b int) bool { return used[a] < used[b] })
	if len(used) != numPoints {
		return nil, fmt.Errorf("%w: decoded %d vertices, declared %d", status.ErrCorruptBitstream, len(used), numPoints)
	}
	oldToNew := make(map[corner.VertexIndex]corner.VertexIndex, len(used))
	for i, v := range used {
		oldToNew[v] = corner.VertexIndex(i)
	}
	b.RemapVertices(oldToNew)

	table, err := b.Finalize(numPoints)
	if err != nil {
		return nil, err
	}

	faces := make([][3]corner.VertexIndex, numFaces)
	for f := 0; f < numFaces; f++ {
		c := corner.CornerIndex(f * 3)
		faces[f] = [3]corner.VertexIndex{table.Vertex(c), table.Vertex(c + 1), table.Vertex(c + 2)}
	}

	return &DecodedConnectivity{
		Table:     table,
		Faces:     faces,
		NumPoints: numPoints,
		Seeds:     seeds,
	}, nil
}
