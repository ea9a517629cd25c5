package pred

import (
	"fmt"

	"github.com/Faultbox/dracodec/internal/bitio"
	"github.com/Faultbox/dracodec/internal/corner"
	"github.com/Faultbox/dracodec/internal/octa"
	"github.com/Faultbox/dracodec/internal/rans"
	"github.com/Faultbox/dracodec/internal/status"
)

// geometricNormalState predicts a vertex normal as the area-weighted sum
// of incident face normals, computed in quantized position space so both
// codec sides agree bit for bit.
type geometricNormalState struct {
	md      *MeshData
	posFor  PositionReader
	toolBox octa.ToolBox
}

// predictedNormal sums the cross products of the triangle fan around the
// vertex of ci and bounds the L1 norm.
func (s *geometricNormalState) predictedNormal(ci corner.CornerIndex) [3]int32 {
	t := s.md.Table
	posCent := s.positionForCorner(ci)
	var normal [3]int64

	// Iterate the fan: swing left to exhaustion, then right from the
	// start corner.
	c := ci
	firstPass := true
	for c != corner.InvalidCorner {
		posNext := s.positionForCorner(t.Next(c))
		posPrev := s.positionForCorner(t.Prev(c))
		dn := [3]int64{posNext[0] - posCent[0], posNext[1] - posCent[1], posNext[2] - posCent[2]}
		dp := [3]int64{posPrev[0] - posCent[0], posPrev[1] - posCent[1], posPrev[2] - posCent[2]}
		normal[0] += dn[1]*dp[2] - dn[2]*dp[1]
		normal[1] += dn[2]*dp[0] - dn[0]*dp[2]
		normal[2] += dn[0]*dp[1] - dn[1]*dp[0]

		if firstPass {
			c = t.SwingLeft(c)
			if c == ci {
				break
			}
			if c == corner.InvalidCorner {
				firstPass = false
				c = t.SwingRight(ci)
			}
		} else {
			c = t.SwingRight(c)
		}
	}

	const upperBound = 1 << 29
	absSum := absI64(normal[0]) + absI64(normal[1]) + absI64(normal[2])
	if absSum > upperBound {
		quotient := absSum / upperBound
		normal[0] /= quotient
		normal[1] /= quotient
		normal[2] /= quotient
	}
	return [3]int32{int32(normal[0]), int32(normal[1]), int32(normal[2])}
}

func (s *geometricNormalState) positionForCorner(c corner.CornerIndex) [3]int64 {
	if c == corner.InvalidCorner {
		return [3]int64{}
	}
	dataID := dataOf(s.md, s.md.Table.Vertex(c))
	if dataID < 0 {
		return [3]int64{}
	}
	return s.posFor(int(dataID))
}

// geometricNormalEncoder predicts octahedral normals geometrically; a
// flip bit per entry selects the predicted direction or its opposite.
type geometricNormalEncoder struct {
	state    geometricNormalState
	trans    *octahedronTransform
	flipBits *rans.BitEncoder
}

// NewGeometricNormalEncoder returns the geometric normal scheme for
// octahedral values of the given width.
func NewGeometricNormalEncoder(md *MeshData, posFor PositionReader, quantizationBits int32) (Encoder, error) {
	tr, err := newOctahedronTransform(quantizationBits)
	if err != nil {
		return nil, err
	}
	tb, ok := octa.NewToolBox(quantizationBits)
	if !ok {
		return nil, fmt.Errorf("%w: normal quantization bits %d", status.ErrInvalidParameter, quantizationBits)
	}
	return &geometricNormalEncoder{
		state:    geometricNormalState{md: md, posFor: posFor, toolBox: tb},
		trans:    tr,
		flipBits: rans.NewBitEncoder(),
	}, nil
}

func (e *geometricNormalEncoder) Method() int {
	return MethodGeometricNormal
}

func (e *geometricNormalEncoder) TransformType() int {
	return e.trans.transformType()
}

func (e *geometricNormalEncoder) ComputeCorrections(values []int32, numComponents int, corr []int32) error {
	if numComponents != 2 {
		return fmt.Errorf("%w: geometric normal prediction needs octahedral values", status.ErrInvalidParameter)
	}
	numEntries := len(values) / numComponents
	if len(e.state.md.DataToCorner) < numEntries {
		return fmt.Errorf("%w: traversal shorter than attribute data", status.ErrInternal)
	}
	e.flipBits.StartEncoding()
	tb := e.state.toolBox
	pred := make([]int32, 2)
	for entry := 0; entry < numEntries; entry++ {
		off := entry * 2
		normal3 := e.state.predictedNormal(e.state.md.DataToCorner[entry])
		tb.CanonicalizeIntegerVector(&normal3)

		sPos, tPos := tb.IntegerVectorToQuantizedOctahedralCoords(normal3)
		neg := [3]int32{-normal3[0], -normal3[1], -normal3[2]}
		tb.CanonicalizeIntegerVector(&neg)
		sNeg, tNeg := tb.IntegerVectorToQuantizedOctahedralCoords(neg)

		orig := [2]int64{int64(values[off]), int64(values[off+1])}
		errPos := sqDist2([2]int64{int64(sPos), int64(tPos)}, orig)
		errNeg := sqDist2([2]int64{int64(sNeg), int64(tNeg)}, orig)
		flip := errNeg < errPos
		e.flipBits.EncodeBit(flip)
		if flip {
			pred[0], pred[1] = sNeg, tNeg
		} else {
			pred[0], pred[1] = sPos, tPos
		}
		e.trans.computeCorrection(values[off:off+2], pred, corr[off:off+2])
	}
	return nil
}

func (e *geometricNormalEncoder) EncodePredictionData(buf *bitio.Encoder) error {
	if err := e.trans.encodeTransformData(buf); err != nil {
		return err
	}
	return e.flipBits.EndEncoding(buf)
}

// geometricNormalDecoder inverts geometricNormalEncoder.
type geometricNormalDecoder struct {
	state      geometricNormalState
	trans      *octahedronTransform
	flipBits   []bool
	numEntries int
}

// NewGeometricNormalDecoder returns the inverse scheme. The octahedral
// width arrives with the transform data.
func NewGeometricNormalDecoder(md *MeshData, posFor PositionReader, transformType int) (Decoder, error) {
	if transformType != TransformNormalCanonicalized {
		return nil, fmt.Errorf("%w: geometric normal transform %d", status.ErrCorruptBitstream, transformType)
	}
	tr, err := newOctahedronTransform(0)
	if err != nil {
		return nil, err
	}
	return &geometricNormalDecoder{
		state:      geometricNormalState{md: md, posFor: posFor},
		trans:      tr,
		numEntries: len(md.DataToCorner),
	}, nil
}

func (d *geometricNormalDecoder) Method() int {
	return MethodGeometricNormal
}

func (d *geometricNormalDecoder) TransformType() int {
	return TransformNormalCanonicalized
}

func (d *geometricNormalDecoder) DecodePredictionData(buf *bitio.Decoder) error {
	if err := d.trans.decodeTransformData(buf); err != nil {
		return err
	}
	d.state.toolBox = d.trans.toolBox
	dec := rans.NewBitDecoder()
	if err := dec.StartDecoding(buf); err != nil {
		return err
	}
	d.flipBits = make([]bool, d.numEntries)
	for i := range d.flipBits {
		d.flipBits[i] = dec.DecodeNextBit()
	}
	dec.EndDecoding()
	return nil
}

func (d *geometricNormalDecoder) ComputeOriginalValues(corr []int32, numComponents int, out []int32) error {
	if numComponents != 2 {
		return fmt.Errorf("%w: geometric normal prediction needs octahedral values", status.ErrCorruptBitstream)
	}
	numEntries := len(corr) / numComponents
	if len(d.state.md.DataToCorner) < numEntries || len(d.flipBits) < numEntries {
		return fmt.Errorf("%w: flip bit stream too short", status.ErrCorruptBitstream)
	}
	tb := d.state.toolBox
	pred := make([]int32, 2)
	for entry := 0; entry < numEntries; entry++ {
		off := entry * 2
		normal3 := d.state.predictedNormal(d.state.md.DataToCorner[entry])
		tb.CanonicalizeIntegerVector(&normal3)
		if d.flipBits[entry] {
			normal3[0] = -normal3[0]
			normal3[1] = -normal3[1]
			normal3[2] = -normal3[2]
			tb.CanonicalizeIntegerVector(&normal3)
		}
		s, t := tb.IntegerVectorToQuantizedOctahedralCoords(normal3)
		pred[0], pred[1] = s, t
		d.trans.computeOriginal(pred, corr[off:off+2], out[off:off+2])
	}
	return nil
}
