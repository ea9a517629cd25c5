package pred

import (
	"fmt"
	"math"

	"github.com/Faultbox/dracodec/internal/bitio"
	"github.com/Faultbox/dracodec/internal/corner"
	"github.com/Faultbox/dracodec/internal/rans"
	"github.com/Faultbox/dracodec/internal/status"
)

// texCoordsState carries the prediction machinery shared by the encoder
// and decoder: UV prediction from the 3D edge of the two already-coded
// vertices of the triangle, up to a reflection resolved by a
// transmitted orientation bit.
type texCoordsState struct {
	md     *MeshData
	posFor PositionReader
}

func intSqrt(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	x := uint64(math.Sqrt(float64(n)))
	for x > 0 && x*x > n {
		x--
	}
	for (x+1)*(x+1) <= n {
		x++
	}
	return x
}

// predictFromEdge computes the two orientation candidates for entry
// dataID using the values decoded so far. It returns false when the
// neighborhood forces the delta fallback.
func (s *texCoordsState) predictFromEdge(ci corner.CornerIndex, data []int32, dataID int) (cand [2][2]int64, ok bool) {
	t := s.md.Table
	nextData := dataOf(s.md, t.Vertex(t.Next(ci)))
	prevData := dataOf(s.md, t.Vertex(t.Prev(ci)))
	if nextData < 0 || prevData < 0 || int(nextData) >= dataID || int(prevData) >= dataID {
		return cand, false
	}
	nUV := [2]int64{int64(data[nextData*2]), int64(data[nextData*2+1])}
	pUV := [2]int64{int64(data[prevData*2]), int64(data[prevData*2+1])}
	if nUV == pUV {
		cand[0] = pUV
		cand[1] = pUV
		return cand, true
	}

	tipPos := s.posFor(dataID)
	nextPos := s.posFor(int(nextData))
	prevPos := s.posFor(int(prevData))

	pn := [3]int64{prevPos[0] - nextPos[0], prevPos[1] - nextPos[1], prevPos[2] - nextPos[2]}
	pnNorm2 := pn[0]*pn[0] + pn[1]*pn[1] + pn[2]*pn[2]
	if pnNorm2 == 0 {
		return cand, false
	}
	cn := [3]int64{tipPos[0] - nextPos[0], tipPos[1] - nextPos[1], tipPos[2] - nextPos[2]}
	cnDotPn := pn[0]*cn[0] + pn[1]*cn[1] + pn[2]*cn[2]
	pnUV := [2]int64{pUV[0] - nUV[0], pUV[1] - nUV[1]}

	xUV := [2]int64{
		nUV[0]*pnNorm2 + pnUV[0]*cnDotPn,
		nUV[1]*pnNorm2 + pnUV[1]*cnDotPn,
	}
	xPos := [3]int64{
		nextPos[0] + pn[0]*cnDotPn/pnNorm2,
		nextPos[1] + pn[1]*cnDotPn/pnNorm2,
		nextPos[2] + pn[2]*cnDotPn/pnNorm2,
	}
	cx := [3]int64{tipPos[0] - xPos[0], tipPos[1] - xPos[1], tipPos[2] - xPos[2]}
	cxNorm2 := cx[0]*cx[0] + cx[1]*cx[1] + cx[2]*cx[2]

	scale := int64(intSqrt(uint64(cxNorm2) * uint64(pnNorm2)))
	cxUV := [2]int64{pnUV[1] * scale, -pnUV[0] * scale}

	cand[0] = [2]int64{(xUV[0] + cxUV[0]) / pnNorm2, (xUV[1] + cxUV[1]) / pnNorm2}
	cand[1] = [2]int64{(xUV[0] - cxUV[0]) / pnNorm2, (xUV[1] - cxUV[1]) / pnNorm2}
	return cand, true
}

// fallbackPrediction predicts from the nearest already-coded neighbor.
func (s *texCoordsState) fallbackPrediction(ci corner.CornerIndex, data []int32, dataID int) [2]int64 {
	t := s.md.Table
	nextData := dataOf(s.md, t.Vertex(t.Next(ci)))
	prevData := dataOf(s.md, t.Vertex(t.Prev(ci)))
	var src int32
	switch {
	case prevData >= 0 && int(prevData) < dataID:
		src = prevData
	case nextData >= 0 && int(nextData) < dataID:
		src = nextData
	case dataID > 0:
		src = int32(dataID - 1)
	default:
		return [2]int64{}
	}
	return [2]int64{int64(data[src*2]), int64(data[src*2+1])}
}

// texCoordsEncoder predicts UVs from positions; the reflection choice
// per predicted entry goes into an orientation bit stream.
type texCoordsEncoder struct {
	state        texCoordsState
	transform    residualTransform
	orientations []bool
}

// NewTexCoordsEncoder returns the portable texture coordinate scheme.
// posFor must resolve quantized positions in the attribute data order.
func NewTexCoordsEncoder(md *MeshData, posFor PositionReader) Encoder {
	return &texCoordsEncoder{
		state:     texCoordsState{md: md, posFor: posFor},
		transform: newWrapTransform(),
	}
}

func (e *texCoordsEncoder) Method() int {
	return MethodTexCoords
}

func (e *texCoordsEncoder) TransformType() int {
	return e.transform.transformType()
}

func (e *texCoordsEncoder) ComputeCorrections(values []int32, numComponents int, corr []int32) error {
	if numComponents != 2 {
		return fmt.Errorf("%w: texcoord prediction needs 2 components", status.ErrInvalidParameter)
	}
	e.transform.initEncoding(values, numComponents)
	numEntries := len(values) / numComponents
	if len(e.state.md.DataToCorner) < numEntries {
		return fmt.Errorf("%w: traversal shorter than attribute data", status.ErrInternal)
	}
	pred := make([]int32, 2)
	for entry := numEntries - 1; entry >= 0; entry-- {
		off := entry * 2
		ci := e.state.md.DataToCorner[entry]
		var predicted [2]int64
		if cand, ok := e.state.predictFromEdge(ci, values, entry); ok {
			actual := [2]int64{int64(values[off]), int64(values[off+1])}
			d0 := sqDist2(cand[0], actual)
			d1 := sqDist2(cand[1], actual)
			orientation := d0 < d1
			if cand[0] == cand[1] {
				orientation = true
			}
			e.orientations = append(e.orientations, orientation)
			if orientation {
				predicted = cand[0]
			} else {
				predicted = cand[1]
			}
		} else {
			predicted = e.state.fallbackPrediction(ci, values, entry)
		}
		pred[0] = int32(predicted[0])
		pred[1] = int32(predicted[1])
		e.transform.computeCorrection(values[off:off+2], pred, corr[off:off+2])
	}
	return nil
}

func sqDist2(a, b [2]int64) int64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return dx*dx + dy*dy
}

func (e *texCoordsEncoder) EncodePredictionData(buf *bitio.Encoder) error {
	if err := buf.PutInt32(int32(len(e.orientations))); err != nil {
		return err
	}
	enc := rans.NewBitEncoder()
	enc.StartEncoding()
	last := true
	for _, o := range e.orientations {
		enc.EncodeBit(o == last)
		last = o
	}
	if err := enc.EndEncoding(buf); err != nil {
		return err
	}
	return e.transform.encodeTransformData(buf)
}

// texCoordsDecoder inverts texCoordsEncoder.
type texCoordsDecoder struct {
	state        texCoordsState
	transform    residualTransform
	orientations []bool
}

// NewTexCoordsDecoder returns the inverse scheme.
func NewTexCoordsDecoder(md *MeshData, posFor PositionReader, transformType int) (Decoder, error) {
	tr, err := decoderTransform(transformType)
	if err != nil {
		return nil, err
	}
	return &texCoordsDecoder{
		state:     texCoordsState{md: md, posFor: posFor},
		transform: tr,
	}, nil
}

func (d *texCoordsDecoder) Method() int {
	return MethodTexCoords
}

func (d *texCoordsDecoder) TransformType() int {
	return d.transform.transformType()
}

func (d *texCoordsDecoder) DecodePredictionData(buf *bitio.Decoder) error {
	numOrientations, err := buf.Int32()
	if err != nil {
		return err
	}
	if numOrientations < 0 || int(numOrientations) > buf.DecodedSize()*8 {
		return fmt.Errorf("%w: orientation count %d", status.ErrCorruptBitstream, numOrientations)
	}
	dec := rans.NewBitDecoder()
	if err := dec.StartDecoding(buf); err != nil {
		return err
	}
	d.orientations = make([]bool, numOrientations)
	last := true
	for i := range d.orientations {
		same := dec.DecodeNextBit()
		if !same {
			last = !last
		}
		d.orientations[i] = last
	}
	dec.EndDecoding()
	return d.transform.decodeTransformData(buf)
}

func (d *texCoordsDecoder) ComputeOriginalValues(corr []int32, numComponents int, out []int32) error {
	if numComponents != 2 {
		return fmt.Errorf("%w: texcoord prediction needs 2 components", status.ErrCorruptBitstream)
	}
	numEntries := len(corr) / numComponents
	if len(d.state.md.DataToCorner) < numEntries {
		return fmt.Errorf("%w: traversal shorter than attribute data", status.ErrCorruptBitstream)
	}
	pred := make([]int32, 2)
	for entry := 0; entry < numEntries; entry++ {
		off := entry * 2
		ci := d.state.md.DataToCorner[entry]
		var predicted [2]int64
		if cand, ok := d.state.predictFromEdge(ci, out, entry); ok {
			if len(d.orientations) == 0 {
				return fmt.Errorf("%w: orientation stream exhausted", status.ErrCorruptBitstream)
			}
			orientation := d.orientations[len(d.orientations)-1]
			d.orientations = d.orientations[:len(d.orientations)-1]
			if orientation {
				predicted = cand[0]
			} else {
				predicted = cand[1]
			}
		} else {
			predicted = d.state.fallbackPrediction(ci, out, entry)
		}
		pred[0] = int32(predicted[0])
		pred[1] = int32(predicted[1])
		d.transform.computeOriginal(pred, corr[off:off+2], out[off:off+2])
	}
	return nil
}
