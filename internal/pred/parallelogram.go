package pred

import (
	"fmt"

	"github.com/Faultbox/dracodec/internal/bitio"
	"github.com/Faultbox/dracodec/internal/corner"
	"github.com/Faultbox/dracodec/internal/status"
)

// parallelogramEncoder predicts each entry as next + prev − opposite of
// the already-coded face across its first corner, falling back to delta
// when the neighborhood is incomplete.
type parallelogramEncoder struct {
	transform residualTransform
	md        *MeshData
}

// NewParallelogramEncoder returns the single-parallelogram scheme.
func NewParallelogramEncoder(md *MeshData) Encoder {
	return &parallelogramEncoder{transform: newWrapTransform(), md: md}
}

func (p *parallelogramEncoder) Method() int {
	return MethodParallelogram
}

func (p *parallelogramEncoder) TransformType() int {
	return p.transform.transformType()
}

func (p *parallelogramEncoder) ComputeCorrections(values []int32, numComponents int, corr []int32) error {
	p.transform.initEncoding(values, numComponents)
	numEntries := len(values) / numComponents
	if numEntries == 0 {
		return nil
	}
	if len(p.md.DataToCorner) < numEntries {
		return fmt.Errorf("%w: traversal shorter than attribute data", status.ErrInternal)
	}
	pred := make([]int32, numComponents)
	for entry := numEntries - 1; entry > 0; entry-- {
		off := entry * numComponents
		ci := p.md.DataToCorner[entry]
		if computeParallelogramPrediction(entry, ci, p.md, values, numComponents, pred) {
			p.transform.computeCorrection(values[off:off+numComponents], pred, corr[off:off+numComponents])
		} else {
			p.transform.computeCorrection(values[off:off+numComponents], values[off-numComponents:off], corr[off:off+numComponents])
		}
	}
	zero := make([]int32, numComponents)
	p.transform.computeCorrection(values[:numComponents], zero, corr[:numComponents])
	return nil
}

func (p *parallelogramEncoder) EncodePredictionData(buf *bitio.Encoder) error {
	return p.transform.encodeTransformData(buf)
}

// parallelogramDecoder inverts parallelogramEncoder.
type parallelogramDecoder struct {
	transform residualTransform
	md        *MeshData
}

// NewParallelogramDecoder returns the inverse scheme.
func NewParallelogramDecoder(md *MeshData, transformType int) (Decoder, error) {
	tr, err := decoderTransform(transformType)
	if err != nil {
		return nil, err
	}
	return &parallelogramDecoder{transform: tr, md: md}, nil
}

func (p *parallelogramDecoder) Method() int {
	return MethodParallelogram
}

func (p *parallelogramDecoder) TransformType() int {
	return p.transform.transformType()
}

func (p *parallelogramDecoder) DecodePredictionData(buf *bitio.Decoder) error {
	return p.transform.decodeTransformData(buf)
}

func (p *parallelogramDecoder) ComputeOriginalValues(corr []int32, numComponents int, out []int32) error {
	numEntries := len(corr) / numComponents
	if numEntries == 0 {
		return nil
	}
	if len(p.md.DataToCorner) < numEntries {
		return fmt.Errorf("%w: traversal shorter than attribute data", status.ErrCorruptBitstream)
	}
	zero := make([]int32, numComponents)
	p.transform.computeOriginal(zero, corr[:numComponents], out[:numComponents])
	pred := make([]int32, numComponents)
	for entry := 1; entry < numEntries; entry++ {
		off := entry * numComponents
		ci := p.md.DataToCorner[entry]
		if computeParallelogramPrediction(entry, ci, p.md, out, numComponents, pred) {
			p.transform.computeOriginal(pred, corr[off:off+numComponents], out[off:off+numComponents])
		} else {
			p.transform.computeOriginal(out[off-numComponents:off], corr[off:off+numComponents], out[off:off+numComponents])
		}
	}
	return nil
}

// gatherParallelogramCorners collects up to maxCount corners around the
// vertex of start whose opposite faces can predict entry dataID. The
// walk swings left first, then right from the start, identically on
// both codec sides.
func gatherParallelogramCorners(md *MeshData, start corner.CornerIndex, dataID, maxCount int, out []corner.CornerIndex) int {
	t := md.Table
	count := 0
	firstPass := true
	c := start
	for c != corner.InvalidCorner {
		oci := t.Opposite(c)
		if oci != corner.InvalidCorner {
			oppData := dataOf(md, t.Vertex(oci))
			nextData := dataOf(md, t.Vertex(t.Next(oci)))
			prevData := dataOf(md, t.Vertex(t.Prev(oci)))
			if oppData >= 0 && nextData >= 0 && prevData >= 0 &&
				int(oppData) < dataID && int(nextData) < dataID && int(prevData) < dataID {
				out[count] = c
				count++
				if count == maxCount {
					break
				}
			}
		}
		if firstPass {
			c = t.SwingLeft(c)
		} else {
			c = t.SwingRight(c)
		}
		if c == start {
			break
		}
		if c == corner.InvalidCorner && firstPass {
			firstPass = false
			c = t.SwingRight(start)
		}
	}
	return count
}
