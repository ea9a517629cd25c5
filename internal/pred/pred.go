// Package pred implements the prediction schemes that turn attribute
// values into residuals: delta, parallelogram, constrained
// multi-parallelogram, portable texture coordinates and geometric
// normals. Values are signed 32-bit integers in attribute-traversal
// order; residuals pass through a residual transform (integer wrap, or
// the canonicalized octahedron transform for normals) before zig-zag
// mapping and entropy coding.
package pred

import (
	"github.com/Faultbox/dracodec/internal/bitio"
	"github.com/Faultbox/dracodec/internal/corner"
)

// Prediction methods recorded in the bitstream. The gaps keep ids stable
// against the historical numbering.
const (
	MethodNone             = -1
	MethodDelta            = 0
	MethodParallelogram    = 1
	MethodConstrainedMulti = 4
	MethodTexCoords        = 5
	MethodGeometricNormal  = 6
)

// Residual transform types recorded in the bitstream.
const (
	TransformWrap                = 1
	TransformNormalCanonicalized = 3
)

// MeshData bundles the connectivity context a mesh prediction scheme
// needs: the corner table, the data-order-to-corner map produced by the
// traversal, and its inverse.
type MeshData struct {
	Table        *corner.Table
	DataToCorner []corner.CornerIndex
	VertexToData []int32
}

// Encoder computes residuals and serializes side data.
type Encoder interface {
	Method() int
	TransformType() int
	// ComputeCorrections fills corr with per-component residuals for
	// values laid out in data order.
	ComputeCorrections(values []int32, numComponents int, corr []int32) error
	// EncodePredictionData writes scheme side data (crease flags,
	// orientations, transform bounds) after the residual block.
	EncodePredictionData(buf *bitio.Encoder) error
}

// Decoder inverts an Encoder.
type Decoder interface {
	Method() int
	TransformType() int
	DecodePredictionData(buf *bitio.Decoder) error
	ComputeOriginalValues(corr []int32, numComponents int, out []int32) error
}

// PositionReader resolves the quantized position of a data entry; the
// texcoord and normal schemes predict from the position parent.
type PositionReader func(dataID int) [3]int64

func parallelogramPrediction(next, prev, opp int32) int32 {
	return int32(int64(next) + int64(prev) - int64(opp))
}

// computeParallelogramPrediction predicts entry dataID from the face
// across corner ci. All three source entries must already be coded.
func computeParallelogramPrediction(dataID int, ci corner.CornerIndex, md *MeshData,
	data []int32, numComponents int, out []int32) bool {
	t := md.Table
	oci := t.Opposite(ci)
	if oci == corner.InvalidCorner {
		return false
	}
	vertOpp := dataOf(md, t.Vertex(oci))
	vertNext := dataOf(md, t.Vertex(t.Next(oci)))
	vertPrev := dataOf(md, t.Vertex(t.Prev(oci)))
	if vertOpp < 0 || vertNext < 0 || vertPrev < 0 {
		return false
	}
	if int(vertOpp) >= dataID || int(vertNext) >= dataID || int(vertPrev) >= dataID {
		return false
	}
	oppOff := int(vertOpp) * numComponents
	nextOff := int(vertNext) * numComponents
	prevOff := int(vertPrev) * numComponents
	for c := 0; c < numComponents; c++ {
		out[c] = parallelogramPrediction(data[nextOff+c], data[prevOff+c], data[oppOff+c])
	}
	return true
}

func dataOf(md *MeshData, v corner.VertexIndex) int32 {
	if v == corner.InvalidVertex || int(v) >= len(md.VertexToData) {
		return -1
	}
	return md.VertexToData[v]
}
