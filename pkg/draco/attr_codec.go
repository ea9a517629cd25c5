package draco

import (
	"fmt"

	"github.com/Faultbox/dracodec/internal/bitio"
	"github.com/Faultbox/dracodec/internal/pred"
	"github.com/Faultbox/dracodec/internal/rans"
)

// Attribute codec kinds recorded per attribute.
const (
	codecRaw       = 0
	codecInteger   = 1
	codecQuantized = 2
	codecNormal    = 3
)

// codecContext carries the state shared by all attributes of one encode
// or decode call: the point sequencing, the connectivity context for
// mesh prediction, and the portable integer values of already-processed
// attributes (prediction parents).
type codecContext struct {
	opts     *Options
	method   int
	pointIDs []PointIndex
	meshData *pred.MeshData
	portable map[int][]int32
}

func classifyAttribute(a *PointAttribute, quantizationBits int) int {
	switch {
	case a.AttributeType() == Normal && a.DataType() == DTFloat32 && a.NumComponents() == 3 && quantizationBits > 0:
		return codecNormal
	case a.DataType() == DTFloat32 && quantizationBits > 0:
		return codecQuantized
	case a.DataType().IsIntegral():
		return codecInteger
	default:
		return codecRaw
	}
}

// positionParent reports whether attribute attrID can predict from the
// position attribute, and returns the parent's portable values.
func (ctx *codecContext) positionParent(pc *PointCloud, attrID int) ([]int32, bool) {
	posID := pc.NamedAttributeID(Position)
	if posID < 0 || posID >= attrID {
		return nil, false
	}
	pos := pc.Attribute(posID)
	if pos.NumComponents() != 3 {
		return nil, false
	}
	values, ok := ctx.portable[posID]
	return values, ok
}

func (ctx *codecContext) positionReader(values []int32) pred.PositionReader {
	return func(dataID int) [3]int64 {
		off := dataID * 3
		if off < 0 || off+3 > len(values) {
			return [3]int64{}
		}
		return [3]int64{int64(values[off]), int64(values[off+1]), int64(values[off+2])}
	}
}

// selectPredictionScheme picks the scheme for one attribute following
// the deterministic speed table. Overrides win when they are usable in
// the current context.
func (ctx *codecContext) selectPredictionScheme(pc *PointCloud, attrID, kind int) int {
	if override := ctx.opts.attributePrediction(attrID); override != PredictionDefault {
		if ctx.schemeUsable(pc, attrID, kind, override) {
			return override
		}
	}
	speed := ctx.opts.encodingSpeed
	if ctx.opts.decodingSpeed > speed {
		speed = ctx.opts.decodingSpeed
	}
	if speed >= 10 || ctx.meshData == nil {
		return pred.MethodDelta
	}
	a := pc.Attribute(attrID)
	if kind == codecNormal {
		if speed < 4 && ctx.schemeUsable(pc, attrID, kind, pred.MethodGeometricNormal) {
			return pred.MethodGeometricNormal
		}
		return pred.MethodDelta
	}
	if a.AttributeType() == TexCoord && a.NumComponents() == 2 && kind == codecQuantized &&
		speed < 4 && ctx.schemeUsable(pc, attrID, kind, pred.MethodTexCoords) {
		return pred.MethodTexCoords
	}
	if speed >= 8 {
		return pred.MethodDelta
	}
	if speed >= 2 || pc.NumPoints() < 40 {
		return pred.MethodParallelogram
	}
	return pred.MethodConstrainedMulti
}

func (ctx *codecContext) schemeUsable(pc *PointCloud, attrID, kind, scheme int) bool {
	switch scheme {
	case pred.MethodDelta:
		return true
	case pred.MethodParallelogram, pred.MethodConstrainedMulti:
		return ctx.meshData != nil
	case pred.MethodTexCoords:
		if ctx.meshData == nil || kind == codecNormal {
			return false
		}
		if pc.Attribute(attrID).NumComponents() != 2 {
			return false
		}
		if _, ok := ctx.positionParent(pc, attrID); !ok {
			return false
		}
		pos := pc.NamedAttribute(Position)
		if pos.DataType().IsIntegral() {
			return true
		}
		posQ := ctx.opts.attributeQuantization(pc.NamedAttributeID(Position), Position)
		attQ := ctx.opts.attributeQuantization(attrID, pc.Attribute(attrID).AttributeType())
		return posQ > 0 && posQ <= 21 && 2*posQ+attQ < 64
	case pred.MethodGeometricNormal:
		if ctx.meshData == nil || kind != codecNormal {
			return false
		}
		_, ok := ctx.positionParent(pc, attrID)
		return ok
	default:
		return false
	}
}

func (ctx *codecContext) newEncoderScheme(pc *PointCloud, attrID, kind, scheme int, normalBits int32) (pred.Encoder, error) {
	switch scheme {
	case pred.MethodDelta:
		if kind == codecNormal {
			return pred.NewDeltaOctahedronEncoder(normalBits)
		}
		return pred.NewDeltaEncoder(), nil
	case pred.MethodParallelogram:
		return pred.NewParallelogramEncoder(ctx.meshData), nil
	case pred.MethodConstrainedMulti:
		return pred.NewConstrainedMultiEncoder(ctx.meshData), nil
	case pred.MethodTexCoords:
		parent, _ := ctx.positionParent(pc, attrID)
		return pred.NewTexCoordsEncoder(ctx.meshData, ctx.positionReader(parent)), nil
	case pred.MethodGeometricNormal:
		parent, _ := ctx.positionParent(pc, attrID)
		return pred.NewGeometricNormalEncoder(ctx.meshData, ctx.positionReader(parent), normalBits)
	default:
		return nil, fmt.Errorf("%w: prediction scheme %d", ErrInternal, scheme)
	}
}

func (ctx *codecContext) newDecoderScheme(pc *PointCloud, attrID, kind, scheme, transformType int) (pred.Decoder, error) {
	switch scheme {
	case pred.MethodDelta:
		return pred.NewDeltaDecoder(transformType)
	case pred.MethodParallelogram:
		if ctx.meshData == nil {
			return nil, fmt.Errorf("%w: mesh prediction on point cloud", ErrCorruptBitstream)
		}
		return pred.NewParallelogramDecoder(ctx.meshData, transformType)
	case pred.MethodConstrainedMulti:
		if ctx.meshData == nil {
			return nil, fmt.Errorf("%w: mesh prediction on point cloud", ErrCorruptBitstream)
		}
		return pred.NewConstrainedMultiDecoder(ctx.meshData, transformType)
	case pred.MethodTexCoords:
		parent, ok := ctx.positionParent(pc, attrID)
		if ctx.meshData == nil || !ok {
			return nil, fmt.Errorf("%w: texcoord prediction without position parent", ErrCorruptBitstream)
		}
		return pred.NewTexCoordsDecoder(ctx.meshData, ctx.positionReader(parent), transformType)
	case pred.MethodGeometricNormal:
		parent, ok := ctx.positionParent(pc, attrID)
		if ctx.meshData == nil || !ok {
			return nil, fmt.Errorf("%w: normal prediction without position parent", ErrCorruptBitstream)
		}
		return pred.NewGeometricNormalDecoder(ctx.meshData, ctx.positionReader(parent), transformType)
	default:
		return nil, fmt.Errorf("%w: prediction scheme %d", ErrCorruptBitstream, scheme)
	}
}

func zigzagEncode(v int32) uint32 {
	return uint32((v << 1) ^ (v >> 31))
}

func zigzagDecode(u uint32) int32 {
	if u&1 != 0 {
		return -int32(u>>1) - 1
	}
	return int32(u >> 1)
}

// encodeIntegerValues writes the prediction header, the zig-zag mapped
// residual symbols and the scheme side data for one attribute.
func encodeIntegerValues(values []int32, numComponents int, scheme pred.Encoder, buf *bitio.Encoder) error {
	corr := make([]int32, len(values))
	if err := scheme.ComputeCorrections(values, numComponents, corr); err != nil {
		return err
	}
	if err := buf.PutUint8(uint8(scheme.Method())); err != nil {
		return err
	}
	if err := buf.PutUint8(uint8(scheme.TransformType())); err != nil {
		return err
	}
	// Coding flag: residuals are entropy-coded symbols.
	if err := buf.PutUint8(1); err != nil {
		return err
	}
	symbols := make([]uint32, len(corr))
	for i, c := range corr {
		symbols[i] = zigzagEncode(c)
	}
	if err := rans.EncodeSymbols(symbols, numComponents, buf); err != nil {
		return err
	}
	return scheme.EncodePredictionData(buf)
}

// decodeIntegerValues reads one attribute's residual block and inverts
// the prediction, returning values in data order.
func (ctx *codecContext) decodeIntegerValues(pc *PointCloud, attrID, kind, numValues, numComponents int, buf *bitio.Decoder) ([]int32, error) {
	methodByte, err := buf.Uint8()
	if err != nil {
		return nil, err
	}
	if methodByte == 0xFF {
		return make([]int32, numValues), nil
	}
	scheme := int(int8(methodByte))
	transformByte, err := buf.Uint8()
	if err != nil {
		return nil, err
	}
	transformType := int(int8(transformByte))
	codingFlag, err := buf.Uint8()
	if err != nil {
		return nil, err
	}
	if codingFlag != 1 {
		return nil, fmt.Errorf("%w: residual coding flag %d", ErrCorruptBitstream, codingFlag)
	}

	decoder, err := ctx.newDecoderScheme(pc, attrID, kind, scheme, transformType)
	if err != nil {
		return nil, err
	}

	symbols := make([]uint32, numValues)
	if err := rans.DecodeSymbols(numValues, numComponents, buf, symbols); err != nil {
		return nil, err
	}
	corr := make([]int32, numValues)
	for i, s := range symbols {
		corr[i] = zigzagDecode(s)
	}

	if err := decoder.DecodePredictionData(buf); err != nil {
		return nil, err
	}
	out := make([]int32, numValues)
	if err := decoder.ComputeOriginalValues(corr, numComponents, out); err != nil {
		return nil, err
	}
	return out, nil
}

// gatherIntegerValues pulls an integral attribute into data order.
func gatherIntegerValues(a *PointAttribute, pointIDs []PointIndex) []int32 {
	nc := a.NumComponents()
	out := make([]int32, len(pointIDs)*nc)
	for i, p := range pointIDs {
		entry := a.MappedIndex(p)
		for c := 0; c < nc; c++ {
			out[i*nc+c] = a.componentInt32(entry, c)
		}
	}
	return out
}

// storeIntegerValues writes data-order values back into a direct
// attribute, one entry per point.
func storeIntegerValues(values []int32, pointIDs []PointIndex, a *PointAttribute) {
	nc := a.NumComponents()
	for i, p := range pointIDs {
		for c := 0; c < nc; c++ {
			a.setComponentInt32(AttributeValueIndex(p), c, values[i*nc+c])
		}
	}
}
