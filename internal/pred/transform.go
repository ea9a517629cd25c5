package pred

import (
	"fmt"

	"github.com/Faultbox/dracodec/internal/bitio"
	"github.com/Faultbox/dracodec/internal/octa"
	"github.com/Faultbox/dracodec/internal/status"
)

// residualTransform converts (original, predicted) pairs into residuals
// and back. Implementations may clamp or wrap to bound the residual
// alphabet.
type residualTransform interface {
	transformType() int
	// initEncoding inspects the full value array before corrections are
	// computed.
	initEncoding(values []int32, numComponents int)
	computeCorrection(original, predicted, corr []int32)
	computeOriginal(predicted, corr, out []int32)
	encodeTransformData(buf *bitio.Encoder) error
	decodeTransformData(buf *bitio.Decoder) error
}

// decoderTransform instantiates the transform matching the wire id;
// bounds arrive later through decodeTransformData.
func decoderTransform(transformType int) (residualTransform, error) {
	switch transformType {
	case TransformWrap:
		return newWrapTransform(), nil
	case TransformNormalCanonicalized:
		return newOctahedronTransform(0)
	default:
		return nil, fmt.Errorf("%w: prediction transform %d", status.ErrCorruptBitstream, transformType)
	}
}

// wrapTransform clamps predictions into the observed value range and
// wraps corrections into [-maxDif/2, maxDif/2).
type wrapTransform struct {
	minValue int32
	maxValue int32
	maxDif   int32
	minCorr  int32
	maxCorr  int32
}

func newWrapTransform() *wrapTransform {
	return &wrapTransform{}
}

func (w *wrapTransform) transformType() int {
	return TransformWrap
}

func (w *wrapTransform) initEncoding(values []int32, _ int) {
	if len(values) == 0 {
		w.setBounds(0, 0)
		return
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	w.setBounds(minVal, maxVal)
}

func (w *wrapTransform) setBounds(minVal, maxVal int32) {
	w.minValue = minVal
	w.maxValue = maxVal
	w.maxDif = int32(1 + int64(maxVal) - int64(minVal))
	w.maxCorr = w.maxDif / 2
	w.minCorr = -w.maxCorr
	if w.maxDif&1 == 0 {
		w.maxCorr--
	}
}

func (w *wrapTransform) clamp(v int32) int32 {
	if v > w.maxValue {
		return w.maxValue
	}
	if v < w.minValue {
		return w.minValue
	}
	return v
}

func (w *wrapTransform) computeCorrection(original, predicted, corr []int32) {
	for i := range original {
		c := original[i] - w.clamp(predicted[i])
		if c < w.minCorr {
			c += w.maxDif
		} else if c > w.maxCorr {
			c -= w.maxDif
		}
		corr[i] = c
	}
}

func (w *wrapTransform) computeOriginal(predicted, corr, out []int32) {
	for i := range corr {
		v := w.clamp(predicted[i]) + corr[i]
		if v < w.minValue {
			v += w.maxDif
		} else if v > w.maxValue {
			v -= w.maxDif
		}
		out[i] = v
	}
}

func (w *wrapTransform) encodeTransformData(buf *bitio.Encoder) error {
	if err := buf.PutInt32(w.minValue); err != nil {
		return err
	}
	return buf.PutInt32(w.maxValue)
}

func (w *wrapTransform) decodeTransformData(buf *bitio.Decoder) error {
	minVal, err := buf.Int32()
	if err != nil {
		return err
	}
	maxVal, err := buf.Int32()
	if err != nil {
		return err
	}
	if maxVal < minVal {
		return fmt.Errorf("%w: wrap transform bounds inverted", status.ErrCorruptBitstream)
	}
	w.setBounds(minVal, maxVal)
	return nil
}

// octahedronTransform is the canonicalized normal octahedron residual
// transform: predictions outside the diamond are folded, the plane is
// rotated so the prediction sits in the bottom-left quadrant, and the
// residual is wrapped positive.
type octahedronTransform struct {
	toolBox octa.ToolBox
	valid   bool
}

func newOctahedronTransform(quantizationBits int32) (*octahedronTransform, error) {
	o := &octahedronTransform{}
	if quantizationBits > 0 {
		tb, ok := octa.NewToolBox(quantizationBits)
		if !ok {
			return nil, fmt.Errorf("%w: octahedron quantization bits %d", status.ErrInvalidParameter, quantizationBits)
		}
		o.toolBox = tb
		o.valid = true
	}
	return o, nil
}

func (o *octahedronTransform) transformType() int {
	return TransformNormalCanonicalized
}

func (o *octahedronTransform) quantizationBits() int32 {
	return o.toolBox.QuantizationBits()
}

func (o *octahedronTransform) initEncoding(_ []int32, _ int) {}

func rotationCount(pred [2]int32) int32 {
	sx, sy := pred[0], pred[1]
	switch {
	case sx == 0:
		if sy == 0 {
			return 0
		} else if sy > 0 {
			return 3
		}
		return 1
	case sx > 0:
		if sy >= 0 {
			return 2
		}
		return 1
	case sy <= 0:
		return 0
	default:
		return 3
	}
}

func rotatePoint(p [2]int32, count int32) [2]int32 {
	switch count {
	case 1:
		return [2]int32{p[1], -p[0]}
	case 2:
		return [2]int32{-p[0], -p[1]}
	case 3:
		return [2]int32{-p[1], p[0]}
	default:
		return p
	}
}

func isInBottomLeft(p [2]int32) bool {
	if p[0] == 0 && p[1] == 0 {
		return true
	}
	return p[0] < 0 && p[1] <= 0
}

func (o *octahedronTransform) computeCorrection(original, predicted, corr []int32) {
	center := o.toolBox.CenterValue()
	orig := [2]int32{original[0] - center, original[1] - center}
	pred := [2]int32{predicted[0] - center, predicted[1] - center}

	if !o.toolBox.IsInDiamond(pred[0], pred[1]) {
		o.toolBox.InvertDiamond(&orig[0], &orig[1])
		o.toolBox.InvertDiamond(&pred[0], &pred[1])
	}
	if !isInBottomLeft(pred) {
		count := rotationCount(pred)
		orig = rotatePoint(orig, count)
		pred = rotatePoint(pred, count)
	}
	corr[0] = o.toolBox.MakePositive(orig[0] - pred[0])
	corr[1] = o.toolBox.MakePositive(orig[1] - pred[1])
}

func (o *octahedronTransform) computeOriginal(predicted, corr, out []int32) {
	center := o.toolBox.CenterValue()
	pred := [2]int32{predicted[0] - center, predicted[1] - center}

	predInDiamond := o.toolBox.IsInDiamond(pred[0], pred[1])
	if !predInDiamond {
		o.toolBox.InvertDiamond(&pred[0], &pred[1])
	}
	predInBottomLeft := isInBottomLeft(pred)
	count := rotationCount(pred)
	if !predInBottomLeft {
		pred = rotatePoint(pred, count)
	}
	orig := [2]int32{
		o.toolBox.ModMax(pred[0] + corr[0]),
		o.toolBox.ModMax(pred[1] + corr[1]),
	}
	if !predInBottomLeft {
		orig = rotatePoint(orig, (4-count)%4)
	}
	if !predInDiamond {
		o.toolBox.InvertDiamond(&orig[0], &orig[1])
	}
	out[0] = orig[0] + center
	out[1] = orig[1] + center
}

func (o *octahedronTransform) encodeTransformData(buf *bitio.Encoder) error {
	if err := buf.PutInt32(o.toolBox.MaxQuantizedValue()); err != nil {
		return err
	}
	return buf.PutInt32(o.toolBox.CenterValue())
}

func (o *octahedronTransform) decodeTransformData(buf *bitio.Decoder) error {
	maxQuantized, err := buf.Int32()
	if err != nil {
		return err
	}
	center, err := buf.Int32()
	if err != nil {
		return err
	}
	if maxQuantized <= 0 || maxQuantized&1 == 0 {
		return fmt.Errorf("%w: octahedron max quantized value %d", status.ErrCorruptBitstream, maxQuantized)
	}
	plusOne := uint32(maxQuantized) + 1
	if plusOne&(plusOne-1) != 0 {
		return fmt.Errorf("%w: octahedron max quantized value %d", status.ErrCorruptBitstream, maxQuantized)
	}
	bits := int32(0)
	for v := plusOne; v > 1; v >>= 1 {
		bits++
	}
	tb, ok := octa.NewToolBox(bits)
	if !ok {
		return fmt.Errorf("%w: octahedron quantization bits %d", status.ErrCorruptBitstream, bits)
	}
	if tb.CenterValue() != center {
		return fmt.Errorf("%w: octahedron center value %d", status.ErrCorruptBitstream, center)
	}
	o.toolBox = tb
	o.valid = true
	return nil
}
