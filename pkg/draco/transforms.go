package draco

import (
	"fmt"

	"github.com/Faultbox/dracodec/internal/bitio"
	"github.com/Faultbox/dracodec/internal/octa"
	"github.com/Faultbox/dracodec/internal/quant"
)

// quantizationTransform maps a float attribute onto integer bins with a
// shared scalar range: per component, bin = round((v - min) / range *
// (2^bits - 1)). The min vector, range and width travel as side data.
type quantizationTransform struct {
	bits      int32
	minValues []float32
	rangeVal  float32
}

// computeQuantizationParameters scans the attribute for its bounds.
func computeQuantizationParameters(a *PointAttribute, bits int) (*quantizationTransform, error) {
	if bits < 1 || bits > 30 {
		return nil, fmt.Errorf("%w: quantization bits %d", ErrInvalidParameter, bits)
	}
	if a.DataType() != DTFloat32 {
		return nil, fmt.Errorf("%w: quantization needs float32 input", ErrInvalidParameter)
	}
	nc := a.NumComponents()
	t := &quantizationTransform{
		bits:      int32(bits),
		minValues: make([]float32, nc),
	}
	maxValues := make([]float32, nc)
	for c := 0; c < nc; c++ {
		t.minValues[c] = float32(1e38)
		maxValues[c] = float32(-1e38)
	}
	for i := 0; i < a.NumEntries(); i++ {
		for c := 0; c < nc; c++ {
			v := a.componentFloat32(AttributeValueIndex(i), c)
			if v < t.minValues[c] {
				t.minValues[c] = v
			}
			if v > maxValues[c] {
				maxValues[c] = v
			}
		}
	}
	for c := 0; c < nc; c++ {
		if d := maxValues[c] - t.minValues[c]; d > t.rangeVal {
			t.rangeVal = d
		}
	}
	if t.rangeVal == 0 {
		t.rangeVal = 1
	}
	return t, nil
}

// quantizeValues produces the portable integer values in pointIDs
// order, interleaved by component.
func (t *quantizationTransform) quantizeValues(a *PointAttribute, pointIDs []PointIndex) []int32 {
	nc := a.NumComponents()
	maxQuantized := int32((uint64(1) << uint(t.bits)) - 1)
	q := quant.NewQuantizer(t.rangeVal, maxQuantized)
	out := make([]int32, len(pointIDs)*nc)
	for i, p := range pointIDs {
		entry := a.MappedIndex(p)
		for c := 0; c < nc; c++ {
			v := a.componentFloat32(entry, c) - t.minValues[c]
			out[i*nc+c] = q.QuantizeFloat(v)
		}
	}
	return out
}

// dequantizeValues writes decoded bins back as floats, one value per
// point.
func (t *quantizationTransform) dequantizeValues(values []int32, a *PointAttribute) error {
	nc := a.NumComponents()
	maxQuantized := int32((uint64(1) << uint(t.bits)) - 1)
	dq, ok := quant.NewDequantizer(t.rangeVal, maxQuantized)
	if !ok {
		return fmt.Errorf("%w: quantization bits %d", ErrCorruptBitstream, t.bits)
	}
	buf := make([]float32, nc)
	for i := 0; i < len(values)/nc; i++ {
		for c := 0; c < nc; c++ {
			buf[c] = dq.DequantizeFloat(values[i*nc+c]) + t.minValues[c]
		}
		if err := a.SetFloat32(AttributeValueIndex(i), buf); err != nil {
			return err
		}
	}
	return nil
}

func (t *quantizationTransform) encodeParameters(buf *bitio.Encoder) error {
	for _, v := range t.minValues {
		if err := buf.PutFloat32(v); err != nil {
			return err
		}
	}
	if err := buf.PutFloat32(t.rangeVal); err != nil {
		return err
	}
	return buf.PutUint8(uint8(t.bits))
}

func decodeQuantizationParameters(numComponents int, buf *bitio.Decoder) (*quantizationTransform, error) {
	t := &quantizationTransform{minValues: make([]float32, numComponents)}
	for c := range t.minValues {
		v, err := buf.Float32()
		if err != nil {
			return nil, err
		}
		t.minValues[c] = v
	}
	rangeVal, err := buf.Float32()
	if err != nil {
		return nil, err
	}
	t.rangeVal = rangeVal
	bits, err := buf.Uint8()
	if err != nil {
		return nil, err
	}
	if bits < 1 || bits > 30 {
		return nil, fmt.Errorf("%w: quantization bits %d", ErrCorruptBitstream, bits)
	}
	t.bits = int32(bits)
	return t, nil
}

// octahedralTransform maps unit normals onto quantized octahedral
// coordinate pairs.
type octahedralTransform struct {
	bits    int32
	toolBox octa.ToolBox
}

func newOctahedralTransform(bits int) (*octahedralTransform, error) {
	tb, ok := octa.NewToolBox(int32(bits))
	if !ok {
		return nil, fmt.Errorf("%w: normal quantization bits %d", ErrInvalidParameter, bits)
	}
	return &octahedralTransform{bits: int32(bits), toolBox: tb}, nil
}

// octahedralValues produces (s, t) pairs in pointIDs order.
func (t *octahedralTransform) octahedralValues(a *PointAttribute, pointIDs []PointIndex) ([]int32, error) {
	if a.NumComponents() != 3 || a.DataType() != DTFloat32 {
		return nil, fmt.Errorf("%w: octahedral transform needs float32 3-vectors", ErrInvalidParameter)
	}
	out := make([]int32, len(pointIDs)*2)
	val := make([]float32, 3)
	for i, p := range pointIDs {
		if err := a.Float32(a.MappedIndex(p), val); err != nil {
			return nil, err
		}
		s, tt := t.toolBox.FloatVectorToQuantizedOctahedralCoords([3]float32{val[0], val[1], val[2]})
		out[i*2] = s
		out[i*2+1] = tt
	}
	return out, nil
}

// inverseOctahedralValues writes decoded pairs back as unit vectors.
func (t *octahedralTransform) inverseOctahedralValues(values []int32, a *PointAttribute) error {
	v := make([]float32, 3)
	for i := 0; i < len(values)/2; i++ {
		unit := t.toolBox.QuantizedOctahedralCoordsToUnitVector(values[i*2], values[i*2+1])
		v[0], v[1], v[2] = unit[0], unit[1], unit[2]
		if err := a.SetFloat32(AttributeValueIndex(i), v); err != nil {
			return err
		}
	}
	return nil
}

func (t *octahedralTransform) encodeParameters(buf *bitio.Encoder) error {
	return buf.PutUint8(uint8(t.bits))
}

func decodeOctahedralParameters(buf *bitio.Decoder) (*octahedralTransform, error) {
	bits, err := buf.Uint8()
	if err != nil {
		return nil, err
	}
	tb, ok := octa.NewToolBox(int32(bits))
	if !ok {
		return nil, fmt.Errorf("%w: normal quantization bits %d", ErrCorruptBitstream, bits)
	}
	return &octahedralTransform{bits: int32(bits), toolBox: tb}, nil
}
