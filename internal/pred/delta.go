package pred

import (
	"github.com/Faultbox/dracodec/internal/bitio"
)

// deltaEncoder predicts each entry from the previous one. The first
// entry is predicted as zero.
type deltaEncoder struct {
	transform residualTransform
}

// NewDeltaEncoder returns delta prediction over the integer wrap
// transform.
func NewDeltaEncoder() Encoder {
	return &deltaEncoder{transform: newWrapTransform()}
}

// NewDeltaOctahedronEncoder returns delta prediction over the
// canonicalized octahedron transform; used for octahedral normals.
func NewDeltaOctahedronEncoder(quantizationBits int32) (Encoder, error) {
	tr, err := newOctahedronTransform(quantizationBits)
	if err != nil {
		return nil, err
	}
	return &deltaEncoder{transform: tr}, nil
}

func (d *deltaEncoder) Method() int {
	return MethodDelta
}

func (d *deltaEncoder) TransformType() int {
	return d.transform.transformType()
}

func (d *deltaEncoder) ComputeCorrections(values []int32, numComponents int, corr []int32) error {
	d.transform.initEncoding(values, numComponents)
	for i := len(values) - numComponents; i > 0; i -= numComponents {
		d.transform.computeCorrection(values[i:i+numComponents], values[i-numComponents:i], corr[i:i+numComponents])
	}
	zero := make([]int32, numComponents)
	d.transform.computeCorrection(values[:numComponents], zero, corr[:numComponents])
	return nil
}

func (d *deltaEncoder) EncodePredictionData(buf *bitio.Encoder) error {
	return d.transform.encodeTransformData(buf)
}

// deltaDecoder inverts deltaEncoder.
type deltaDecoder struct {
	transform residualTransform
}

// NewDeltaDecoder returns the inverse for the given transform type.
func NewDeltaDecoder(transformType int) (Decoder, error) {
	tr, err := decoderTransform(transformType)
	if err != nil {
		return nil, err
	}
	return &deltaDecoder{transform: tr}, nil
}

func (d *deltaDecoder) Method() int {
	return MethodDelta
}

func (d *deltaDecoder) TransformType() int {
	return d.transform.transformType()
}

func (d *deltaDecoder) DecodePredictionData(buf *bitio.Decoder) error {
	return d.transform.decodeTransformData(buf)
}

func (d *deltaDecoder) ComputeOriginalValues(corr []int32, numComponents int, out []int32) error {
	zero := make([]int32, numComponents)
	d.transform.computeOriginal(zero, corr[:numComponents], out[:numComponents])
	for i := numComponents; i < len(corr); i += numComponents {
		d.transform.computeOriginal(out[i-numComponents:i], corr[i:i+numComponents], out[i:i+numComponents])
	}
	return nil
}
