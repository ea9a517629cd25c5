// Package quant provides the scalar quantizer used by attribute
// transforms: values in [0, range] map onto [0, maxQuantizedValue] and
// back.
package quant

import "math"

// Quantizer maps floats onto integer bins.
type Quantizer struct {
	inverseDelta float32
}

// NewQuantizer returns a quantizer for the given range and top bin.
func NewQuantizer(valueRange float32, maxQuantizedValue int32) Quantizer {
	var q Quantizer
	if valueRange > 0 {
		q.inverseDelta = float32(maxQuantizedValue) / valueRange
	}
	return q
}

// QuantizeFloat rounds val to its bin.
func (q Quantizer) QuantizeFloat(val float32) int32 {
	return int32(math.Floor(float64(val*q.inverseDelta) + 0.5))
}

// Dequantizer inverts a Quantizer.
type Dequantizer struct {
	delta float32
}

// NewDequantizer returns the inverse mapping; maxQuantizedValue must be
// positive.
func NewDequantizer(valueRange float32, maxQuantizedValue int32) (Dequantizer, bool) {
	var d Dequantizer
	if maxQuantizedValue <= 0 {
		return d, false
	}
	d.delta = valueRange / float32(maxQuantizedValue)
	return d, true
}

// DequantizeFloat maps bin val back to its representative value.
func (d Dequantizer) DequantizeFloat(val int32) float32 {
	return float32(val) * d.delta
}
