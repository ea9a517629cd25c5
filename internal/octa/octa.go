// Package octa converts between unit vectors and quantized octahedral
// coordinates. A direction is projected onto the unit octahedron, the
// lower hemisphere is folded over the diamond diagonal, and the two
// remaining coordinates are quantized to a fixed bit width.
package octa

import "math"

// ToolBox holds the derived constants for one quantization width.
type ToolBox struct {
	quantizationBits    int32
	maxQuantizedValue   int32
	maxValue            int32
	dequantizationScale float32
	centerValue         int32
}

// NewToolBox returns a toolbox for q quantization bits (2–30).
func NewToolBox(q int32) (ToolBox, bool) {
	var t ToolBox
	if q < 2 || q > 30 {
		return t, false
	}
	t.quantizationBits = q
	t.maxQuantizedValue = (1 << uint(q)) - 1
	t.maxValue = t.maxQuantizedValue - 1
	t.dequantizationScale = 2.0 / float32(t.maxValue)
	t.centerValue = t.maxValue / 2
	return t, true
}

// QuantizationBits returns q.
func (t ToolBox) QuantizationBits() int32 { return t.quantizationBits }

// MaxQuantizedValue returns 2^q - 1.
func (t ToolBox) MaxQuantizedValue() int32 { return t.maxQuantizedValue }

// MaxValue returns 2^q - 2.
func (t ToolBox) MaxValue() int32 { return t.maxValue }

// CenterValue returns (2^q - 2) / 2.
func (t ToolBox) CenterValue() int32 { return t.centerValue }

// IsInDiamond reports whether the centered point (s, t) lies in the
// upper-hemisphere diamond |s| + |t| <= center.
func (t ToolBox) IsInDiamond(s, tt int32) bool {
	return abs32(s)+abs32(tt) <= t.centerValue
}

// InvertDiamond folds a centered point across the diamond boundary.
func (t ToolBox) InvertDiamond(s, tt *int32) {
	var signS, signT int32 = 1, 1
	switch {
	case *s >= 0 && *tt >= 0:
	case *s <= 0 && *tt <= 0:
		signS, signT = -1, -1
	default:
		if *s <= 0 {
			signS = -1
		}
		if *tt <= 0 {
			signT = -1
		}
	}

	cornerS := uint32(signS * t.centerValue)
	cornerT := uint32(signT * t.centerValue)
	us := uint32(*s)
	ut := uint32(*tt)
	us = us + us - cornerS
	ut = ut + ut - cornerT
	if signS*signT >= 0 {
		us, ut = uint32(-int32(ut)), uint32(-int32(us))
	} else {
		us, ut = ut, us
	}
	us += cornerS
	ut += cornerT
	*s = int32(us) / 2
	*tt = int32(ut) / 2
}

// InvertDirection negates a centered point and refolds it.
func (t ToolBox) InvertDirection(s, tt *int32) {
	*s = -*s
	*tt = -*tt
	t.InvertDiamond(s, tt)
}

// ModMax wraps a centered value into [-center, center].
func (t ToolBox) ModMax(x int32) int32 {
	if x > t.centerValue {
		return x - t.maxQuantizedValue
	}
	if x < -t.centerValue {
		return x + t.maxQuantizedValue
	}
	return x
}

// ModMaxPositive wraps an uncentered value into [0, 2^q - 1].
func (t ToolBox) ModMaxPositive(x int32) int32 {
	return x & t.maxQuantizedValue
}

// MakePositive maps a centered difference into [0, 2^q - 1].
func (t ToolBox) MakePositive(x int32) int32 {
	if x < 0 {
		return x + t.maxQuantizedValue
	}
	return x
}

// CanonicalizeOctahedralCoords collapses the redundant encodings of the
// poles and the diamond edge so equal directions share one code.
func (t ToolBox) CanonicalizeOctahedralCoords(s, tt int32) (int32, int32) {
	switch {
	case (s == 0 && tt == 0) || (s == 0 && tt == t.maxValue) || (s == t.maxValue && tt == 0):
		s = t.maxValue
		tt = t.maxValue
	case s == 0 && tt > t.centerValue:
		tt = t.centerValue - (tt - t.centerValue)
	case s == t.maxValue && tt < t.centerValue:
		tt = t.centerValue + (t.centerValue - tt)
	case tt == t.maxValue && s < t.centerValue:
		s = t.centerValue + (t.centerValue - s)
	case tt == 0 && s > t.centerValue:
		s = t.centerValue - (s - t.centerValue)
	}
	return s, tt
}

// CanonicalizeIntegerVector rescales an integer direction so its L1 norm
// equals the center value.
func (t ToolBox) CanonicalizeIntegerVector(v *[3]int32) {
	absSum := int64(abs32(v[0])) + int64(abs32(v[1])) + int64(abs32(v[2]))
	if absSum == 0 {
		v[0] = t.centerValue
		v[1] = 0
		v[2] = 0
		return
	}
	v[0] = int32(int64(v[0]) * int64(t.centerValue) / absSum)
	v[1] = int32(int64(v[1]) * int64(t.centerValue) / absSum)
	rest := t.centerValue - abs32(v[0]) - abs32(v[1])
	if v[2] >= 0 {
		v[2] = rest
	} else {
		v[2] = -rest
	}
}

// IntegerVectorToQuantizedOctahedralCoords maps an integer direction
// with L1 norm equal to the center value onto canonical (s, t).
func (t ToolBox) IntegerVectorToQuantizedOctahedralCoords(v [3]int32) (int32, int32) {
	var s, tt int32
	if v[0] >= 0 {
		s = v[1] + t.centerValue
		tt = v[2] + t.centerValue
	} else {
		if v[1] < 0 {
			s = abs32(v[2])
		} else {
			s = t.maxValue - abs32(v[2])
		}
		if v[2] < 0 {
			tt = abs32(v[1])
		} else {
			tt = t.maxValue - abs32(v[1])
		}
	}
	return t.CanonicalizeOctahedralCoords(s, tt)
}

// FloatVectorToQuantizedOctahedralCoords projects and quantizes an
// arbitrary direction. Near-zero vectors encode as +X.
func (t ToolBox) FloatVectorToQuantizedOctahedralCoords(v [3]float32) (int32, int32) {
	absSum := float32(math.Abs(float64(v[0])) + math.Abs(float64(v[1])) + math.Abs(float64(v[2])))
	var scaled [3]float32
	if absSum > 1e-6 {
		scale := 1.0 / absSum
		scaled[0] = v[0] * scale
		scaled[1] = v[1] * scale
		scaled[2] = v[2] * scale
	} else {
		scaled[0] = 1
	}

	var iv [3]int32
	center := float32(t.centerValue)
	iv[0] = int32(math.Floor(float64(scaled[0]*center + 0.5)))
	iv[1] = int32(math.Floor(float64(scaled[1]*center + 0.5)))
	iv[2] = t.centerValue - abs32(iv[0]) - abs32(iv[1])
	if iv[2] < 0 {
		if iv[1] > 0 {
			iv[1] += iv[2]
		} else {
			iv[1] -= iv[2]
		}
		iv[2] = 0
	}
	if scaled[2] < 0 {
		iv[2] = -iv[2]
	}
	return t.IntegerVectorToQuantizedOctahedralCoords(iv)
}

// QuantizedOctahedralCoordsToUnitVector inverts the projection,
// returning a normalized direction.
func (t ToolBox) QuantizedOctahedralCoordsToUnitVector(s, tt int32) [3]float32 {
	y := float32(s)*t.dequantizationScale - 1.0
	z := float32(tt)*t.dequantizationScale - 1.0
	x := 1.0 - float32(math.Abs(float64(y))) - float32(math.Abs(float64(z)))
	if x < 0 {
		offset := -x
		if y < 0 {
			y += offset
		} else {
			y -= offset
		}
		if z < 0 {
			z += offset
		} else {
			z -= offset
		}
	}
	normSq := x*x + y*y + z*z
	if normSq < 1e-6 {
		return [3]float32{}
	}
	d := 1.0 / float32(math.Sqrt(float64(normSq)))
	return [3]float32{x * d, y * d, z * d}
}

func abs32(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}
