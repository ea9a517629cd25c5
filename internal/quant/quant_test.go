package quant

import "testing"

func TestQuantizeRange(t *testing.T) {
	q := NewQuantizer(10.0, 255)
	if got := q.QuantizeFloat(0); got != 0 {
		t.Errorf("QuantizeFloat(0) = %d", got)
	}
	if got := q.QuantizeFloat(10.0); got != 255 {
		t.Errorf("QuantizeFloat(10) = %d", got)
	}
}

func TestQuantizeMonotonic(t *testing.T) {
	q := NewQuantizer(1.0, 1023)
	prev := q.QuantizeFloat(0)
	for i := 1; i <= 1000; i++ {
		v := float32(i) / 1000
		cur := q.QuantizeFloat(v)
		if cur < prev {
			t.Fatalf("quantizer not monotonic at %f: %d < %d", v, cur, prev)
		}
		prev = cur
	}
}

func TestDequantizeError(t *testing.T) {
	const bits = 12
	maxVal := int32(1<<bits - 1)
	q := NewQuantizer(2.0, maxVal)
	d, ok := NewDequantizer(2.0, maxVal)
	if !ok {
		t.Fatal("NewDequantizer failed")
	}
	step := 2.0 / float32(maxVal)
	// A value on a bin midpoint reconstructs exactly half a step away;
	// float32 rounding of v and of the product adds a few ulps on top.
	const roundingSlack = 1e-6
	for i := 0; i <= 100; i++ {
		v := float32(i) * 0.02
		got := d.DequantizeFloat(q.QuantizeFloat(v))
		if diff := got - v; diff > step/2+roundingSlack || diff < -step/2-roundingSlack {
			t.Errorf("value %f: reconstruction %f off by more than half a step", v, got)
		}
	}
}

func TestZeroMaxValueRejected(t *testing.T) {
	if _, ok := NewDequantizer(1.0, 0); ok {
		t.Error("expected NewDequantizer to reject zero max value")
	}
}
