package draco

import (
	"errors"
	"testing"

	"github.com/Faultbox/dracodec/internal/config"
)

func TestOptionsValidation(t *testing.T) {
	o := DefaultOptions()
	if err := o.SetSpeed(11, 0); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
	if err := o.SetQuantizationBits(Position, 31); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
	if err := o.SetEncodingMethod(3); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
	if err := o.SetAttributePredictionScheme(0, 99); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestAttributeOverrides(t *testing.T) {
	o := DefaultOptions()
	if err := o.SetAttributeQuantizationBits(2, 9); err != nil {
		t.Fatalf("SetAttributeQuantizationBits failed: %v", err)
	}
	if got := o.attributeQuantization(2, Position); got != 9 {
		t.Errorf("per-attribute override lost: %d", got)
	}
	if got := o.attributeQuantization(1, Position); got != 14 {
		t.Errorf("semantic default lost: %d", got)
	}
}

func TestOptionsFromPreset(t *testing.T) {
	p := config.Default()
	p.Encoding.Method = "sequential"
	p.Encoding.EncodingSpeed = 3
	p.Quantization.Position = 12

	o, err := OptionsFromPreset(p)
	if err != nil {
		t.Fatalf("OptionsFromPreset failed: %v", err)
	}
	if o.method != MethodSequential {
		t.Errorf("expected sequential method, got %d", o.method)
	}
	if o.encodingSpeed != 3 {
		t.Errorf("expected speed 3, got %d", o.encodingSpeed)
	}
	if got := o.attributeQuantization(0, Position); got != 12 {
		t.Errorf("expected position bits 12, got %d", got)
	}

	p.Encoding.Method = "magic"
	if _, err := OptionsFromPreset(p); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}
