package draco

import (
	"fmt"

	"github.com/Faultbox/dracodec/internal/config"
)

// Encoding methods.
const (
	MethodSequential  = 0
	MethodEdgeBreaker = 1
)

// Prediction scheme override values for Options.SetPredictionScheme.
const (
	PredictionDefault           = -1
	PredictionDelta             = 0
	PredictionParallelogram     = 1
	PredictionConstrainedMulti  = 4
	PredictionTexCoordsPortable = 5
	PredictionGeometricNormal   = 6
)

// Options control the encoder. The zero value is not usable; start from
// DefaultOptions.
type Options struct {
	encodingSpeed int
	decodingSpeed int
	method        int

	quantizationBits map[AttributeType]int
	attrQuantization map[int]int
	attrPrediction   map[int]int

	metadataDeflate bool
}

// DefaultOptions returns the default encoder configuration: EdgeBreaker
// for meshes, mid encoding speed, and the standard per-semantic
// quantization widths.
func DefaultOptions() *Options {
	return &Options{
		encodingSpeed: 5,
		decodingSpeed: 5,
		method:        MethodEdgeBreaker,
		quantizationBits: map[AttributeType]int{
			Position: 14,
			Normal:   10,
			Color:    8,
			TexCoord: 12,
			Generic:  12,
		},
		attrQuantization: make(map[int]int),
		attrPrediction:   make(map[int]int),
	}
}

// OptionsFromPreset converts a configuration preset into Options.
func OptionsFromPreset(p *config.Preset) (*Options, error) {
	o := DefaultOptions()
	switch p.Encoding.Method {
	case "", "edgebreaker":
		o.method = MethodEdgeBreaker
	case "sequential":
		o.method = MethodSequential
	default:
		return nil, fmt.Errorf("%w: encoding method %q", ErrInvalidParameter, p.Encoding.Method)
	}
	if err := o.SetSpeed(p.Encoding.EncodingSpeed, p.Encoding.DecodingSpeed); err != nil {
		return nil, err
	}
	for t, bits := range map[AttributeType]int{
		Position: p.Quantization.Position,
		Normal:   p.Quantization.Normal,
		Color:    p.Quantization.Color,
		TexCoord: p.Quantization.TexCoord,
		Generic:  p.Quantization.Generic,
	} {
		if bits != 0 {
			if err := o.SetQuantizationBits(t, bits); err != nil {
				return nil, err
			}
		}
	}
	o.metadataDeflate = p.Metadata.Deflate
	if p.Logging.LogFile != "" {
		// Presets configure file logging; console tracing stays an
		// explicit SetFileLogger call.
		SetFileLogger(p.Logging.Level, p.Logging.LogFile, false)
	}
	return o, nil
}

// SetSpeed sets the encoding and decoding speed hints (0 = smallest,
// 10 = fastest).
func (o *Options) SetSpeed(encodingSpeed, decodingSpeed int) error {
	if encodingSpeed < 0 || encodingSpeed > 10 || decodingSpeed < 0 || decodingSpeed > 10 {
		return fmt.Errorf("%w: speed (%d, %d)", ErrInvalidParameter, encodingSpeed, decodingSpeed)
	}
	o.encodingSpeed = encodingSpeed
	o.decodingSpeed = decodingSpeed
	return nil
}

// SetEncodingMethod selects sequential or EdgeBreaker encoding.
func (o *Options) SetEncodingMethod(method int) error {
	if method != MethodSequential && method != MethodEdgeBreaker {
		return fmt.Errorf("%w: encoding method %d", ErrInvalidParameter, method)
	}
	o.method = method
	return nil
}

// SetQuantizationBits sets the quantization width for a semantic.
// Zero disables quantization for that semantic.
func (o *Options) SetQuantizationBits(t AttributeType, bits int) error {
	if bits < 0 || bits > 30 {
		return fmt.Errorf("%w: quantization bits %d", ErrInvalidParameter, bits)
	}
	o.quantizationBits[t] = bits
	return nil
}

// SetAttributeQuantizationBits overrides the width for one attribute id.
func (o *Options) SetAttributeQuantizationBits(attrID, bits int) error {
	if bits < 0 || bits > 30 {
		return fmt.Errorf("%w: quantization bits %d", ErrInvalidParameter, bits)
	}
	o.attrQuantization[attrID] = bits
	return nil
}

// SetAttributePredictionScheme overrides scheme selection for one
// attribute id.
func (o *Options) SetAttributePredictionScheme(attrID, scheme int) error {
	switch scheme {
	case PredictionDefault, PredictionDelta, PredictionParallelogram,
		PredictionConstrainedMulti, PredictionTexCoordsPortable, PredictionGeometricNormal:
	default:
		return fmt.Errorf("%w: prediction scheme %d", ErrInvalidParameter, scheme)
	}
	o.attrPrediction[attrID] = scheme
	return nil
}

// SetMetadataDeflate toggles DEFLATE compression of the metadata block.
func (o *Options) SetMetadataDeflate(enabled bool) {
	o.metadataDeflate = enabled
}

func (o *Options) attributeQuantization(attrID int, t AttributeType) int {
	if bits, ok := o.attrQuantization[attrID]; ok {
		return bits
	}
	if bits, ok := o.quantizationBits[t]; ok {
		return bits
	}
	return 0
}

func (o *Options) attributePrediction(attrID int) int {
	if scheme, ok := o.attrPrediction[attrID]; ok {
		return scheme
	}
	return PredictionDefault
}
