// Package config handles encoder preset loading and management.
package config

// Preset holds a complete set of encoder settings.
type Preset struct {
	Encoding     EncodingConfig     `yaml:"encoding"`
	Quantization QuantizationConfig `yaml:"quantization"`
	Metadata     MetadataConfig     `yaml:"metadata"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// EncodingConfig holds method and speed settings.
type EncodingConfig struct {
	Method        string `yaml:"method"` // "edgebreaker" or "sequential"
	EncodingSpeed int    `yaml:"encoding_speed"`
	DecodingSpeed int    `yaml:"decoding_speed"`
}

// QuantizationConfig holds per-semantic quantization bits.
type QuantizationConfig struct {
	Position int `yaml:"position"`
	Normal   int `yaml:"normal"`
	Color    int `yaml:"color"`
	TexCoord int `yaml:"tex_coord"`
	Generic  int `yaml:"generic"`
}

// MetadataConfig controls the optional metadata block.
type MetadataConfig struct {
	Deflate bool `yaml:"deflate"` // compress the metadata payload
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Preset with sensible default values.
func Default() *Preset {
	return &Preset{
		Encoding: EncodingConfig{
			Method:        "edgebreaker",
			EncodingSpeed: 5,
			DecodingSpeed: 5,
		},
		Quantization: QuantizationConfig{
			Position: 14,
			Normal:   10,
			Color:    8,
			TexCoord: 12,
			Generic:  12,
		},
		Metadata: MetadataConfig{
			Deflate: false,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
