// Package status defines the error values shared by every codec layer.
// The public API re-exports them from pkg/draco; errors.Is is the
// matching contract throughout the module.
package status

import "errors"

// Codec errors.
var (
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrUnsupportedVersion = errors.New("unsupported bitstream version")
	ErrUnsupportedFeature = errors.New("unsupported feature")
	ErrCorruptBitstream   = errors.New("corrupt bitstream")
	ErrBufferUnderflow    = errors.New("buffer underflow")
	ErrNonManifold        = errors.New("non-manifold mesh")
	ErrInvalidState       = errors.New("invalid buffer state")
	ErrInternal           = errors.New("internal error")
)
