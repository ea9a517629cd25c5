package draco

import "github.com/Faultbox/dracodec/internal/status"

// Codec errors. Match with errors.Is; every failure returned by Encode
// or Decode wraps exactly one of these.
var (
	ErrInvalidParameter   = status.ErrInvalidParameter
	ErrUnsupportedVersion = status.ErrUnsupportedVersion
	ErrUnsupportedFeature = status.ErrUnsupportedFeature
	ErrCorruptBitstream   = status.ErrCorruptBitstream
	ErrBufferUnderflow    = status.ErrBufferUnderflow
	ErrNonManifold        = status.ErrNonManifold
	ErrInternal           = status.ErrInternal
)
