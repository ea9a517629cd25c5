// Package draco implements a lossy compression codec for triangle
// meshes and point clouds. Geometry enters as a Mesh or PointCloud with
// attached attributes and leaves as a compact self-describing byte
// stream; Decode reconstructs a faithful approximation. Mesh
// connectivity is compressed with EdgeBreaker, attribute values with
// quantization, neighborhood prediction and rANS entropy coding.
package draco

import (
	"encoding/binary"
	"fmt"
	"math"
)

// PointIndex identifies a point of a geometry.
type PointIndex uint32

// AttributeValueIndex identifies a stored attribute value.
type AttributeValueIndex uint32

// FaceIndex identifies a triangle of a mesh.
type FaceIndex uint32

// Face is a triangle of point indices.
type Face [3]PointIndex

// AttributeType is the semantic of an attribute.
type AttributeType uint8

// Attribute semantics.
const (
	Position AttributeType = 0
	Normal   AttributeType = 1
	Color    AttributeType = 2
	TexCoord AttributeType = 3
	Generic  AttributeType = 4
)

// String returns a human-readable semantic name.
func (t AttributeType) String() string {
	switch t {
	case Position:
		return "Position"
	case Normal:
		return "Normal"
	case Color:
		return "Color"
	case TexCoord:
		return "TexCoord"
	case Generic:
		return "Generic"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// DataType is the primitive component type of an attribute.
type DataType uint8

// Primitive data types.
const (
	DTInvalid DataType = 0
	DTInt8    DataType = 1
	DTUint8   DataType = 2
	DTInt16   DataType = 3
	DTUint16  DataType = 4
	DTInt32   DataType = 5
	DTUint32  DataType = 6
	DTInt64   DataType = 7
	DTUint64  DataType = 8
	DTFloat32 DataType = 9
	DTFloat64 DataType = 10
	DTBool    DataType = 11
)

// ByteLength returns the size of one component in bytes.
func (t DataType) ByteLength() int {
	switch t {
	case DTInt8, DTUint8, DTBool:
		return 1
	case DTInt16, DTUint16:
		return 2
	case DTInt32, DTUint32, DTFloat32:
		return 4
	case DTInt64, DTUint64, DTFloat64:
		return 8
	default:
		return 0
	}
}

// IsIntegral reports whether the type holds integers that fit an int32.
func (t DataType) IsIntegral() bool {
	switch t {
	case DTInt8, DTUint8, DTInt16, DTUint16, DTInt32, DTUint32, DTBool:
		return true
	default:
		return false
	}
}

// PointAttribute is per-point data: a contiguous value buffer plus an
// optional point-to-value map for shared values.
type PointAttribute struct {
	attributeType AttributeType
	dataType      DataType
	numComponents uint8
	normalized    bool
	uniqueID      uint32

	data       []byte
	numEntries int
	// indexMap maps points to value entries; nil means identity.
	indexMap []AttributeValueIndex
}

// NewPointAttribute returns an empty attribute of the given shape.
func NewPointAttribute(attributeType AttributeType, dataType DataType, numComponents int, normalized bool) (*PointAttribute, error) {
	if numComponents < 1 || numComponents > 16 {
		return nil, fmt.Errorf("%w: %d components", ErrInvalidParameter, numComponents)
	}
	if dataType.ByteLength() == 0 {
		return nil, fmt.Errorf("%w: invalid data type", ErrInvalidParameter)
	}
	return &PointAttribute{
		attributeType: attributeType,
		dataType:      dataType,
		numComponents: uint8(numComponents),
		normalized:    normalized,
	}, nil
}

// AttributeType returns the semantic.
func (a *PointAttribute) AttributeType() AttributeType { return a.attributeType }

// DataType returns the primitive component type.
func (a *PointAttribute) DataType() DataType { return a.dataType }

// NumComponents returns the component count.
func (a *PointAttribute) NumComponents() int { return int(a.numComponents) }

// Normalized reports the fixed-point interpretation flag.
func (a *PointAttribute) Normalized() bool { return a.normalized }

// UniqueID returns the stable attribute id within its geometry.
func (a *PointAttribute) UniqueID() uint32 { return a.uniqueID }

// SetUniqueID overrides the stable attribute id.
func (a *PointAttribute) SetUniqueID(id uint32) { a.uniqueID = id }

// ByteStride returns the per-value byte stride.
func (a *PointAttribute) ByteStride() int {
	return int(a.numComponents) * a.dataType.ByteLength()
}

// NumEntries returns the number of stored values.
func (a *PointAttribute) NumEntries() int { return a.numEntries }

// IsMapped reports whether points share values through an explicit map.
func (a *PointAttribute) IsMapped() bool { return a.indexMap != nil }

// Reset sizes the value buffer for numEntries values with an identity
// point-to-value mapping.
func (a *PointAttribute) Reset(numEntries int) {
	a.numEntries = numEntries
	a.data = make([]byte, numEntries*a.ByteStride())
	a.indexMap = nil
}

// SetExplicitMapping installs a point-to-value map of length numPoints.
// Every entry must stay below the value count.
func (a *PointAttribute) SetExplicitMapping(indexMap []AttributeValueIndex) {
	a.indexMap = indexMap
}

// MappedIndex resolves the value entry for a point.
func (a *PointAttribute) MappedIndex(p PointIndex) AttributeValueIndex {
	if a.indexMap == nil {
		return AttributeValueIndex(p)
	}
	if int(p) >= len(a.indexMap) {
		return AttributeValueIndex(^uint32(0))
	}
	return a.indexMap[p]
}

// SetValue copies one value's raw bytes into entry i.
func (a *PointAttribute) SetValue(i AttributeValueIndex, value []byte) error {
	stride := a.ByteStride()
	if len(value) != stride {
		return fmt.Errorf("%w: value size %d, stride %d", ErrInvalidParameter, len(value), stride)
	}
	off := int(i) * stride
	if off+stride > len(a.data) {
		return fmt.Errorf("%w: value index %d of %d", ErrInvalidParameter, i, a.numEntries)
	}
	copy(a.data[off:off+stride], value)
	return nil
}

// Value returns a borrowed view of entry i's raw bytes.
func (a *PointAttribute) Value(i AttributeValueIndex) ([]byte, error) {
	stride := a.ByteStride()
	off := int(i) * stride
	if off < 0 || off+stride > len(a.data) {
		return nil, fmt.Errorf("%w: value index %d of %d", ErrInvalidParameter, i, a.numEntries)
	}
	return a.data[off : off+stride], nil
}

// SetFloat32 writes a float32 vector into entry i; the attribute must
// hold float32 components.
func (a *PointAttribute) SetFloat32(i AttributeValueIndex, value []float32) error {
	if a.dataType != DTFloat32 || len(value) != int(a.numComponents) {
		return fmt.Errorf("%w: float32 write to %v attribute", ErrInvalidParameter, a.dataType)
	}
	off := int(i) * a.ByteStride()
	if off+a.ByteStride() > len(a.data) {
		return fmt.Errorf("%w: value index %d of %d", ErrInvalidParameter, i, a.numEntries)
	}
	for c, v := range value {
		binary.LittleEndian.PutUint32(a.data[off+4*c:], math.Float32bits(v))
	}
	return nil
}

// Float32 reads entry i as a float32 vector.
func (a *PointAttribute) Float32(i AttributeValueIndex, out []float32) error {
	if a.dataType != DTFloat32 || len(out) != int(a.numComponents) {
		return fmt.Errorf("%w: float32 read from %v attribute", ErrInvalidParameter, a.dataType)
	}
	off := int(i) * a.ByteStride()
	if off < 0 || off+a.ByteStride() > len(a.data) {
		return fmt.Errorf("%w: value index %d of %d", ErrInvalidParameter, i, a.numEntries)
	}
	for c := range out {
		out[c] = math.Float32frombits(binary.LittleEndian.Uint32(a.data[off+4*c:]))
	}
	return nil
}

// componentInt32 reads component c of entry i as an int32.
func (a *PointAttribute) componentInt32(i AttributeValueIndex, c int) int32 {
	off := int(i)*a.ByteStride() + c*a.dataType.ByteLength()
	switch a.dataType {
	case DTInt8:
		return int32(int8(a.data[off]))
	case DTUint8, DTBool:
		return int32(a.data[off])
	case DTInt16:
		return int32(int16(binary.LittleEndian.Uint16(a.data[off:])))
	case DTUint16:
		return int32(binary.LittleEndian.Uint16(a.data[off:]))
	case DTInt32, DTUint32:
		return int32(binary.LittleEndian.Uint32(a.data[off:]))
	default:
		return 0
	}
}

// setComponentInt32 writes component c of entry i from an int32.
func (a *PointAttribute) setComponentInt32(i AttributeValueIndex, c int, v int32) {
	off := int(i)*a.ByteStride() + c*a.dataType.ByteLength()
	switch a.dataType {
	case DTInt8, DTUint8, DTBool:
		a.data[off] = byte(v)
	case DTInt16, DTUint16:
		binary.LittleEndian.PutUint16(a.data[off:], uint16(v))
	case DTInt32, DTUint32:
		binary.LittleEndian.PutUint32(a.data[off:], uint32(v))
	}
}

// componentFloat32 reads component c of entry i as a float32.
func (a *PointAttribute) componentFloat32(i AttributeValueIndex, c int) float32 {
	off := int(i)*a.ByteStride() + c*a.dataType.ByteLength()
	return math.Float32frombits(binary.LittleEndian.Uint32(a.data[off:]))
}

// PointCloud is an ordered collection of points with attached
// attributes.
type PointCloud struct {
	numPoints  int
	attributes []*PointAttribute
}

// NewPointCloud returns an empty point cloud.
func NewPointCloud() *PointCloud {
	return &PointCloud{}
}

// NumPoints returns the point count.
func (pc *PointCloud) NumPoints() int { return pc.numPoints }

// SetNumPoints sets the point count.
func (pc *PointCloud) SetNumPoints(n int) { pc.numPoints = n }

// NumAttributes returns the attribute count.
func (pc *PointCloud) NumAttributes() int { return len(pc.attributes) }

// AddAttribute attaches an attribute and returns its id. The unique id
// defaults to the insertion index when unset.
func (pc *PointCloud) AddAttribute(a *PointAttribute) int {
	if a.uniqueID == 0 {
		a.uniqueID = uint32(len(pc.attributes))
	}
	pc.attributes = append(pc.attributes, a)
	return len(pc.attributes) - 1
}

// Attribute returns the attribute with the given id, or nil.
func (pc *PointCloud) Attribute(id int) *PointAttribute {
	if id < 0 || id >= len(pc.attributes) {
		return nil
	}
	return pc.attributes[id]
}

// NamedAttributeID returns the id of the first attribute with the given
// semantic, or -1.
func (pc *PointCloud) NamedAttributeID(t AttributeType) int {
	for i, a := range pc.attributes {
		if a.attributeType == t {
			return i
		}
	}
	return -1
}

// NamedAttribute returns the first attribute with the given semantic,
// or nil.
func (pc *PointCloud) NamedAttribute(t AttributeType) *PointAttribute {
	if id := pc.NamedAttributeID(t); id >= 0 {
		return pc.attributes[id]
	}
	return nil
}

// Mesh is a point cloud with triangle connectivity.
type Mesh struct {
	PointCloud
	faces []Face
}

// NewMesh returns an empty mesh.
func NewMesh() *Mesh {
	return &Mesh{}
}

// NumFaces returns the triangle count.
func (m *Mesh) NumFaces() int { return len(m.faces) }

// AddFace appends a triangle.
func (m *Mesh) AddFace(f Face) { m.faces = append(m.faces, f) }

// SetFace overwrites triangle i.
func (m *Mesh) SetFace(i FaceIndex, f Face) { m.faces[i] = f }

// Face returns triangle i.
func (m *Mesh) Face(i FaceIndex) Face { return m.faces[i] }
