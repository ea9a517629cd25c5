package draco

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/dracodec/internal/bitio"
	"github.com/Faultbox/dracodec/internal/corner"
	"github.com/Faultbox/dracodec/internal/ebk"
	"github.com/Faultbox/dracodec/internal/pred"
)

// Decode reconstructs the geometry from a compressed stream. The
// returned value is a *Mesh or a *PointCloud depending on the stream.
func Decode(data []byte) (Geometry, error) {
	g, _, err := DecodeWithMetadata(data)
	return g, err
}

// DecodeMesh decodes a stream that must contain a mesh.
func DecodeMesh(data []byte) (*Mesh, error) {
	g, err := Decode(data)
	if err != nil {
		return nil, err
	}
	m, ok := g.(*Mesh)
	if !ok {
		return nil, fmt.Errorf("%w: stream holds a point cloud, not a mesh", ErrInvalidParameter)
	}
	return m, nil
}

// DecodePointCloud decodes a stream that must contain a point cloud.
func DecodePointCloud(data []byte) (*PointCloud, error) {
	g, err := Decode(data)
	if err != nil {
		return nil, err
	}
	pc, ok := g.(*PointCloud)
	if !ok {
		return nil, fmt.Errorf("%w: stream holds a mesh, not a point cloud", ErrInvalidParameter)
	}
	return pc, nil
}

// DecodeWithMetadata decodes the geometry along with any metadata block
// carried by the stream.
func DecodeWithMetadata(data []byte) (Geometry, *Metadata, error) {
	buf := bitio.NewDecoder(data)

	encType, method, metadata, err := readHeader(buf)
	if err != nil {
		return nil, nil, err
	}

	switch encType {
	case encTypePointCloud:
		pc, err := decodePointCloudPayload(buf)
		if err != nil {
			return nil, nil, err
		}
		return pc, metadata, nil
	case encTypeMeshSequential:
		if method != MethodSequential {
			return nil, nil, fmt.Errorf("%w: method %d for sequential mesh", ErrCorruptBitstream, method)
		}
		m, err := decodeMeshSequentialPayload(buf)
		if err != nil {
			return nil, nil, err
		}
		return m, metadata, nil
	case encTypeMeshEdgeBreaker:
		if method != MethodEdgeBreaker {
			return nil, nil, fmt.Errorf("%w: method %d for edgebreaker mesh", ErrCorruptBitstream, method)
		}
		m, err := decodeMeshEdgeBreakerPayload(buf)
		if err != nil {
			return nil, nil, err
		}
		return m, metadata, nil
	default:
		return nil, nil, fmt.Errorf("%w: encoder type %d", ErrCorruptBitstream, encType)
	}
}

func readHeader(buf *bitio.Decoder) (encType, method int, metadata *Metadata, err error) {
	magic := make([]byte, 5)
	if err = buf.Bytes(magic); err != nil {
		return 0, 0, nil, err
	}
	if string(magic) != magicString {
		return 0, 0, nil, fmt.Errorf("%w: bad magic %q", ErrCorruptBitstream, magic)
	}
	major, err := buf.Uint8()
	if err != nil {
		return 0, 0, nil, err
	}
	minor, err := buf.Uint8()
	if err != nil {
		return 0, 0, nil, err
	}
	if major != versionMajor || minor != versionMinor {
		return 0, 0, nil, fmt.Errorf("%w: %d.%d", ErrUnsupportedVersion, major, minor)
	}
	t, err := buf.Uint8()
	if err != nil {
		return 0, 0, nil, err
	}
	m, err := buf.Uint8()
	if err != nil {
		return 0, 0, nil, err
	}
	flags, err := buf.Uint16()
	if err != nil {
		return 0, 0, nil, err
	}
	if flags&flagMetadata != 0 {
		metadata, err = decodeMetadata(buf, flags&flagMetadataDeflate != 0)
		if err != nil {
			return 0, 0, nil, err
		}
	}
	return int(t), int(m), metadata, nil
}

func decodePointCloudPayload(buf *bitio.Decoder) (*PointCloud, error) {
	numPoints64, err := buf.Varint()
	if err != nil {
		return nil, err
	}
	numPoints := int(numPoints64)
	if numPoints <= 0 || numPoints > buf.DecodedSize()*64 {
		return nil, fmt.Errorf("%w: point count %d", ErrCorruptBitstream, numPoints64)
	}
	pc := NewPointCloud()
	pc.SetNumPoints(numPoints)

	ctx := &codecContext{
		opts:     DefaultOptions(),
		method:   MethodSequential,
		pointIDs: identityPointIDs(numPoints),
		portable: make(map[int][]int32),
	}
	if err := decodeAttributes(pc, ctx, buf); err != nil {
		return nil, err
	}
	log.Debug("point cloud decoded", zap.Int("points", numPoints))
	return pc, nil
}

func decodeMeshSequentialPayload(buf *bitio.Decoder) (*Mesh, error) {
	numPoints64, err := buf.Varint()
	if err != nil {
		return nil, err
	}
	numFaces64, err := buf.Varint()
	if err != nil {
		return nil, err
	}
	numPoints := int(numPoints64)
	numFaces := int(numFaces64)
	if numPoints <= 0 || numFaces <= 0 || numFaces > buf.Remaining() {
		return nil, fmt.Errorf("%w: implausible mesh counts", ErrCorruptBitstream)
	}

	m := NewMesh()
	m.SetNumPoints(numPoints)
	var prev int64
	for f := 0; f < numFaces; f++ {
		var face Face
		for k := 0; k < 3; k++ {
			u, err := buf.Varint()
			if err != nil {
				return nil, err
			}
			idx := prev + zigzagDecode64(u)
			if idx < 0 || idx >= int64(numPoints) {
				return nil, fmt.Errorf("%w: face index %d of %d", ErrCorruptBitstream, idx, numPoints)
			}
			face[k] = PointIndex(idx)
			prev = idx
		}
		m.AddFace(face)
	}

	ctx := &codecContext{
		opts:     DefaultOptions(),
		method:   MethodSequential,
		pointIDs: identityPointIDs(numPoints),
		portable: make(map[int][]int32),
	}
	if err := decodeAttributes(&m.PointCloud, ctx, buf); err != nil {
		return nil, err
	}
	log.Debug("sequential mesh decoded", zap.Int("points", numPoints), zap.Int("faces", numFaces))
	return m, nil
}

func decodeMeshEdgeBreakerPayload(buf *bitio.Decoder) (*Mesh, error) {
	traversalMethod, err := buf.Uint8()
	if err != nil {
		return nil, err
	}
	if traversalMethod > corner.TraversalMaxPredictionDegree {
		return nil, fmt.Errorf("%w: traversal method %d", ErrCorruptBitstream, traversalMethod)
	}

	conn, err := ebk.DecodeConnectivity(buf)
	if err != nil {
		return nil, err
	}

	m := NewMesh()
	m.SetNumPoints(conn.NumPoints)
	for _, f := range conn.Faces {
		m.AddFace(Face{PointIndex(f[0]), PointIndex(f[1]), PointIndex(f[2])})
	}

	seq := corner.Traverse(int(traversalMethod), conn.Table, conn.Seeds)
	if len(seq.Order) != conn.NumPoints {
		return nil, fmt.Errorf("%w: traversal reached %d of %d points", ErrCorruptBitstream, len(seq.Order), conn.NumPoints)
	}
	pointIDs := make([]PointIndex, len(seq.Order))
	for i, v := range seq.Order {
		pointIDs[i] = PointIndex(v)
	}

	ctx := &codecContext{
		opts:     DefaultOptions(),
		method:   MethodEdgeBreaker,
		pointIDs: pointIDs,
		meshData: &pred.MeshData{
			Table:        conn.Table,
			DataToCorner: seq.DataToCorner,
			VertexToData: seq.VertexToData,
		},
		portable: make(map[int][]int32),
	}
	if err := decodeAttributes(&m.PointCloud, ctx, buf); err != nil {
		return nil, err
	}
	log.Debug("edgebreaker mesh decoded",
		zap.Int("points", conn.NumPoints),
		zap.Int("faces", len(conn.Faces)))
	return m, nil
}

// attributeHeader mirrors the per-attribute wire table.
type attributeHeader struct {
	attributeType AttributeType
	dataType      DataType
	numComponents int
	normalized    bool
	uniqueID      uint32
	kind          int
}

// decodeAttributes reads the attribute table, every value payload and
// every transform block, then materializes the final values.
func decodeAttributes(pc *PointCloud, ctx *codecContext, buf *bitio.Decoder) error {
	numAttrs64, err := buf.Varint()
	if err != nil {
		return err
	}
	if numAttrs64 > 1024 {
		return fmt.Errorf("%w: attribute count %d", ErrCorruptBitstream, numAttrs64)
	}
	numAttrs := int(numAttrs64)
	headers := make([]attributeHeader, numAttrs)
	for i := range headers {
		t, err := buf.Uint8()
		if err != nil {
			return err
		}
		if t > uint8(Generic) {
			return fmt.Errorf("%w: attribute semantic %d", ErrCorruptBitstream, t)
		}
		dt, err := buf.Uint8()
		if err != nil {
			return err
		}
		if DataType(dt).ByteLength() == 0 {
			return fmt.Errorf("%w: attribute data type %d", ErrCorruptBitstream, dt)
		}
		nc, err := buf.Uint8()
		if err != nil {
			return err
		}
		if nc < 1 || nc > 16 {
			return fmt.Errorf("%w: component count %d", ErrCorruptBitstream, nc)
		}
		normalized, err := buf.Uint8()
		if err != nil {
			return err
		}
		uniqueID, err := buf.Varint()
		if err != nil {
			return err
		}
		kind, err := buf.Uint8()
		if err != nil {
			return err
		}
		if kind > codecNormal {
			return fmt.Errorf("%w: attribute codec kind %d", ErrCorruptBitstream, kind)
		}
		headers[i] = attributeHeader{
			attributeType: AttributeType(t),
			dataType:      DataType(dt),
			numComponents: int(nc),
			normalized:    normalized != 0,
			uniqueID:      uint32(uniqueID),
			kind:          int(kind),
		}
	}

	numPoints := pc.NumPoints()
	pending := make([][]int32, numAttrs)
	for i, h := range headers {
		a, err := NewPointAttribute(h.attributeType, h.dataType, h.numComponents, h.normalized)
		if err != nil {
			return fmt.Errorf("%w: attribute header %d", ErrCorruptBitstream, i)
		}
		a.SetUniqueID(h.uniqueID)
		a.Reset(numPoints)
		pc.AddAttribute(a)

		switch h.kind {
		case codecNormal:
			if h.dataType != DTFloat32 || h.numComponents != 3 {
				return fmt.Errorf("%w: normal codec on %v[%d]", ErrCorruptBitstream, h.dataType, h.numComponents)
			}
			values, err := ctx.decodeIntegerValues(pc, i, codecNormal, numPoints*2, 2, buf)
			if err != nil {
				return err
			}
			ctx.portable[i] = values
			pending[i] = values
		case codecQuantized:
			if h.dataType != DTFloat32 {
				return fmt.Errorf("%w: quantized codec on %v", ErrCorruptBitstream, h.dataType)
			}
			values, err := ctx.decodeIntegerValues(pc, i, codecQuantized, numPoints*h.numComponents, h.numComponents, buf)
			if err != nil {
				return err
			}
			ctx.portable[i] = values
			pending[i] = values
		case codecInteger:
			if !h.dataType.IsIntegral() {
				return fmt.Errorf("%w: integer codec on %v", ErrCorruptBitstream, h.dataType)
			}
			values, err := ctx.decodeIntegerValues(pc, i, codecInteger, numPoints*h.numComponents, h.numComponents, buf)
			if err != nil {
				return err
			}
			ctx.portable[i] = values
			storeIntegerValues(values, ctx.pointIDs, a)
		case codecRaw:
			stride := a.ByteStride()
			for _, p := range ctx.pointIDs {
				value, err := buf.Slice(stride)
				if err != nil {
					return err
				}
				if err := a.SetValue(AttributeValueIndex(p), value); err != nil {
					return err
				}
			}
		}
	}

	// Transform parameter blocks, then the inverse transforms. Decoded
	// values land in point order: entry id equals point id.
	for i, h := range headers {
		a := pc.Attribute(i)
		switch h.kind {
		case codecNormal:
			t, err := decodeOctahedralParameters(buf)
			if err != nil {
				return err
			}
			reordered := reorderToPointOrder(pending[i], 2, ctx.pointIDs)
			if err := t.inverseOctahedralValues(reordered, a); err != nil {
				return err
			}
		case codecQuantized:
			t, err := decodeQuantizationParameters(h.numComponents, buf)
			if err != nil {
				return err
			}
			reordered := reorderToPointOrder(pending[i], h.numComponents, ctx.pointIDs)
			if err := t.dequantizeValues(reordered, a); err != nil {
				return err
			}
		}
	}
	return nil
}

// reorderToPointOrder flips data-order values into point-id order.
func reorderToPointOrder(values []int32, numComponents int, pointIDs []PointIndex) []int32 {
	out := make([]int32, len(values))
	for i, p := range pointIDs {
		copy(out[int(p)*numComponents:(int(p)+1)*numComponents], values[i*numComponents:(i+1)*numComponents])
	}
	return out
}
