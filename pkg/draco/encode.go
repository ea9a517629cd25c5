package draco

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/dracodec/internal/bitio"
	"github.com/Faultbox/dracodec/internal/corner"
	"github.com/Faultbox/dracodec/internal/ebk"
	"github.com/Faultbox/dracodec/internal/pred"
)

// Wire format constants.
const (
	magicString = "DRACO"

	versionMajor = 2
	versionMinor = 2

	encTypePointCloud      = 0
	encTypeMeshSequential  = 1
	encTypeMeshEdgeBreaker = 2

	flagMetadata        = 0x8000
	flagMetadataDeflate = 0x4000
)

// Geometry is implemented by *Mesh and *PointCloud.
type Geometry interface {
	isGeometry()
}

func (m *Mesh) isGeometry() {}

func (pc *PointCloud) isGeometry() {}

// EncodeMesh compresses a mesh with the given options; nil options mean
// DefaultOptions. The mesh is only read. Optional metadata travels in
// the stream header.
func EncodeMesh(m *Mesh, opts *Options, metadata *Metadata) ([]byte, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if m == nil || m.NumPoints() == 0 {
		return nil, fmt.Errorf("%w: empty mesh", ErrInvalidParameter)
	}
	if m.NumFaces() == 0 {
		return nil, fmt.Errorf("%w: mesh without faces", ErrInvalidParameter)
	}
	if err := validateGeometry(&m.PointCloud); err != nil {
		return nil, err
	}
	if err := validateFaces(m); err != nil {
		return nil, err
	}

	buf := bitio.NewEncoder()
	encType := encTypeMeshSequential
	if opts.method == MethodEdgeBreaker {
		encType = encTypeMeshEdgeBreaker
	}
	if err := writeHeader(buf, encType, opts.method, metadata, opts.metadataDeflate); err != nil {
		return nil, err
	}

	var err error
	if opts.method == MethodEdgeBreaker {
		err = encodeMeshEdgeBreaker(m, opts, buf)
	} else {
		err = encodeMeshSequential(m, opts, buf)
	}
	if err != nil {
		return nil, err
	}
	log.Debug("mesh encoded",
		zap.Int("points", m.NumPoints()),
		zap.Int("faces", m.NumFaces()),
		zap.Int("bytes", buf.Size()))
	return buf.Bytes(), nil
}

// EncodePointCloud compresses a point cloud; connectivity is never
// emitted and attributes use sequential coding.
func EncodePointCloud(pc *PointCloud, opts *Options, metadata *Metadata) ([]byte, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if pc == nil || pc.NumPoints() == 0 {
		return nil, fmt.Errorf("%w: empty point cloud", ErrInvalidParameter)
	}
	if err := validateGeometry(pc); err != nil {
		return nil, err
	}

	buf := bitio.NewEncoder()
	if err := writeHeader(buf, encTypePointCloud, MethodSequential, metadata, opts.metadataDeflate); err != nil {
		return nil, err
	}
	if err := buf.PutVarint(uint64(pc.NumPoints())); err != nil {
		return nil, err
	}

	ctx := &codecContext{
		opts:     opts,
		method:   MethodSequential,
		pointIDs: identityPointIDs(pc.NumPoints()),
		portable: make(map[int][]int32),
	}
	if err := encodeAttributes(pc, ctx, buf); err != nil {
		return nil, err
	}
	log.Debug("point cloud encoded",
		zap.Int("points", pc.NumPoints()),
		zap.Int("bytes", buf.Size()))
	return buf.Bytes(), nil
}

func writeHeader(buf *bitio.Encoder, encType, method int, metadata *Metadata, deflateBody bool) error {
	if err := buf.PutBytes([]byte(magicString)); err != nil {
		return err
	}
	if err := buf.PutUint8(versionMajor); err != nil {
		return err
	}
	if err := buf.PutUint8(versionMinor); err != nil {
		return err
	}
	if err := buf.PutUint8(uint8(encType)); err != nil {
		return err
	}
	if err := buf.PutUint8(uint8(method)); err != nil {
		return err
	}

	var flags uint16
	if metadata != nil && len(metadata.Entries) > 0 {
		flags |= flagMetadata
		// The deflate decision needs the serialized body; write flags
		// provisionally and patch afterwards through a scratch buffer.
		scratch := bitio.NewEncoder()
		deflated, err := encodeMetadata(metadata, deflateBody, scratch)
		if err != nil {
			return err
		}
		if deflated {
			flags |= flagMetadataDeflate
		}
		if err := buf.PutUint16(flags); err != nil {
			return err
		}
		return buf.PutBytes(scratch.Bytes())
	}
	return buf.PutUint16(flags)
}

func validateGeometry(pc *PointCloud) error {
	if pc.NamedAttributeID(Position) < 0 {
		return fmt.Errorf("%w: geometry has no position attribute", ErrInvalidParameter)
	}
	for i := 0; i < pc.NumAttributes(); i++ {
		a := pc.Attribute(i)
		if a.NumEntries() == 0 {
			return fmt.Errorf("%w: attribute %d has no values", ErrInvalidParameter, i)
		}
		if a.IsMapped() {
			if len(a.indexMap) != pc.NumPoints() {
				return fmt.Errorf("%w: attribute %d map covers %d of %d points", ErrInvalidParameter, i, len(a.indexMap), pc.NumPoints())
			}
			for p, v := range a.indexMap {
				if int(v) >= a.NumEntries() {
					return fmt.Errorf("%w: attribute %d maps point %d past its %d values", ErrInvalidParameter, i, p, a.NumEntries())
				}
			}
		} else if a.NumEntries() < pc.NumPoints() {
			return fmt.Errorf("%w: attribute %d holds %d values for %d points", ErrInvalidParameter, i, a.NumEntries(), pc.NumPoints())
		}
	}
	return nil
}

func validateFaces(m *Mesh) error {
	n := PointIndex(m.NumPoints())
	for f := 0; f < m.NumFaces(); f++ {
		face := m.Face(FaceIndex(f))
		for _, v := range face {
			if v >= n {
				return fmt.Errorf("%w: face %d references point %d of %d", ErrInvalidParameter, f, v, n)
			}
		}
		if face[0] == face[1] || face[1] == face[2] || face[2] == face[0] {
			return fmt.Errorf("%w: face %d is degenerate", ErrInvalidParameter, f)
		}
	}
	return nil
}

func identityPointIDs(n int) []PointIndex {
	ids := make([]PointIndex, n)
	for i := range ids {
		ids[i] = PointIndex(i)
	}
	return ids
}

func encodeMeshEdgeBreaker(m *Mesh, opts *Options, buf *bitio.Encoder) error {
	// Every point must sit on a face; EdgeBreaker has no way to carry
	// isolated points.
	referenced := make([]bool, m.NumPoints())
	faces := make([][3]corner.VertexIndex, m.NumFaces())
	for f := 0; f < m.NumFaces(); f++ {
		face := m.Face(FaceIndex(f))
		for k := 0; k < 3; k++ {
			faces[f][k] = corner.VertexIndex(face[k])
			referenced[face[k]] = true
		}
	}
	for p, ok := range referenced {
		if !ok {
			return fmt.Errorf("%w: point %d is not referenced by any face", ErrInvalidParameter, p)
		}
	}

	table, err := corner.NewTable(faces, m.NumPoints())
	if err != nil {
		return err
	}

	traversalMethod := corner.TraversalDepthFirst
	if opts.encodingSpeed < 7 {
		traversalMethod = corner.TraversalMaxPredictionDegree
	}
	if err := buf.PutUint8(uint8(traversalMethod)); err != nil {
		return err
	}

	conn, err := ebk.EncodeConnectivity(table, traversalMethod, buf)
	if err != nil {
		return err
	}
	log.Debug("edgebreaker connectivity encoded",
		zap.Int("symbols", conn.NumSymbols),
		zap.Int("traversal", traversalMethod))

	seq := corner.Traverse(traversalMethod, table, conn.Seeds)
	if len(seq.Order) != m.NumPoints() {
		return fmt.Errorf("%w: traversal reached %d of %d points", ErrInternal, len(seq.Order), m.NumPoints())
	}
	pointIDs := make([]PointIndex, len(seq.Order))
	for i, v := range seq.Order {
		pointIDs[i] = PointIndex(v)
	}

	ctx := &codecContext{
		opts:     opts,
		method:   MethodEdgeBreaker,
		pointIDs: pointIDs,
		meshData: &pred.MeshData{
			Table:        table,
			DataToCorner: seq.DataToCorner,
			VertexToData: seq.VertexToData,
		},
		portable: make(map[int][]int32),
	}
	return encodeAttributes(&m.PointCloud, ctx, buf)
}

func encodeMeshSequential(m *Mesh, opts *Options, buf *bitio.Encoder) error {
	if err := buf.PutVarint(uint64(m.NumPoints())); err != nil {
		return err
	}
	if err := buf.PutVarint(uint64(m.NumFaces())); err != nil {
		return err
	}
	// Faces as zig-zag varints of index deltas across the stream.
	var prev int64
	for f := 0; f < m.NumFaces(); f++ {
		face := m.Face(FaceIndex(f))
		for k := 0; k < 3; k++ {
			idx := int64(face[k])
			delta := idx - prev
			if err := buf.PutVarint(uint64(zigzagEncode64(delta))); err != nil {
				return err
			}
			prev = idx
		}
	}

	ctx := &codecContext{
		opts:     opts,
		method:   MethodSequential,
		pointIDs: identityPointIDs(m.NumPoints()),
		portable: make(map[int][]int32),
	}
	return encodeAttributes(&m.PointCloud, ctx, buf)
}

func zigzagEncode64(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func zigzagDecode64(u uint64) int64 {
	if u&1 != 0 {
		return -int64((u + 1) >> 1)
	}
	return int64(u >> 1)
}

// encodeAttributes writes the attribute table, every value payload and
// every transform parameter block.
func encodeAttributes(pc *PointCloud, ctx *codecContext, buf *bitio.Encoder) error {
	if err := buf.PutVarint(uint64(pc.NumAttributes())); err != nil {
		return err
	}
	kinds := make([]int, pc.NumAttributes())
	for i := 0; i < pc.NumAttributes(); i++ {
		a := pc.Attribute(i)
		qBits := ctx.opts.attributeQuantization(i, a.AttributeType())
		kinds[i] = classifyAttribute(a, qBits)
		if err := buf.PutUint8(uint8(a.AttributeType())); err != nil {
			return err
		}
		if err := buf.PutUint8(uint8(a.DataType())); err != nil {
			return err
		}
		if err := buf.PutUint8(uint8(a.NumComponents())); err != nil {
			return err
		}
		normalized := uint8(0)
		if a.Normalized() {
			normalized = 1
		}
		if err := buf.PutUint8(normalized); err != nil {
			return err
		}
		if err := buf.PutVarint(uint64(a.UniqueID())); err != nil {
			return err
		}
		if err := buf.PutUint8(uint8(kinds[i])); err != nil {
			return err
		}
	}

	quantTransforms := make([]*quantizationTransform, pc.NumAttributes())
	octaTransforms := make([]*octahedralTransform, pc.NumAttributes())

	for i := 0; i < pc.NumAttributes(); i++ {
		a := pc.Attribute(i)
		qBits := ctx.opts.attributeQuantization(i, a.AttributeType())
		switch kinds[i] {
		case codecNormal:
			t, err := newOctahedralTransform(qBits)
			if err != nil {
				return err
			}
			values, err := t.octahedralValues(a, ctx.pointIDs)
			if err != nil {
				return err
			}
			scheme := ctx.selectPredictionScheme(pc, i, codecNormal)
			enc, err := ctx.newEncoderScheme(pc, i, codecNormal, scheme, t.bits)
			if err != nil {
				return err
			}
			if err := encodeIntegerValues(values, 2, enc, buf); err != nil {
				return err
			}
			ctx.portable[i] = values
			octaTransforms[i] = t
			log.Debug("normal attribute encoded", zap.Int("attr", i), zap.Int("scheme", scheme))

		case codecQuantized:
			t, err := computeQuantizationParameters(a, qBits)
			if err != nil {
				return err
			}
			values := t.quantizeValues(a, ctx.pointIDs)
			scheme := ctx.selectPredictionScheme(pc, i, codecQuantized)
			enc, err := ctx.newEncoderScheme(pc, i, codecQuantized, scheme, 0)
			if err != nil {
				return err
			}
			if err := encodeIntegerValues(values, a.NumComponents(), enc, buf); err != nil {
				return err
			}
			ctx.portable[i] = values
			quantTransforms[i] = t
			log.Debug("quantized attribute encoded", zap.Int("attr", i), zap.Int("scheme", scheme))

		case codecInteger:
			values := gatherIntegerValues(a, ctx.pointIDs)
			scheme := ctx.selectPredictionScheme(pc, i, codecInteger)
			enc, err := ctx.newEncoderScheme(pc, i, codecInteger, scheme, 0)
			if err != nil {
				return err
			}
			if err := encodeIntegerValues(values, a.NumComponents(), enc, buf); err != nil {
				return err
			}
			ctx.portable[i] = values

		case codecRaw:
			for _, p := range ctx.pointIDs {
				value, err := a.Value(a.MappedIndex(p))
				if err != nil {
					return err
				}
				if err := buf.PutBytes(value); err != nil {
					return err
				}
			}
		}
	}

	for i := 0; i < pc.NumAttributes(); i++ {
		switch kinds[i] {
		case codecNormal:
			if err := octaTransforms[i].encodeParameters(buf); err != nil {
				return err
			}
		case codecQuantized:
			if err := quantTransforms[i].encodeParameters(buf); err != nil {
				return err
			}
		}
	}
	return nil
}
