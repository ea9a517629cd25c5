package pred

import (
	"fmt"
	"math"

	"github.com/Faultbox/dracodec/internal/bitio"
	"github.com/Faultbox/dracodec/internal/corner"
	"github.com/Faultbox/dracodec/internal/rans"
	"github.com/Faultbox/dracodec/internal/status"
)

// Up to four parallelograms are averaged per vertex; each candidate has
// a crease flag stream of its own, keyed by how many candidates were
// available (the context).
const maxNumParallelograms = 4

// constrainedMultiEncoder averages the parallelogram predictors chosen
// by an entropy-driven search; the rejected candidates become crease
// flags transmitted per context.
type constrainedMultiEncoder struct {
	transform residualTransform
	md        *MeshData

	isCreaseEdge   [maxNumParallelograms][]bool
	entropyTracker *rans.EntropyTracker
}

// NewConstrainedMultiEncoder returns the constrained
// multi-parallelogram scheme.
func NewConstrainedMultiEncoder(md *MeshData) Encoder {
	return &constrainedMultiEncoder{
		transform:      newWrapTransform(),
		md:             md,
		entropyTracker: rans.NewEntropyTracker(),
	}
}

func (m *constrainedMultiEncoder) Method() int {
	return MethodConstrainedMulti
}

func (m *constrainedMultiEncoder) TransformType() int {
	return m.transform.transformType()
}

func zigzag32(v int64) uint32 {
	if v < 0 {
		return uint32(-2*v - 1)
	}
	return uint32(2 * v)
}

func (m *constrainedMultiEncoder) ComputeCorrections(values []int32, numComponents int, corr []int32) error {
	m.transform.initEncoding(values, numComponents)
	numEntries := len(values) / numComponents
	if len(m.md.DataToCorner) < numEntries {
		return fmt.Errorf("%w: traversal shorter than attribute data", status.ErrInternal)
	}

	predVals := make([][]int32, maxNumParallelograms)
	for i := range predVals {
		predVals[i] = make([]int32, numComponents)
	}
	multiPred := make([]int32, numComponents)
	deltaPred := make([]int32, numComponents)
	entropySymbols := make([]uint32, numComponents)
	corners := make([]corner.CornerIndex, maxNumParallelograms)
	var totalParallelograms [maxNumParallelograms]int64
	var totalUsed [maxNumParallelograms]int64

	deltaFallback := func(entry int) {
		off := entry * numComponents
		for c := range deltaPred {
			deltaPred[c] = 0
		}
		if entry > 0 {
			copy(deltaPred, values[off-numComponents:off])
		}
		m.transform.computeCorrection(values[off:off+numComponents], deltaPred, corr[off:off+numComponents])
		for c := 0; c < numComponents; c++ {
			entropySymbols[c] = zigzag32(int64(values[off+c]) - int64(deltaPred[c]))
		}
		m.entropyTracker.Push(entropySymbols)
	}

	for entry := 0; entry < numEntries; entry++ {
		off := entry * numComponents
		start := m.md.DataToCorner[entry]
		if start == corner.InvalidCorner {
			deltaFallback(entry)
			continue
		}
		numParallelograms := gatherParallelogramCorners(m.md, start, entry, maxNumParallelograms, corners)
		if numParallelograms == 0 {
			deltaFallback(entry)
			continue
		}
		for i := 0; i < numParallelograms; i++ {
			computeParallelogramPrediction(entry, corners[i], m.md, values, numComponents, predVals[i])
		}

		context := numParallelograms - 1
		bestBits := int64(1<<62 - 1)
		bestResidual := int64(1<<62 - 1)
		bestConfig := 0
		numConfigs := 1 << uint(numParallelograms)
		for config := 0; config < numConfigs; config++ {
			numUsed := 0
			for i := 0; i < numParallelograms; i++ {
				if config&(1<<uint(i)) != 0 {
					numUsed++
				}
			}

			var residualError int64
			if numUsed == 0 {
				for c := range deltaPred {
					deltaPred[c] = 0
				}
				if entry > 0 {
					copy(deltaPred, values[off-numComponents:off])
				}
				for c := 0; c < numComponents; c++ {
					dif := int64(values[off+c]) - int64(deltaPred[c])
					residualError += absI64(dif)
					entropySymbols[c] = zigzag32(dif)
				}
			} else {
				for c := 0; c < numComponents; c++ {
					var sum int64
					for i := 0; i < numParallelograms; i++ {
						if config&(1<<uint(i)) != 0 {
							sum += int64(predVals[i][c])
						}
					}
					multiPred[c] = int32((sum + int64(numUsed)/2) / int64(numUsed))
					dif := int64(values[off+c]) - int64(multiPred[c])
					residualError += absI64(dif)
					entropySymbols[c] = zigzag32(dif)
				}
			}

			data := m.entropyTracker.Peek(entropySymbols)
			bits := rans.NumberOfDataBits(data) + rans.NumberOfRAnsTableBits(data)
			bits += overheadBits(totalUsed[context], totalParallelograms[context], int64(numParallelograms), int64(numUsed))
			if bits < bestBits || (bits == bestBits && residualError < bestResidual) {
				bestBits = bits
				bestResidual = residualError
				bestConfig = config
			}
		}

		numUsed := 0
		for i := 0; i < numParallelograms; i++ {
			used := bestConfig&(1<<uint(i)) != 0
			m.isCreaseEdge[context] = append(m.isCreaseEdge[context], !used)
			totalParallelograms[context]++
			if used {
				numUsed++
				totalUsed[context]++
			}
		}

		if numUsed == 0 {
			deltaFallback(entry)
			continue
		}
		for c := 0; c < numComponents; c++ {
			var sum int64
			for i := 0; i < numParallelograms; i++ {
				if bestConfig&(1<<uint(i)) != 0 {
					sum += int64(predVals[i][c])
				}
			}
			multiPred[c] = int32((sum + int64(numUsed)/2) / int64(numUsed))
			entropySymbols[c] = zigzag32(int64(values[off+c]) - int64(multiPred[c]))
		}
		m.transform.computeCorrection(values[off:off+numComponents], multiPred, corr[off:off+numComponents])
		m.entropyTracker.Push(entropySymbols)
	}
	return nil
}

func (m *constrainedMultiEncoder) EncodePredictionData(buf *bitio.Encoder) error {
	// Crease flags first, transform bounds second.
	for ctx := 0; ctx < maxNumParallelograms; ctx++ {
		flags := m.isCreaseEdge[ctx]
		if err := buf.PutVarint(uint64(len(flags))); err != nil {
			return err
		}
		if len(flags) == 0 {
			continue
		}
		enc := rans.NewBitEncoder()
		enc.StartEncoding()
		for _, f := range flags {
			enc.EncodeBit(f)
		}
		if err := enc.EndEncoding(buf); err != nil {
			return err
		}
	}
	return m.transform.encodeTransformData(buf)
}

func overheadBits(totalUsed, total, numBits, numOnes int64) int64 {
	if total == 0 {
		return numBits
	}
	p := float64(totalUsed) / float64(total)
	if p < 0.001 {
		p = 0.001
	} else if p > 0.999 {
		p = 0.999
	}
	numZeros := numBits - numOnes
	cost := -float64(numOnes)*math.Log2(p) - float64(numZeros)*math.Log2(1.0-p)
	return int64(math.Ceil(cost))
}

func absI64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// constrainedMultiDecoder replays the crease flags against the same
// candidate walk the encoder ran.
type constrainedMultiDecoder struct {
	transform residualTransform
	md        *MeshData

	isCreaseEdge [maxNumParallelograms][]bool
	flagPos      [maxNumParallelograms]int
}

// NewConstrainedMultiDecoder returns the inverse scheme.
func NewConstrainedMultiDecoder(md *MeshData, transformType int) (Decoder, error) {
	tr, err := decoderTransform(transformType)
	if err != nil {
		return nil, err
	}
	return &constrainedMultiDecoder{transform: tr, md: md}, nil
}

func (m *constrainedMultiDecoder) Method() int {
	return MethodConstrainedMulti
}

func (m *constrainedMultiDecoder) TransformType() int {
	return m.transform.transformType()
}

func (m *constrainedMultiDecoder) DecodePredictionData(buf *bitio.Decoder) error {
	for ctx := 0; ctx < maxNumParallelograms; ctx++ {
		numFlags, err := buf.Varint()
		if err != nil {
			return err
		}
		if numFlags > uint64(m.md.Table.NumCorners()) {
			return fmt.Errorf("%w: crease flag count %d", status.ErrCorruptBitstream, numFlags)
		}
		if numFlags == 0 {
			continue
		}
		m.isCreaseEdge[ctx] = make([]bool, numFlags)
		dec := rans.NewBitDecoder()
		if err := dec.StartDecoding(buf); err != nil {
			return err
		}
		for i := range m.isCreaseEdge[ctx] {
			m.isCreaseEdge[ctx][i] = dec.DecodeNextBit()
		}
		dec.EndDecoding()
	}
	return m.transform.decodeTransformData(buf)
}

func (m *constrainedMultiDecoder) ComputeOriginalValues(corr []int32, numComponents int, out []int32) error {
	numEntries := len(corr) / numComponents
	if len(m.md.DataToCorner) < numEntries {
		return fmt.Errorf("%w: traversal shorter than attribute data", status.ErrCorruptBitstream)
	}
	predVals := make([][]int32, maxNumParallelograms)
	for i := range predVals {
		predVals[i] = make([]int32, numComponents)
	}
	multiPred := make([]int32, numComponents)
	deltaPred := make([]int32, numComponents)
	corners := make([]corner.CornerIndex, maxNumParallelograms)

	deltaFallback := func(entry int) {
		off := entry * numComponents
		for c := range deltaPred {
			deltaPred[c] = 0
		}
		if entry > 0 {
			copy(deltaPred, out[off-numComponents:off])
		}
		m.transform.computeOriginal(deltaPred, corr[off:off+numComponents], out[off:off+numComponents])
	}

	for entry := 0; entry < numEntries; entry++ {
		off := entry * numComponents
		start := m.md.DataToCorner[entry]
		if start == corner.InvalidCorner {
			deltaFallback(entry)
			continue
		}
		numParallelograms := gatherParallelogramCorners(m.md, start, entry, maxNumParallelograms, corners)
		if numParallelograms == 0 {
			deltaFallback(entry)
			continue
		}
		context := numParallelograms - 1
		numUsed := 0
		for c := range multiPred {
			multiPred[c] = 0
		}
		sums := make([]int64, numComponents)
		for i := 0; i < numParallelograms; i++ {
			if m.flagPos[context] >= len(m.isCreaseEdge[context]) {
				return fmt.Errorf("%w: crease flag stream exhausted", status.ErrCorruptBitstream)
			}
			isCrease := m.isCreaseEdge[context][m.flagPos[context]]
			m.flagPos[context]++
			if isCrease {
				continue
			}
			if !computeParallelogramPrediction(entry, corners[i], m.md, out, numComponents, predVals[i]) {
				return fmt.Errorf("%w: invalid parallelogram candidate", status.ErrCorruptBitstream)
			}
			for c := 0; c < numComponents; c++ {
				sums[c] += int64(predVals[i][c])
			}
			numUsed++
		}
		if numUsed == 0 {
			deltaFallback(entry)
			continue
		}
		for c := 0; c < numComponents; c++ {
			multiPred[c] = int32((sums[c] + int64(numUsed)/2) / int64(numUsed))
		}
		m.transform.computeOriginal(multiPred, corr[off:off+numComponents], out[off:off+numComponents])
	}
	return nil
}
