package draco

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/Faultbox/dracodec/internal/bitio"
)

// MetadataEntry is one key/value pair of the optional metadata block.
type MetadataEntry struct {
	Name  string
	Value []byte
}

// Metadata is an ordered set of entries attached to a compressed
// stream.
type Metadata struct {
	Entries []MetadataEntry
}

// Add appends an entry.
func (m *Metadata) Add(name string, value []byte) {
	m.Entries = append(m.Entries, MetadataEntry{Name: name, Value: value})
}

// Get returns the value of the first entry with the given name.
func (m *Metadata) Get(name string) ([]byte, bool) {
	for _, e := range m.Entries {
		if e.Name == name {
			return e.Value, true
		}
	}
	return nil, false
}

func (m *Metadata) serialize() ([]byte, error) {
	body := bitio.NewEncoder()
	if err := body.PutVarint(uint64(len(m.Entries))); err != nil {
		return nil, err
	}
	for _, e := range m.Entries {
		if len(e.Name) > 255 {
			return nil, fmt.Errorf("%w: metadata name longer than 255 bytes", ErrInvalidParameter)
		}
		if err := body.PutUint8(uint8(len(e.Name))); err != nil {
			return nil, err
		}
		if err := body.PutBytes([]byte(e.Name)); err != nil {
			return nil, err
		}
		if err := body.PutVarint(uint64(len(e.Value))); err != nil {
			return nil, err
		}
		if err := body.PutBytes(e.Value); err != nil {
			return nil, err
		}
	}
	return body.Bytes(), nil
}

// encodeMetadata writes the block, optionally deflated. It reports
// whether the deflated form was used.
func encodeMetadata(m *Metadata, deflateBody bool, buf *bitio.Encoder) (bool, error) {
	body, err := m.serialize()
	if err != nil {
		return false, err
	}
	if deflateBody && len(body) > 64 {
		var compressed bytes.Buffer
		w, err := flate.NewWriter(&compressed, flate.BestCompression)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrInternal, err)
		}
		if _, err := w.Write(body); err != nil {
			return false, fmt.Errorf("%w: %v", ErrInternal, err)
		}
		if err := w.Close(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrInternal, err)
		}
		if compressed.Len() < len(body) {
			if err := buf.PutVarint(uint64(len(body))); err != nil {
				return false, err
			}
			if err := buf.PutVarint(uint64(compressed.Len())); err != nil {
				return false, err
			}
			return true, buf.PutBytes(compressed.Bytes())
		}
	}
	return false, buf.PutBytes(body)
}

// decodeMetadata reads the block written by encodeMetadata.
func decodeMetadata(buf *bitio.Decoder, deflated bool) (*Metadata, error) {
	src := buf
	if deflated {
		rawSize, err := buf.Varint()
		if err != nil {
			return nil, err
		}
		compressedSize, err := buf.Varint()
		if err != nil {
			return nil, err
		}
		payload, err := buf.Slice(int(compressedSize))
		if err != nil {
			return nil, err
		}
		if rawSize > uint64(len(payload))*1024+1024 {
			return nil, fmt.Errorf("%w: implausible metadata expansion", ErrCorruptBitstream)
		}
		r := flate.NewReader(bytes.NewReader(payload))
		body := make([]byte, rawSize)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("%w: metadata inflate: %v", ErrCorruptBitstream, err)
		}
		src = bitio.NewDecoder(body)
	}

	count, err := src.Varint()
	if err != nil {
		return nil, err
	}
	if count > uint64(src.Remaining()) {
		return nil, fmt.Errorf("%w: metadata entry count %d", ErrCorruptBitstream, count)
	}
	m := &Metadata{}
	for i := uint64(0); i < count; i++ {
		nameLen, err := src.Uint8()
		if err != nil {
			return nil, err
		}
		name := make([]byte, nameLen)
		if err := src.Bytes(name); err != nil {
			return nil, err
		}
		valueLen, err := src.Varint()
		if err != nil {
			return nil, err
		}
		value := make([]byte, valueLen)
		if err := src.Bytes(value); err != nil {
			return nil, err
		}
		m.Add(string(name), value)
	}
	return m, nil
}
