// Package codec serializes documents for the backing stores.
package codec

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/value"
)

type documentDTO struct {
	ID       string                 `json:"id"`
	ParentID string                 `json:"parent_id,omitempty"`
	Fields   []fieldDTO             `json:"fields,omitempty"`
	Tags     map[string]value.Value `json:"tags,omitempty"`
}

type fieldDTO struct {
	Name       string               `json:"name"`
	Text       string               `json:"text,omitempty"`
	URI        string               `json:"uri,omitempty"`
	Embeddings map[string][]float32 `json:"embeddings,omitempty"`
}

// EncodeDocument returns the JSON form of doc. Blobs are never stored.
// Embeddings are included only when withEmbeddings is set.
func EncodeDocument(doc document.Document, withEmbeddings bool) ([]byte, error) {
	dto := documentDTO{ID: doc.ID(), ParentID: doc.ParentID(), Tags: doc.Tags()}
	for _, f := range doc.Fields() {
		fd := fieldDTO{Name: f.Name(), Text: f.Text(), URI: f.URI()}
		if withEmbeddings {
			fd.Embeddings = f.Embeddings()
		}
		dto.Fields = append(dto.Fields, fd)
	}
	data, err := json.Marshal(dto)
	if err != nil {
		return nil, fmt.Errorf("encode document %s: %w", doc.ID(), err)
	}
	return data, nil
}

// DecodeDocument parses the output of EncodeDocument.
func DecodeDocument(data []byte) (document.Document, error) {
	var dto documentDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return document.Document{}, fmt.Errorf("decode document: %w", err)
	}
	fields := make([]document.Field, 0, len(dto.Fields))
	for _, fd := range dto.Fields {
		f, err := document.NewField(fd.Name, fd.Text, fd.URI, nil, fd.Embeddings)
		if err != nil {
			return document.Document{}, fmt.Errorf("decode document %s: %w", dto.ID, err)
		}
		fields = append(fields, f)
	}
	return document.Reconstruct(dto.ID, dto.ParentID, fields, dto.Tags), nil
}

// VectorToBytes serializes v as little-endian float32, the layout FT vector fields expect.
func VectorToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// BytesToVector inverts VectorToBytes.
func BytesToVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid vector encoding: %d bytes is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
