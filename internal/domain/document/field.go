package document

import (
	"fmt"
	"strings"
)

// Field is one named part of a document: text, a payload reference and per-encoder embeddings.
type Field struct {
	name       string
	text       string
	uri        string
	blob       []byte
	embeddings map[string][]float32
}

// NewField validates and creates a Field.
func NewField(name, text, uri string, blob []byte, embeddings map[string][]float32) (Field, error) {
	if strings.TrimSpace(name) == "" {
		return Field{}, fmt.Errorf("field name is required")
	}
	if strings.HasPrefix(name, InternalTagPrefix) {
		return Field{}, fmt.Errorf("field name %q uses the reserved prefix %q", name, InternalTagPrefix)
	}
	var embs map[string][]float32
	if len(embeddings) > 0 {
		embs = make(map[string][]float32, len(embeddings))
		for enc, v := range embeddings {
			if enc == "" {
				return Field{}, fmt.Errorf("field %q: encoder name is required", name)
			}
			embs[enc] = v
		}
	}
	return Field{name: name, text: text, uri: uri, blob: blob, embeddings: embs}, nil
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// Text returns the textual content.
func (f Field) Text() string { return f.text }

// URI returns the payload location.
func (f Field) URI() string { return f.uri }

// Blob returns the in-memory payload.
func (f Field) Blob() []byte { return f.blob }

// Embeddings returns vectors keyed by encoder name.
func (f Field) Embeddings() map[string][]float32 { return f.embeddings }

// Embedding returns the vector produced by encoder.
func (f Field) Embedding(encoder string) ([]float32, bool) {
	v, ok := f.embeddings[encoder]
	return v, ok && len(v) > 0
}

// WithText returns a copy with the given text.
func (f Field) WithText(text string) Field {
	f.text = text
	return f
}

// WithURI returns a copy pointing at uri.
func (f Field) WithURI(uri string) Field {
	f.uri = uri
	return f
}

// WithBlob returns a copy carrying blob.
func (f Field) WithBlob(blob []byte) Field {
	f.blob = blob
	return f
}

// WithoutBlob returns a copy with the in-memory payload dropped.
func (f Field) WithoutBlob() Field {
	f.blob = nil
	return f
}

// WithEmbedding returns a copy with one encoder vector set.
func (f Field) WithEmbedding(encoder string, v []float32) Field {
	embs := make(map[string][]float32, len(f.embeddings)+1)
	for k, e := range f.embeddings {
		embs[k] = e
	}
	embs[encoder] = v
	f.embeddings = embs
	return f
}
