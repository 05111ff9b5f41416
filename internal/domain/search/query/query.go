// Package query holds the query document: the fields a caller searches with and their embeddings.
package query

import (
	"fmt"
	"strings"
)

// MaxTextLength is the maximum length of a single query field's text.
const MaxTextLength = 4096

// Field is one named query field.
type Field struct {
	name       string
	modality   string
	text       string
	embeddings map[string][]float32
}

// NewField validates and creates a query Field.
func NewField(name, modality, text string, embeddings map[string][]float32) (Field, error) {
	if strings.TrimSpace(name) == "" {
		return Field{}, fmt.Errorf("query field name is required")
	}
	if len(text) > MaxTextLength {
		return Field{}, fmt.Errorf("query field %q text too long (max %d chars)", name, MaxTextLength)
	}
	embs := make(map[string][]float32, len(embeddings))
	for enc, v := range embeddings {
		if len(v) == 0 {
			return Field{}, fmt.Errorf("query field %q: empty embedding for encoder %q", name, enc)
		}
		embs[enc] = v
	}
	return Field{name: name, modality: modality, text: text, embeddings: embs}, nil
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// Modality returns the declared modality, empty when inherited from the query.
func (f Field) Modality() string { return f.modality }

// Text returns the literal text.
func (f Field) Text() string { return f.text }

// Embeddings returns vectors keyed by encoder.
func (f Field) Embeddings() map[string][]float32 { return f.embeddings }

// Embedding returns the vector produced by encoder.
func (f Field) Embedding(encoder string) ([]float32, bool) {
	v, ok := f.embeddings[encoder]
	return v, ok
}

// Query is the incoming query document.
// A flat query names its fields freely and is matched against indexed fields by modality.
type Query struct {
	fields   []Field
	flat     bool
	modality string
}

// New validates and creates a Query. Field order is preserved.
func New(fields []Field, flat bool, modality string) (Query, error) {
	if len(fields) == 0 {
		return Query{}, fmt.Errorf("query needs at least one field")
	}
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, dup := seen[f.name]; dup {
			return Query{}, fmt.Errorf("duplicate query field %q", f.name)
		}
		seen[f.name] = struct{}{}
		if flat && f.modality == "" && modality == "" {
			return Query{}, fmt.Errorf("flat query field %q needs a modality", f.name)
		}
	}
	cp := make([]Field, len(fields))
	copy(cp, fields)
	return Query{fields: cp, flat: flat, modality: modality}, nil
}

// Fields returns the query fields in request order.
func (q Query) Fields() []Field { return q.fields }

// Field looks up a field by name.
func (q Query) Field(name string) (Field, bool) {
	for _, f := range q.fields {
		if f.name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Flat reports whether fields are matched by modality instead of by name.
func (q Query) Flat() bool { return q.flat }

// Modality returns the query-level modality.
func (q Query) Modality() string { return q.modality }

// FieldModality returns the effective modality of f.
func (q Query) FieldModality(f Field) string {
	if f.modality != "" {
		return f.modality
	}
	return q.modality
}

// PrimaryText returns the text of the first field that carries any.
func (q Query) PrimaryText() string {
	for _, f := range q.fields {
		if t := strings.TrimSpace(f.text); t != "" {
			return t
		}
	}
	return ""
}

// LexicalText joins the text of every field, used for the lexical base clause.
func (q Query) LexicalText() string {
	parts := make([]string, 0, len(q.fields))
	for _, f := range q.fields {
		if t := strings.TrimSpace(f.text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// WithEmbedding returns a copy where field name carries v for encoder.
func (q Query) WithEmbedding(name, encoder string, v []float32) Query {
	fields := make([]Field, len(q.fields))
	copy(fields, q.fields)
	for i, f := range fields {
		if f.name != name {
			continue
		}
		embs := make(map[string][]float32, len(f.embeddings)+1)
		for k, e := range f.embeddings {
			embs[k] = e
		}
		embs[encoder] = v
		f.embeddings = embs
		fields[i] = f
	}
	q.fields = fields
	return q
}
