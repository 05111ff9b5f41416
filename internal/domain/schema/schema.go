// Package schema describes what the index holds: which encoders embed which document fields,
// the comparison metric, and which tags can be filtered on.
package schema

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/hybridex/internal/domain/metric"
	"github.com/kailas-cloud/hybridex/internal/domain/schema/field"
)

// IndexedField is a document field an encoder has embedded.
type IndexedField struct {
	Name     string
	Modality string
}

// Encoder is one vector space: a name, its dimensionality and the fields embedded into it.
type Encoder struct {
	name       string
	dimensions int
	fields     []IndexedField
}

// NewEncoder validates and creates an Encoder.
func NewEncoder(name string, dimensions int, fields []IndexedField) (Encoder, error) {
	if name == "" {
		return Encoder{}, fmt.Errorf("encoder name is required")
	}
	if dimensions <= 0 {
		return Encoder{}, fmt.Errorf("encoder %q: dimensions must be positive", name)
	}
	if len(fields) == 0 {
		return Encoder{}, fmt.Errorf("encoder %q: at least one indexed field is required", name)
	}
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return Encoder{}, fmt.Errorf("encoder %q: field name is required", name)
		}
		if _, dup := seen[f.Name]; dup {
			return Encoder{}, fmt.Errorf("encoder %q: duplicate field %q", name, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	cp := make([]IndexedField, len(fields))
	copy(cp, fields)
	return Encoder{name: name, dimensions: dimensions, fields: cp}, nil
}

// Name returns the encoder name.
func (e Encoder) Name() string { return e.name }

// Dimensions returns the vector length.
func (e Encoder) Dimensions() int { return e.dimensions }

// Fields returns the indexed fields in declaration order.
func (e Encoder) Fields() []IndexedField { return e.fields }

// Field looks up an indexed field.
func (e Encoder) Field(name string) (IndexedField, bool) {
	for _, f := range e.fields {
		if f.Name == name {
			return f, true
		}
	}
	return IndexedField{}, false
}

// Schema is the immutable index description.
type Schema struct {
	metric   metric.Metric
	encoders map[string]Encoder
	names    []string
	filters  []field.Field
}

// New validates and creates a Schema.
func New(m metric.Metric, encoders []Encoder, filters []field.Field) (Schema, error) {
	byName := make(map[string]Encoder, len(encoders))
	names := make([]string, 0, len(encoders))
	for _, e := range encoders {
		if _, dup := byName[e.name]; dup {
			return Schema{}, fmt.Errorf("duplicate encoder %q", e.name)
		}
		byName[e.name] = e
		names = append(names, e.name)
	}
	sort.Strings(names)

	seen := make(map[string]struct{}, len(filters))
	for _, f := range filters {
		if _, dup := seen[f.Name()]; dup {
			return Schema{}, fmt.Errorf("duplicate filter field %q", f.Name())
		}
		seen[f.Name()] = struct{}{}
	}
	cp := make([]field.Field, len(filters))
	copy(cp, filters)

	return Schema{metric: m, encoders: byName, names: names, filters: cp}, nil
}

// Metric returns the comparison metric.
func (s Schema) Metric() metric.Metric { return s.metric }

// Encoder looks up an encoder by name.
func (s Schema) Encoder(name string) (Encoder, bool) {
	e, ok := s.encoders[name]
	return e, ok
}

// Encoders returns encoders ordered by name.
func (s Schema) Encoders() []Encoder {
	out := make([]Encoder, len(s.names))
	for i, n := range s.names {
		out[i] = s.encoders[n]
	}
	return out
}

// FilterFields returns the declared filterable tags.
func (s Schema) FilterFields() []field.Field { return s.filters }

// FilterField looks up a filterable tag.
func (s Schema) FilterField(name string) (field.Field, bool) {
	for _, f := range s.filters {
		if f.Name() == name {
			return f, true
		}
	}
	return field.Field{}, false
}

// Modality returns the modality an encoder registered for a document field, if any.
func (s Schema) Modality(docField string) string {
	for _, n := range s.names {
		if f, ok := s.encoders[n].Field(docField); ok && f.Modality != "" {
			return f.Modality
		}
	}
	return ""
}
