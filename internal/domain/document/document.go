package document

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/kailas-cloud/hybridex/internal/domain/value"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

// MaxIDLength is the maximum document ID length.
const MaxIDLength = 256

// InternalTagPrefix marks bookkeeping tags that are persisted but never returned to callers.
const InternalTagPrefix = "__"

// Bookkeeping tags maintained by the indexer.
const (
	TagHasText = "__has_text"
	TagOCRText = "__ocr_text"
)

// IsInternalTag reports whether a tag key is bookkeeping.
func IsInternalTag(key string) bool { return strings.HasPrefix(key, InternalTagPrefix) }

// Document is an indexed unit (a parent document or one of its chunks).
type Document struct {
	id       string
	parentID string
	fields   []Field
	tags     map[string]value.Value
}

// New validates and creates a Document. An empty id is allowed; the indexer assigns one.
func New(id, parentID string, fields []Field, tags map[string]value.Value) (Document, error) {
	if id != "" {
		if err := ValidateID(id); err != nil {
			return Document{}, err
		}
	}
	if parentID != "" {
		if err := ValidateID(parentID); err != nil {
			return Document{}, fmt.Errorf("parent: %w", err)
		}
		if parentID == id {
			return Document{}, fmt.Errorf("document %q cannot be its own parent", id)
		}
	}

	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, dup := seen[f.name]; dup {
			return Document{}, fmt.Errorf("duplicate field %q", f.name)
		}
		seen[f.name] = struct{}{}
		for enc, vec := range f.embeddings {
			if err := validateVector(vec); err != nil {
				return Document{}, fmt.Errorf("field %q encoder %q: %w", f.name, enc, err)
			}
		}
	}

	return Document{
		id:       id,
		parentID: parentID,
		fields:   sortFields(fields),
		tags:     cloneTags(tags),
	}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(id, parentID string, fields []Field, tags map[string]value.Value) Document {
	return Document{id: id, parentID: parentID, fields: sortFields(fields), tags: tags}
}

// ValidateID checks the document id format.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("document ID is required")
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("document ID too long (max %d)", MaxIDLength)
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("document ID %q contains invalid characters", id)
	}
	return nil
}

// ID returns the document identifier.
func (d Document) ID() string { return d.id }

// ParentID returns the owning parent id, empty for top-level documents.
func (d Document) ParentID() string { return d.parentID }

// GroupKey is the id results are aggregated under: the parent when set, else the document itself.
func (d Document) GroupKey() string {
	if d.parentID != "" {
		return d.parentID
	}
	return d.id
}

// Fields returns the fields ordered by name.
func (d Document) Fields() []Field { return d.fields }

// Field looks up a field by name.
func (d Document) Field(name string) (Field, bool) {
	for _, f := range d.fields {
		if f.name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Tags returns all tags including bookkeeping ones.
func (d Document) Tags() map[string]value.Value { return d.tags }

// PublicTags returns the tags with bookkeeping keys removed.
func (d Document) PublicTags() map[string]value.Value {
	return PublicTags(d.tags)
}

// PublicTags strips bookkeeping keys from a tag map.
func PublicTags(tags map[string]value.Value) map[string]value.Value {
	out := make(map[string]value.Value, len(tags))
	for k, v := range tags {
		if !IsInternalTag(k) {
			out[k] = v
		}
	}
	return out
}

// Embedding returns the vector produced by encoder for the named field.
func (d Document) Embedding(field, encoder string) ([]float32, bool) {
	f, ok := d.Field(field)
	if !ok {
		return nil, false
	}
	return f.Embedding(encoder)
}

// LexicalText concatenates the textual content of all fields in name order.
func (d Document) LexicalText() string {
	parts := make([]string, 0, len(d.fields))
	for _, f := range d.fields {
		if t := strings.TrimSpace(f.text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// WithID returns a copy with the given id.
func (d Document) WithID(id string) Document {
	d.id = id
	return d
}

// WithFields returns a copy with the given fields.
func (d Document) WithFields(fields []Field) Document {
	d.fields = sortFields(fields)
	return d
}

// WithTag returns a copy with one tag set.
func (d Document) WithTag(key string, v value.Value) Document {
	tags := cloneTags(d.tags)
	if tags == nil {
		tags = make(map[string]value.Value, 1)
	}
	tags[key] = v
	d.tags = tags
	return d
}

// Public returns the caller-facing projection: bookkeeping tags removed, blobs dropped.
func (d Document) Public() Document {
	fields := make([]Field, len(d.fields))
	for i, f := range d.fields {
		fields[i] = f.WithoutBlob()
	}
	return Document{id: d.id, parentID: d.parentID, fields: fields, tags: d.PublicTags()}
}

// WithoutEmbeddings returns a copy whose fields carry no vectors.
func (d Document) WithoutEmbeddings() Document {
	fields := make([]Field, len(d.fields))
	for i, f := range d.fields {
		f.embeddings = nil
		fields[i] = f
	}
	d.fields = fields
	return d
}

func validateVector(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("empty embedding")
	}
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return fmt.Errorf("embedding contains non-finite values")
		}
	}
	return nil
}

func sortFields(fields []Field) []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	sort.SliceStable(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func cloneTags(m map[string]value.Value) map[string]value.Value {
	if m == nil {
		return nil
	}
	c := make(map[string]value.Value, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// TagCount is one tag value and how many documents carry it.
type TagCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}
