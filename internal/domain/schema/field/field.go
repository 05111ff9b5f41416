// Package field describes tag fields that are declared filterable in the backing store.
package field

import (
	"fmt"
	"regexp"
)

// Type is the indexing type of a filterable tag.
type Type string

// Field type constants.
const (
	// Tag is an exact-match field (strings, bools, list elements).
	Tag     Type = "tag"
	Numeric Type = "numeric"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Reserved filter keys resolved against document identity rather than tags.
const (
	KeyID       = "id"
	KeyParentID = "parent_id"
)

var reservedFieldNames = map[string]bool{KeyID: true, KeyParentID: true}

// Field is an immutable value object describing a filterable tag.
type Field struct {
	name      string
	fieldType Type
}

// New validates and creates a Field.
// Name must start with a letter, be at most 64 chars and not reserved.
func New(name string, ft Type) (Field, error) {
	if name == "" {
		return Field{}, fmt.Errorf("field name is required")
	}
	if len(name) > 64 {
		return Field{}, fmt.Errorf("field name %q too long (max 64)", name)
	}
	if !nameRegex.MatchString(name) {
		return Field{}, fmt.Errorf("field name %q must be alphanumeric and start with a letter", name)
	}
	if reservedFieldNames[name] {
		return Field{}, fmt.Errorf("field name %q is reserved", name)
	}
	if ft != Tag && ft != Numeric {
		return Field{}, fmt.Errorf("invalid field type %q for %q", ft, name)
	}
	return Field{name: name, fieldType: ft}, nil
}

// Name returns the tag key.
func (f Field) Name() string { return f.name }

// FieldType returns the indexing type.
func (f Field) FieldType() Type { return f.fieldType }

// IsReserved reports whether key addresses document identity.
func IsReserved(key string) bool { return reservedFieldNames[key] }
