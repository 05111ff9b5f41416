package document

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/hybridex/internal/db"
	domdoc "github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/metric"
	"github.com/kailas-cloud/hybridex/internal/domain/schema"
	"github.com/kailas-cloud/hybridex/internal/domain/schema/field"
	"github.com/kailas-cloud/hybridex/internal/domain/search/filter"
	"github.com/kailas-cloud/hybridex/internal/domain/value"
	"github.com/kailas-cloud/hybridex/internal/repository/codec"
)

// Hash fields every stored document carries.
const (
	hashID      = "__id"
	hashParent  = "__parent"
	hashLexical = "__lexical"
	hashDoc     = "__doc"

	tagPrefix    = "t__"
	vectorPrefix = "v__"

	lexicalAttr  = "lexical"
	tagSeparator = "|"
)

// HNSW build parameters.
const (
	hnswM              = 16
	hnswEFConstruction = 200
)

func tagHashField(name string) string { return tagPrefix + name }

func vectorHashField(docField, encoder string) string {
	return vectorPrefix + docField + "__" + encoder
}

// vectorAttr is the query-side name of a vector field; it must be a plain identifier.
func vectorAttr(docField, encoder string) string {
	return "v_" + identifier(docField) + "_" + identifier(encoder)
}

func identifier(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			return r
		}
		return '_'
	}, s)
}

func distanceMetric(m metric.Metric) db.DistanceMetric {
	switch m {
	case metric.L2:
		return db.DistanceL2
	case metric.Dot:
		return db.DistanceIP
	default:
		return db.DistanceCosine
	}
}

// indexDefinition maps the schema onto an FT index over document hashes.
func indexDefinition(name, keyPrefix string, s schema.Schema, textSearch bool) (*db.IndexDefinition, error) {
	b := db.NewIndex(name).
		Prefix(keyPrefix).
		Tag(hashID, field.KeyID, "").
		Tag(hashParent, field.KeyParentID, "")
	if textSearch {
		b.Text(hashLexical, lexicalAttr)
	}
	for _, f := range s.FilterFields() {
		switch f.FieldType() {
		case field.Numeric:
			b.Numeric(tagHashField(f.Name()), f.Name())
		default:
			b.Tag(tagHashField(f.Name()), f.Name(), tagSeparator)
		}
	}
	distance := distanceMetric(s.Metric())
	for _, enc := range s.Encoders() {
		for _, f := range enc.Fields() {
			b.VectorHNSW(vectorHashField(f.Name, enc.Name()), vectorAttr(f.Name, enc.Name()),
				enc.Dimensions(), distance, hnswM, hnswEFConstruction)
		}
	}
	return b.Build()
}

// encodeHash lays a document out as hash fields. Indexed embeddings become vector fields;
// the rest ride along in the __doc payload and are never searched.
func encodeHash(doc domdoc.Document, s schema.Schema) (map[string]string, error) {
	payload, err := codec.EncodeDocument(unindexedEmbeddings(doc, s), true)
	if err != nil {
		return nil, err
	}
	fields := map[string]string{
		hashID:      doc.ID(),
		hashLexical: doc.LexicalText(),
		hashDoc:     string(payload),
	}
	if doc.ParentID() != "" {
		fields[hashParent] = doc.ParentID()
	}

	for _, ff := range s.FilterFields() {
		v, ok := doc.Tags()[ff.Name()]
		if !ok {
			continue
		}
		switch ff.FieldType() {
		case field.Numeric:
			if n, isNum := v.AsNumber(); isNum {
				fields[tagHashField(ff.Name())] = filterNumber(n)
			}
		default:
			if text := tagText(v); text != "" {
				fields[tagHashField(ff.Name())] = text
			}
		}
	}

	for _, enc := range s.Encoders() {
		for _, f := range enc.Fields() {
			vec, ok := doc.Embedding(f.Name, enc.Name())
			if !ok {
				continue
			}
			if len(vec) != enc.Dimensions() {
				return nil, fmt.Errorf("document %s: %s/%s has %d dimensions, want %d",
					doc.ID(), f.Name, enc.Name(), len(vec), enc.Dimensions())
			}
			fields[vectorHashField(f.Name, enc.Name())] = string(codec.VectorToBytes(vec))
		}
	}
	return fields, nil
}

// unindexedEmbeddings strips doc down to the embeddings that have no vector field.
func unindexedEmbeddings(doc domdoc.Document, s schema.Schema) domdoc.Document {
	bare := doc.WithoutEmbeddings()
	fields := bare.Fields()
	for i, f := range doc.Fields() {
		for name, vec := range f.Embeddings() {
			if enc, ok := s.Encoder(name); ok {
				if _, indexed := enc.Field(f.Name()); indexed {
					continue
				}
			}
			fields[i] = fields[i].WithEmbedding(name, vec)
		}
	}
	return bare.WithFields(fields)
}

// decodeHash rebuilds a document from its hash fields. An empty hash reports ok=false.
func decodeHash(fields map[string]string, s schema.Schema) (domdoc.Document, bool, error) {
	payload, ok := fields[hashDoc]
	if !ok {
		return domdoc.Document{}, false, nil
	}
	doc, err := codec.DecodeDocument([]byte(payload))
	if err != nil {
		return domdoc.Document{}, false, err
	}

	docFields := doc.Fields()
	changed := false
	for i, df := range docFields {
		for _, enc := range s.Encoders() {
			if _, indexed := enc.Field(df.Name()); !indexed {
				continue
			}
			raw, ok := fields[vectorHashField(df.Name(), enc.Name())]
			if !ok {
				continue
			}
			vec, err := codec.BytesToVector([]byte(raw))
			if err != nil {
				return domdoc.Document{}, false, fmt.Errorf("document %s: %w", doc.ID(), err)
			}
			docFields[i] = docFields[i].WithEmbedding(enc.Name(), vec)
			changed = true
		}
	}
	if changed {
		doc = doc.WithFields(docFields)
	}
	return doc, true, nil
}

// tagText renders a tag for a TAG field: scalars as their canonical text, lists joined on
// the separator.
func tagText(v value.Value) string {
	items, isList := v.AsList()
	if !isList {
		text, _ := v.Text()
		return text
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if text, ok := item.Text(); ok && text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, tagSeparator)
}

func filterNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// pushdownable reports whether every condition of f addresses an indexed attribute
// of the matching kind, so the store can evaluate it.
func pushdownable(f filter.Expression, s schema.Schema) bool {
	for _, group := range [][]filter.Condition{f.Must(), f.Should(), f.MustNot()} {
		for _, c := range group {
			if field.IsReserved(c.Key()) {
				if !c.IsMatch() {
					return false
				}
				continue
			}
			ff, ok := s.FilterField(c.Key())
			if !ok {
				return false
			}
			if c.IsRange() != (ff.FieldType() == field.Numeric) {
				return false
			}
		}
	}
	return true
}
