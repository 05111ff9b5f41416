// Package term defines the weighted comparison between a query field and a document field.
package term

import "fmt"

// DefaultWeight is the weight of every resolved term unless the caller overrides it.
const DefaultWeight = 1.0

// ScoreTerm compares QueryField of the query with DocumentField of indexed documents
// in the vector space of Encoder.
type ScoreTerm struct {
	QueryField    string
	DocumentField string
	Encoder       string
	Weight        float64
}

// New creates a ScoreTerm.
func New(queryField, documentField, encoder string, weight float64) (ScoreTerm, error) {
	if queryField == "" || documentField == "" || encoder == "" {
		return ScoreTerm{}, fmt.Errorf("score term needs query field, document field and encoder")
	}
	return ScoreTerm{QueryField: queryField, DocumentField: documentField, Encoder: encoder, Weight: weight}, nil
}

// Label is the breakdown key for the term.
func (t ScoreTerm) Label() string {
	return t.QueryField + "-" + t.DocumentField + "-" + t.Encoder
}
