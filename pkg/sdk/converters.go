package hybridex

import (
	"fmt"

	"github.com/kailas-cloud/hybridex/internal/domain"
	dombatch "github.com/kailas-cloud/hybridex/internal/domain/batch"
	domdoc "github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/metric"
	"github.com/kailas-cloud/hybridex/internal/domain/schema"
	"github.com/kailas-cloud/hybridex/internal/domain/schema/field"
	"github.com/kailas-cloud/hybridex/internal/domain/search/match"
	"github.com/kailas-cloud/hybridex/internal/domain/search/query"
	"github.com/kailas-cloud/hybridex/internal/domain/search/request"
	"github.com/kailas-cloud/hybridex/internal/domain/search/term"
	"github.com/kailas-cloud/hybridex/internal/domain/value"
)

func (s Schema) build() (schema.Schema, error) {
	m, err := metric.Parse(string(s.Metric))
	if err != nil {
		return schema.Schema{}, err
	}
	encoders := make([]schema.Encoder, 0, len(s.Encoders))
	for _, e := range s.Encoders {
		fields := make([]schema.IndexedField, len(e.Fields))
		for i, f := range e.Fields {
			fields[i] = schema.IndexedField{Name: f.Name, Modality: f.Modality}
		}
		enc, err := schema.NewEncoder(e.Name, e.Dimensions, fields)
		if err != nil {
			return schema.Schema{}, err
		}
		encoders = append(encoders, enc)
	}
	filters := make([]field.Field, 0, len(s.Filters))
	for _, fl := range s.Filters {
		ft := field.Type(fl.Type)
		if ft == "" {
			ft = field.Tag
		}
		f, err := field.New(fl.Name, ft)
		if err != nil {
			return schema.Schema{}, err
		}
		filters = append(filters, f)
	}
	return schema.New(m, encoders, filters)
}

func toDomainDocuments(docs []Document) ([]domdoc.Document, error) {
	out := make([]domdoc.Document, len(docs))
	for i, d := range docs {
		dd, err := toDomainDocument(d)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		out[i] = dd
	}
	return out, nil
}

func toDomainDocument(d Document) (domdoc.Document, error) {
	fields := make([]domdoc.Field, 0, len(d.Fields))
	for _, f := range d.Fields {
		df, err := domdoc.NewField(f.Name, f.Text, f.URI, f.Blob, f.Embeddings)
		if err != nil {
			return domdoc.Document{}, fmt.Errorf("%w: %w", domain.ErrInvalidDocument, err)
		}
		fields = append(fields, df)
	}
	var tags map[string]value.Value
	if len(d.Tags) > 0 {
		tags = make(map[string]value.Value, len(d.Tags))
		for k, raw := range d.Tags {
			v, err := value.FromAny(raw)
			if err != nil {
				return domdoc.Document{}, fmt.Errorf("%w: tag %q: %w", domain.ErrInvalidDocument, k, err)
			}
			tags[k] = v
		}
	}
	doc, err := domdoc.New(d.ID, d.ParentID, fields, tags)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("%w: %w", domain.ErrInvalidDocument, err)
	}
	return doc, nil
}

// fromDomainDocument drops embeddings, blobs and bookkeeping tags.
func fromDomainDocument(d domdoc.Document) Document {
	out := Document{ID: d.ID(), ParentID: d.ParentID()}
	for _, f := range d.Fields() {
		out.Fields = append(out.Fields, Field{Name: f.Name(), Text: f.Text(), URI: f.URI()})
	}
	if tags := d.PublicTags(); len(tags) > 0 {
		out.Tags = make(map[string]any, len(tags))
		for k, v := range tags {
			out.Tags[k] = v.Any()
		}
	}
	return out
}

func fromBatchResults(results []dombatch.Result) []BatchItem {
	items := make([]BatchItem, len(results))
	for i, r := range results {
		items[i] = BatchItem{
			Position: r.Position(),
			ID:       r.ID(),
			Indexed:  r.Status() == dombatch.StatusOK,
			Err:      r.Err(),
		}
	}
	return items
}

func filterValue(filter map[string]any) (value.Value, error) {
	if len(filter) == 0 {
		return value.Value{}, nil
	}
	v, err := value.FromAny(filter)
	if err != nil {
		return value.Value{}, fmt.Errorf("%w: filter: %w", domain.ErrInvalidQuery, err)
	}
	return v, nil
}

func toRequest(req SearchRequest) (request.Request, error) {
	fields := make([]query.Field, 0, len(req.Query.Fields))
	for _, qf := range req.Query.Fields {
		f, err := query.NewField(qf.Name, qf.Modality, qf.Text, qf.Embeddings)
		if err != nil {
			return request.Request{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
		}
		fields = append(fields, f)
	}
	q, err := query.New(fields, req.Query.Flat, req.Query.Modality)
	if err != nil {
		return request.Request{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
	}

	terms := make([]term.ScoreTerm, 0, len(req.Terms))
	for _, st := range req.Terms {
		weight := st.Weight
		if weight == 0 {
			weight = term.DefaultWeight
		}
		t, err := term.New(st.QueryField, st.DocumentField, st.Encoder, weight)
		if err != nil {
			return request.Request{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
		}
		terms = append(terms, t)
	}

	f, err := filterValue(req.Filter)
	if err != nil {
		return request.Request{}, err
	}
	return request.New(q, req.Limit, f, request.Options{
		ApplyLexical: req.Lexical,
		LexicalQuery: req.LexicalQuery,
		Breakdown:    req.Breakdown,
		Terms:        terms,
	})
}

func fromMatch(m match.Match) Hit {
	h := Hit{
		ID:       m.ID,
		ChunkID:  m.ChunkID,
		Score:    m.Score.Value,
		Pinned:   m.Pinned,
		Chunks:   m.Chunks,
		Document: fromDomainDocument(m.Document),
	}
	if len(m.Breakdown) > 0 {
		h.Breakdown = make(map[string]float64, len(m.Breakdown))
		for k, v := range m.Breakdown {
			h.Breakdown[k] = v
		}
	}
	return h
}
