package chi

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/hybridex/internal/domain"
	dombatch "github.com/kailas-cloud/hybridex/internal/domain/batch"
	"github.com/kailas-cloud/hybridex/internal/domain/curation"
	"github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/search/match"
	"github.com/kailas-cloud/hybridex/internal/domain/search/query"
	"github.com/kailas-cloud/hybridex/internal/domain/search/request"
	"github.com/kailas-cloud/hybridex/internal/domain/search/term"
	"github.com/kailas-cloud/hybridex/internal/domain/value"
)

// FieldRequest is one document field. Blob is base64 in JSON.
type FieldRequest struct {
	Name       string               `json:"name"`
	Text       string               `json:"text,omitempty"`
	URI        string               `json:"uri,omitempty"`
	Blob       []byte               `json:"blob,omitempty"`
	Embeddings map[string][]float32 `json:"embeddings,omitempty"`
}

// DocumentRequest is a document as submitted for indexing.
type DocumentRequest struct {
	ID       string                 `json:"id,omitempty"`
	ParentID string                 `json:"parent_id,omitempty"`
	Fields   []FieldRequest         `json:"fields"`
	Tags     map[string]value.Value `json:"tags,omitempty"`
}

// IndexRequest is the body of POST and PUT /documents.
type IndexRequest struct {
	Documents []DocumentRequest `json:"documents"`
}

// BatchItem reports the outcome of one submitted document.
type BatchItem struct {
	Position int    `json:"position"`
	ID       string `json:"id"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
}

// IndexResponse summarizes an index or update call.
type IndexResponse struct {
	Items   []BatchItem `json:"items"`
	Indexed int         `json:"indexed"`
	Dropped int         `json:"dropped"`
}

// DeleteRequest is the body of DELETE /documents.
type DeleteRequest struct {
	IDs    []string    `json:"ids,omitempty"`
	Filter value.Value `json:"filter"`
}

// DeleteResponse reports how many documents were removed.
type DeleteResponse struct {
	Deleted int `json:"deleted"`
}

// FieldResponse is a stored field as returned to callers.
type FieldResponse struct {
	Name string `json:"name"`
	Text string `json:"text,omitempty"`
	URI  string `json:"uri,omitempty"`
}

// DocumentResponse is a stored document without embeddings or bookkeeping tags.
type DocumentResponse struct {
	ID       string                 `json:"id"`
	ParentID string                 `json:"parent_id,omitempty"`
	Fields   []FieldResponse        `json:"fields,omitempty"`
	Tags     map[string]value.Value `json:"tags,omitempty"`
}

// ListResponse is one page of documents.
type ListResponse struct {
	Items  []DocumentResponse `json:"items"`
	Offset int                `json:"offset"`
	Limit  int                `json:"limit"`
}

// CountResponse is the result of GET /documents/count.
type CountResponse struct {
	Count int `json:"count"`
}

// QueryFieldRequest is one field of the query document.
type QueryFieldRequest struct {
	Name       string               `json:"name"`
	Modality   string               `json:"modality,omitempty"`
	Text       string               `json:"text,omitempty"`
	Embeddings map[string][]float32 `json:"embeddings,omitempty"`
}

// QueryRequest is the query document.
type QueryRequest struct {
	Flat     bool                `json:"flat,omitempty"`
	Modality string              `json:"modality,omitempty"`
	Fields   []QueryFieldRequest `json:"fields"`
}

// ScoreTermRequest is a caller-supplied semantic score term.
type ScoreTermRequest struct {
	QueryField    string   `json:"query_field"`
	DocumentField string   `json:"document_field"`
	Encoder       string   `json:"encoder"`
	Weight        *float64 `json:"weight,omitempty"`
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query          QueryRequest       `json:"query"`
	Limit          int                `json:"limit,omitempty"`
	Filter         value.Value        `json:"filter"`
	ApplyLexical   bool               `json:"apply_lexical,omitempty"`
	LexicalQuery   string             `json:"lexical_query,omitempty"`
	Breakdown      bool               `json:"breakdown,omitempty"`
	SemanticScores []ScoreTermRequest `json:"semantic_scores,omitempty"`
}

// MatchResponse is one search result.
type MatchResponse struct {
	ID        string             `json:"id"`
	ChunkID   string             `json:"chunk_id"`
	Score     float64            `json:"score"`
	Pinned    bool               `json:"pinned,omitempty"`
	Chunks    int                `json:"chunks"`
	Breakdown map[string]float64 `json:"breakdown,omitempty"`
	Document  DocumentResponse   `json:"document"`
}

// SearchResponse is the result of POST /search.
type SearchResponse struct {
	Items []MatchResponse `json:"items"`
	Total int             `json:"total"`
}

// RuleResponse is one curation rule.
type RuleResponse struct {
	Query   string                   `json:"query"`
	Filters []map[string]value.Value `json:"filters"`
}

// RulesResponse lists curation rules.
type RulesResponse struct {
	Items []RuleResponse `json:"items"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func documentFromRequest(req DocumentRequest) (document.Document, error) {
	fields := make([]document.Field, 0, len(req.Fields))
	for _, fr := range req.Fields {
		f, err := document.NewField(fr.Name, fr.Text, fr.URI, fr.Blob, fr.Embeddings)
		if err != nil {
			return document.Document{}, fmt.Errorf("%w: %w", domain.ErrInvalidDocument, err)
		}
		fields = append(fields, f)
	}
	doc, err := document.New(req.ID, req.ParentID, fields, req.Tags)
	if err != nil {
		return document.Document{}, fmt.Errorf("%w: %w", domain.ErrInvalidDocument, err)
	}
	return doc, nil
}

func documentsFromRequest(req IndexRequest) ([]document.Document, error) {
	if len(req.Documents) == 0 {
		return nil, fmt.Errorf("%w: documents are required", domain.ErrInvalidDocument)
	}
	docs := make([]document.Document, len(req.Documents))
	for i, dr := range req.Documents {
		doc, err := documentFromRequest(dr)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		docs[i] = doc
	}
	return docs, nil
}

func documentToResponse(doc document.Document) DocumentResponse {
	resp := DocumentResponse{ID: doc.ID(), ParentID: doc.ParentID(), Tags: doc.PublicTags()}
	for _, f := range doc.Fields() {
		resp.Fields = append(resp.Fields, FieldResponse{Name: f.Name(), Text: f.Text(), URI: f.URI()})
	}
	return resp
}

func batchToResponse(results []dombatch.Result) IndexResponse {
	resp := IndexResponse{Items: make([]BatchItem, len(results))}
	for i, r := range results {
		item := BatchItem{Position: r.Position(), ID: r.ID(), Status: string(r.Status())}
		if r.Status() == dombatch.StatusOK {
			resp.Indexed++
		} else {
			resp.Dropped++
			item.Reason = dropReason(r.Err())
		}
		resp.Items[i] = item
	}
	return resp
}

// dropReason keeps internals out of per-item reasons.
func dropReason(err error) string {
	if err == nil {
		return ""
	}
	return safeDomainMessage(err)
}

func searchRequestFromDTO(req SearchRequest) (request.Request, error) {
	fields := make([]query.Field, 0, len(req.Query.Fields))
	for _, fr := range req.Query.Fields {
		f, err := query.NewField(fr.Name, fr.Modality, fr.Text, fr.Embeddings)
		if err != nil {
			return request.Request{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
		}
		fields = append(fields, f)
	}
	q, err := query.New(fields, req.Query.Flat, req.Query.Modality)
	if err != nil {
		return request.Request{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
	}

	terms := make([]term.ScoreTerm, 0, len(req.SemanticScores))
	for _, sr := range req.SemanticScores {
		weight := term.DefaultWeight
		if sr.Weight != nil {
			weight = *sr.Weight
		}
		t, err := term.New(sr.QueryField, sr.DocumentField, sr.Encoder, weight)
		if err != nil {
			return request.Request{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
		}
		terms = append(terms, t)
	}

	return request.New(q, req.Limit, req.Filter, request.Options{
		ApplyLexical: req.ApplyLexical,
		LexicalQuery: req.LexicalQuery,
		Breakdown:    req.Breakdown,
		Terms:        terms,
	})
}

func matchToResponse(m match.Match) MatchResponse {
	resp := MatchResponse{
		ID:       m.ID,
		ChunkID:  m.ChunkID,
		Score:    finiteOrZero(m.Score.Value),
		Pinned:   m.Pinned,
		Chunks:   m.Chunks,
		Document: documentToResponse(m.Document),
	}
	if len(m.Breakdown) > 0 {
		resp.Breakdown = make(map[string]float64, len(m.Breakdown))
		for k, v := range m.Breakdown {
			// JSON cannot carry NaN or Inf.
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			resp.Breakdown[k] = v
		}
	}
	return resp
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func rulesToResponse(rules []curation.Rule) RulesResponse {
	resp := RulesResponse{Items: make([]RuleResponse, len(rules))}
	for i, r := range rules {
		resp.Items[i] = RuleResponse{Query: r.Query(), Filters: r.Filters()}
	}
	return resp
}
