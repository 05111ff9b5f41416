package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/schema"
	"github.com/kailas-cloud/hybridex/internal/domain/search/query"
)

// textModality is the modality a text provider can encode. Fields without one count as text.
const textModality = "text"

// QueryEncoder fills in vectors for query text fields that arrive without one, using the
// provider configured for each encoder.
type QueryEncoder struct {
	schema    schema.Schema
	embedders map[string]domain.Embedder
	logger    *zap.Logger
}

// NewQueryEncoder creates an encoder. embedders is keyed by encoder name; encoders without
// a provider are left to the caller.
func NewQueryEncoder(s schema.Schema, embedders map[string]domain.Embedder, logger *zap.Logger) *QueryEncoder {
	return &QueryEncoder{schema: s, embedders: embedders, logger: logger}
}

// Encode returns q with every missing, encodable text vector filled in.
func (e *QueryEncoder) Encode(ctx context.Context, q query.Query) (query.Query, error) {
	out := q
	for _, qf := range q.Fields() {
		if qf.Text() == "" {
			continue
		}
		modality := q.FieldModality(qf)
		if modality != "" && modality != textModality {
			continue
		}
		for _, enc := range e.schema.Encoders() {
			embedder, ok := e.embedders[enc.Name()]
			if !ok {
				continue
			}
			if _, has := qf.Embedding(enc.Name()); has {
				continue
			}
			if !indexesText(enc, q.Flat(), qf.Name(), modality) {
				continue
			}

			res, err := embedder.Embed(ctx, qf.Text())
			if err != nil {
				return query.Query{}, fmt.Errorf("encode field %q with %s: %w", qf.Name(), enc.Name(), err)
			}
			out = out.WithEmbedding(qf.Name(), enc.Name(), res.Embedding)
			e.logger.Debug("query field encoded",
				zap.String("field", qf.Name()),
				zap.String("encoder", enc.Name()),
			)
		}
	}
	return out, nil
}

// indexesText reports whether enc indexes a text field the query field would be compared with.
func indexesText(enc schema.Encoder, flat bool, name, modality string) bool {
	for _, f := range enc.Fields() {
		if f.Modality != "" && f.Modality != textModality {
			continue
		}
		if f.Name == name || (flat && modality != "" && f.Modality == modality) {
			return true
		}
	}
	return false
}
