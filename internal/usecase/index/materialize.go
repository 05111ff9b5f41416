package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/value"
	"github.com/kailas-cloud/hybridex/internal/metrics"
)

// textModality marks fields whose payload is text and feeds the lexical projection.
const textModality = "text"

// prepare makes a document storable. Local payloads are loaded and inlined as data URIs,
// blobs are dropped once a durable URI exists, and text fields that only carry a URI get
// their text fetched. The bookkeeping tag __has_text is set last.
func (s *Service) prepare(ctx context.Context, doc document.Document) (document.Document, error) {
	if err := s.checkEmbeddings(doc); err != nil {
		return document.Document{}, err
	}
	fields := make([]document.Field, len(doc.Fields()))
	for i, f := range doc.Fields() {
		prepared, err := s.prepareField(ctx, f)
		if err != nil {
			return document.Document{}, fmt.Errorf("field %q: %w", f.Name(), err)
		}
		fields[i] = prepared
	}
	doc = doc.WithFields(fields)
	return doc.WithTag(document.TagHasText, value.Bool(strings.TrimSpace(doc.LexicalText()) != "")), nil
}

// checkEmbeddings rejects vectors whose length differs from the encoder's dimensions.
// Embeddings for encoders the schema does not declare are kept but never indexed.
func (s *Service) checkEmbeddings(doc document.Document) error {
	for _, f := range doc.Fields() {
		for name, vec := range f.Embeddings() {
			enc, ok := s.schema.Encoder(name)
			if !ok {
				continue
			}
			if len(vec) != enc.Dimensions() {
				return fmt.Errorf("%w: field %q: encoder %s expects %d dimensions, got %d",
					domain.ErrSchemaMismatch, f.Name(), name, enc.Dimensions(), len(vec))
			}
		}
	}
	return nil
}

func (s *Service) prepareField(ctx context.Context, f document.Field) (document.Field, error) {
	isText := s.schema.Modality(f.Name()) == textModality
	needsText := isText && strings.TrimSpace(f.Text()) == ""

	switch document.Classify(f.URI()) {
	case document.LocationNone:
		if len(f.Blob()) == 0 {
			return f, nil
		}
		if needsText {
			f = f.WithText(string(f.Blob()))
		}
		return f.WithURI(document.DataURI(detectContentType(f.Blob()), f.Blob())).WithoutBlob(), nil

	case document.LocationLocal:
		data := f.Blob()
		contentType := ""
		if len(data) == 0 {
			var err error
			if data, contentType, err = s.fetch(ctx, f.URI()); err != nil {
				return document.Field{}, err
			}
		}
		if contentType == "" {
			contentType = detectContentType(data)
		}
		if needsText {
			f = f.WithText(string(data))
		}
		return f.WithURI(document.DataURI(contentType, data)).WithoutBlob(), nil

	default:
		if needsText {
			data := f.Blob()
			if len(data) == 0 {
				var err error
				if data, _, err = s.fetch(ctx, f.URI()); err != nil {
					return document.Field{}, err
				}
			}
			f = f.WithText(string(data))
		}
		return f.WithoutBlob(), nil
	}
}

func (s *Service) fetch(ctx context.Context, uri string) ([]byte, string, error) {
	scheme := document.Scheme(uri)
	if s.materializer == nil {
		metrics.MaterializeTotal.WithLabelValues(scheme, "unsupported").Inc()
		return nil, "", fmt.Errorf("%w: no materializer for %s", domain.ErrMaterialize, scheme)
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, "", fmt.Errorf("%w: rate limiter: %w", domain.ErrMaterialize, err)
		}
	}
	if s.materializeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.materializeTimeout)
		defer cancel()
	}
	data, contentType, err := s.materializer.Fetch(ctx, uri)
	if err != nil {
		metrics.MaterializeTotal.WithLabelValues(scheme, "error").Inc()
		return nil, "", fmt.Errorf("%w: %s: %w", domain.ErrMaterialize, scheme, err)
	}
	metrics.MaterializeTotal.WithLabelValues(scheme, "ok").Inc()
	return data, contentType, nil
}
