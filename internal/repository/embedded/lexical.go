package embedded

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
)

const lexicalField = "text"

type lexicalDoc struct {
	Text string `json:"text"`
}

// lexicalIndex scores documents by BM25 over their lexical projection.
type lexicalIndex struct {
	index bleve.Index
}

func newLexicalIndex() (*lexicalIndex, error) {
	m := bleve.NewIndexMapping()
	m.DefaultAnalyzer = standard.Name
	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return nil, fmt.Errorf("create lexical index: %w", err)
	}
	return &lexicalIndex{index: idx}, nil
}

func (l *lexicalIndex) put(texts map[string]string) error {
	if len(texts) == 0 {
		return nil
	}
	b := l.index.NewBatch()
	for id, text := range texts {
		if text == "" {
			b.Delete(id)
			continue
		}
		if err := b.Index(id, lexicalDoc{Text: text}); err != nil {
			return fmt.Errorf("index text of %s: %w", id, err)
		}
	}
	if err := l.index.Batch(b); err != nil {
		return fmt.Errorf("lexical batch: %w", err)
	}
	return nil
}

func (l *lexicalIndex) remove(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	b := l.index.NewBatch()
	for _, id := range ids {
		b.Delete(id)
	}
	if err := l.index.Batch(b); err != nil {
		return fmt.Errorf("lexical delete: %w", err)
	}
	return nil
}

// search returns the raw score of every document matching text.
func (l *lexicalIndex) search(ctx context.Context, text string) (map[string]float64, error) {
	n, err := l.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("lexical doc count: %w", err)
	}
	if n == 0 {
		return map[string]float64{}, nil
	}

	q := bleve.NewMatchQuery(text)
	q.SetField(lexicalField)
	req := bleve.NewSearchRequest(q)
	req.Size = int(n)

	res, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	scores := make(map[string]float64, len(res.Hits))
	for _, h := range res.Hits {
		scores[h.ID] = h.Score
	}
	return scores, nil
}

func (l *lexicalIndex) close() error {
	return l.index.Close()
}
