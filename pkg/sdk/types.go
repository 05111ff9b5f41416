package hybridex

// Metric compares vectors.
type Metric string

// Metric constants. Cosine and Dot rank higher scores first, L2 lower distances first.
const (
	Cosine Metric = "cosine"
	Dot    Metric = "dot"
	L2     Metric = "l2"
)

// FieldType is the indexing type of a filterable tag.
type FieldType string

// Field type constants.
const (
	FieldTag     FieldType = "tag"
	FieldNumeric FieldType = "numeric"
)

// Schema describes what the index holds.
type Schema struct {
	Metric   Metric
	Encoders []Encoder
	Filters  []Filterable
}

// Encoder is one vector space and the document fields embedded into it.
type Encoder struct {
	Name       string
	Dimensions int
	Fields     []IndexedField
}

// IndexedField is a document field an encoder embeds.
type IndexedField struct {
	Name     string
	Modality string
}

// Filterable declares a tag the backing store indexes for filtering.
type Filterable struct {
	Name string
	Type FieldType
}

// Field is one named part of a document. Embeddings are keyed by encoder name.
type Field struct {
	Name       string
	Text       string
	URI        string
	Blob       []byte
	Embeddings map[string][]float32
}

// Document is a unit of indexing. Tags hold strings, numbers, bools and lists of them.
type Document struct {
	ID       string
	ParentID string
	Fields   []Field
	Tags     map[string]any
}

// BatchItem reports the outcome of one submitted document.
type BatchItem struct {
	Position int
	ID       string
	Indexed  bool
	Err      error
}

// QueryField is one field of the query document.
type QueryField struct {
	Name       string
	Modality   string
	Text       string
	Embeddings map[string][]float32
}

// Query is the query document. A flat query compares fields by modality instead of name.
type Query struct {
	Flat     bool
	Modality string
	Fields   []QueryField
}

// ScoreTerm compares one query field with one document field in one encoder's space.
// A zero Weight counts as 1.
type ScoreTerm struct {
	QueryField    string
	DocumentField string
	Encoder       string
	Weight        float64
}

// SearchRequest is a search call. A zero Limit returns 10 hits.
type SearchRequest struct {
	Query        Query
	Limit        int
	Filter       map[string]any
	Lexical      bool
	LexicalQuery string
	Breakdown    bool
	Terms        []ScoreTerm
}

// Hit is one search result, aggregated to its parent document.
type Hit struct {
	ID        string
	ChunkID   string
	Score     float64
	Pinned    bool
	Chunks    int
	Breakdown map[string]float64
	Document  Document
}

// TagCount is one tag value and how many documents carry it.
type TagCount struct {
	Value string
	Count int
}
