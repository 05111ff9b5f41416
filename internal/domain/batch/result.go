package batch

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusOK      ItemStatus = "ok"
	StatusDropped ItemStatus = "dropped"
)

// Result is the outcome of one document in an index batch.
// A dropped document is left out of the write; the rest of the batch proceeds.
type Result struct {
	position int
	id       string
	status   ItemStatus
	err      error
}

// NewOK creates a successful batch result.
func NewOK(position int, id string) Result {
	return Result{position: position, id: id, status: StatusOK}
}

// NewDropped creates a result for a document left out of the batch.
func NewDropped(position int, id string, err error) Result {
	return Result{position: position, id: id, status: StatusDropped, err: err}
}

// Position returns the item's index in the submitted batch.
func (r Result) Position() int { return r.position }

// ID returns the document id, possibly system-assigned.
func (r Result) ID() string { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the drop reason, if any.
func (r Result) Err() error { return r.err }

// Dropped filters the results that were left out.
func Dropped(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.status == StatusDropped {
			out = append(out, r)
		}
	}
	return out
}
