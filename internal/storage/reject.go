package storage

// RejectColumns is the column order of every reject sink.
var RejectColumns = []string{"run_id", "job", "line", "field", "code", "value", "message"}

// Reject is one failure of one input row: a field validation error or, with
// an empty Field, a row the CSV reader could not parse.
type Reject struct {
	RunID   string
	Job     string
	Line    int
	Field   string
	Code    string
	Value   *string // nil when the value was absent
	Message string
}

// Values returns r aligned to RejectColumns.
func (r Reject) Values() []any {
	var v any
	if r.Value != nil {
		v = *r.Value
	}
	return []any{r.RunID, r.Job, int64(r.Line), r.Field, r.Code, v, r.Message}
}
