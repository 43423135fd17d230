package core

import "time"

// OutcomeStatus is the result category of one import row.
type OutcomeStatus string

const (
	StatusInserted OutcomeStatus = "inserted"
	StatusSkipped  OutcomeStatus = "skipped"
	StatusErrored  OutcomeStatus = "errored"
)

// Reasons recorded for rows that were not inserted.
const (
	ReasonDuplicate = "duplicate — already exists"
)

// ImportOutcome is the immutable result of processing one row.
type ImportOutcome struct {
	Row        int           // OriginalRow of the input
	Status     OutcomeStatus //
	NaturalKey string        // Natural key value, if the row had one
	Code       string        // Code stored with the record (inserted rows only)
	Reason     string        // Why the row was skipped or errored
	Record     *Record       // Persisted record (inserted rows only)
}

// ImportReport summarizes one import run.
type ImportReport struct {
	RunID      string
	Kind       string
	TotalRows  int
	Inserted   int
	Skipped    int
	Errored    int
	Outcomes   []ImportOutcome
	Truncated  bool   // True when the run stopped before the end of the input
	StopReason string // Why the run stopped early
	Duration   time.Duration
}

func (r *ImportReport) add(o ImportOutcome) {
	r.TotalRows++
	switch o.Status {
	case StatusInserted:
		r.Inserted++
	case StatusSkipped:
		r.Skipped++
	case StatusErrored:
		r.Errored++
	}
	r.Outcomes = append(r.Outcomes, o)
}

// Success reports whether the run should be presented as successful:
// at least one row inserted, or nothing went wrong at all (an empty batch
// is a success).
func (r *ImportReport) Success() bool {
	if r.Inserted > 0 {
		return true
	}
	return r.Skipped == 0 && r.Errored == 0
}

// ImportResponse is the wire form of an ImportReport.
type ImportResponse struct {
	Success    bool          `json:"success"`
	RunID      string        `json:"runId"`
	Kind       string        `json:"kind"`
	Inserted   int           `json:"inserted"`
	Skipped    int           `json:"skipped"`
	Errors     int           `json:"errors"`
	TotalRows  int           `json:"totalRows"`
	Truncated  bool          `json:"truncated"`
	StopReason string        `json:"stopReason,omitempty"`
	DurationMs int64         `json:"durationMs"`
	Details    ImportDetails `json:"details"`
}

// ImportDetails lists per-row results by category.
type ImportDetails struct {
	InsertedRecords []string        `json:"insertedRecords"`
	SkippedRecords  []SkippedRecord `json:"skippedRecords"`
	ErrorRecords    []ErrorRecord   `json:"errorRecords"`
}

// SkippedRecord describes a row skipped as a duplicate.
type SkippedRecord struct {
	Row        int    `json:"row"`
	NaturalKey string `json:"naturalKey"`
	Reason     string `json:"reason"`
}

// ErrorRecord describes a row that failed validation or insertion.
type ErrorRecord struct {
	Row        int    `json:"row"`
	NaturalKey string `json:"naturalKey,omitempty"`
	Message    string `json:"message"`
}

// Response converts the report to its wire form. Inserted rows are listed by
// natural key, falling back to the generated code for kinds without one.
func (r *ImportReport) Response() ImportResponse {
	resp := ImportResponse{
		Success:    r.Success(),
		RunID:      r.RunID,
		Kind:       r.Kind,
		Inserted:   r.Inserted,
		Skipped:    r.Skipped,
		Errors:     r.Errored,
		TotalRows:  r.TotalRows,
		Truncated:  r.Truncated,
		StopReason: r.StopReason,
		DurationMs: r.Duration.Milliseconds(),
		Details: ImportDetails{
			InsertedRecords: make([]string, 0, r.Inserted),
			SkippedRecords:  make([]SkippedRecord, 0, r.Skipped),
			ErrorRecords:    make([]ErrorRecord, 0, r.Errored),
		},
	}

	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusInserted:
			key := o.NaturalKey
			if key == "" {
				key = o.Code
			}
			resp.Details.InsertedRecords = append(resp.Details.InsertedRecords, key)
		case StatusSkipped:
			resp.Details.SkippedRecords = append(resp.Details.SkippedRecords, SkippedRecord{
				Row: o.Row, NaturalKey: o.NaturalKey, Reason: o.Reason,
			})
		case StatusErrored:
			resp.Details.ErrorRecords = append(resp.Details.ErrorRecords, ErrorRecord{
				Row: o.Row, NaturalKey: o.NaturalKey, Message: o.Reason,
			})
		}
	}

	return resp
}
