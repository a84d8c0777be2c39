package app

import "time"

// opIDLayout keeps operation ids sortable and readable in the log.
const opIDLayout = "20060102T150405Z"

// Operation tracks one CLI command for logging. Its ID tags every log line
// written while the command runs.
type Operation struct {
	ID        string
	Name      string
	StartedAt time.Time
	Status    string // "success" or "error"
	Err       error
}

// NewOperation creates an operation named after the CLI command being run.
func NewOperation(name string, now time.Time) *Operation {
	return &Operation{
		ID:        now.UTC().Format(opIDLayout),
		Name:      name,
		StartedAt: now,
		Status:    "success",
	}
}

// Fail marks the operation as failed with err. A nil err is ignored.
func (op *Operation) Fail(err error) {
	if err == nil {
		return
	}
	op.Status = "error"
	op.Err = err
}

// Failed reports whether Fail was called with an error.
func (op *Operation) Failed() bool {
	return op.Err != nil
}
