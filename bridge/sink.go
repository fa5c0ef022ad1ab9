package bridge

import "sync"

// ResultSink receives the single outcome of a call.
// Implementations must accept exactly one write and reject the rest with ErrAlreadyReplied.
type ResultSink interface {
	Success(result any) error
	Error(code, message string, details any) error
	NotImplemented() error
}

// Status is the kind of outcome a sink received.
type Status int

const (
	StatusNone Status = iota
	StatusSuccess
	StatusError
	StatusNotImplemented
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusNotImplemented:
		return "not_implemented"
	}
	return "none"
}

// Outcome is what a Recorder captured.
type Outcome struct {
	Status  Status
	Result  any
	Code    string
	Message string
	Details any
}

// Recorder is a write-once ResultSink that keeps the outcome for later inspection.
// It is safe for concurrent use; the first write wins.
type Recorder struct {
	mu      sync.Mutex
	outcome Outcome
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Success(result any) error {
	return r.set(Outcome{Status: StatusSuccess, Result: result})
}

func (r *Recorder) Error(code, message string, details any) error {
	return r.set(Outcome{Status: StatusError, Code: code, Message: message, Details: details})
}

func (r *Recorder) NotImplemented() error {
	return r.set(Outcome{Status: StatusNotImplemented})
}

// Outcome returns the recorded outcome and whether anything was written.
func (r *Recorder) Outcome() (Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome, r.outcome.Status != StatusNone
}

func (r *Recorder) set(o Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcome.Status != StatusNone {
		return ErrAlreadyReplied
	}
	r.outcome = o
	return nil
}
