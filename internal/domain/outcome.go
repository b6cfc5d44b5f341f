package domain

// Class is the terminal classification of one agent run.
type Class string

const (
	ClassSuccess Class = "SUCCESS"
	ClassSkip    Class = "SKIP"
	ClassFailure Class = "FAILURE"
)

// Outcome is the terminal result of one run. It is produced exactly once
// per run and never mutated afterwards. Success and GracefulSkip share
// exit code 0; callers distinguish them only via the logged reason.
type Outcome struct {
	Class  Class
	Reason string
}

// NewSuccess builds a Success outcome.
func NewSuccess(reason string) Outcome {
	return Outcome{Class: ClassSuccess, Reason: reason}
}

// NewSkip builds a GracefulSkip outcome: a designed no-op, not an error.
func NewSkip(reason string) Outcome {
	return Outcome{Class: ClassSkip, Reason: reason}
}

// NewFailure builds a Failure outcome.
func NewFailure(reason string) Outcome {
	return Outcome{Class: ClassFailure, Reason: reason}
}

// ExitCode maps the outcome to the process exit contract:
// 0 for Success or GracefulSkip, 1 for Failure.
func (o Outcome) ExitCode() int {
	if o.Class == ClassFailure {
		return 1
	}
	return 0
}
