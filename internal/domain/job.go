package domain

import "time"

type JobKind string

const (
	JobWarnBeforeStart JobKind = "warn_before_start"
	JobEndCall         JobKind = "end_call"
)

// Job is an immutable descriptor. It is resolved against the registry when it
// fires and never carries call state.
type Job struct {
	CallID CallID
	RunAt  time.Time
	Kind   JobKind
}
