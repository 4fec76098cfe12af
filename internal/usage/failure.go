package usage

import "errors"

// FailureKind classifies how a fetch cycle failed. Every kind is terminal for
// its cycle; nothing is retried automatically.
type FailureKind string

const (
	KindInterpreterNotFound FailureKind = "interpreter_not_found"
	KindScriptNotFound      FailureKind = "script_not_found"
	KindLaunchFailure       FailureKind = "launch_failure"
	KindTimeout             FailureKind = "timeout"
	KindEmptyOutput         FailureKind = "empty_output"
	KindParseFailure        FailureKind = "parse_failure"
	KindScriptError         FailureKind = "script_error"
)

// Failure is a classified pipeline error. Message is already human-readable
// and is what presentation layers display verbatim.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error // underlying cause, set for launch failures
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func newFailure(kind FailureKind, msg string) *Failure {
	return &Failure{Kind: kind, Message: msg}
}

// KindOf returns the FailureKind of err, or "" if err is not a pipeline
// Failure.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}
