package review

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies why a review failed.
type Kind string

const (
	KindInvalidUpload       Kind = "InvalidUpload"
	KindDecode              Kind = "DecodeError"
	KindUploadTooLarge      Kind = "UploadTooLarge"
	KindUpstreamAuth        Kind = "UpstreamAuthError"
	KindUpstreamRateLimited Kind = "UpstreamRateLimited"
	KindUpstreamTimeout     Kind = "UpstreamTimeout"
	KindUpstreamUnavailable Kind = "UpstreamUnavailable"
	KindMalformedOutput     Kind = "MalformedModelOutput"
	KindCanceled            Kind = "Canceled"
	KindInternal            Kind = "Internal"
)

// Stage is the pipeline step a review failed at. Building the prompt and
// responding cannot fail, so they have no Stage.
type Stage string

const (
	StageReceived      Stage = "received"
	StageDecoded       Stage = "decoded"
	StageAwaitingModel Stage = "awaiting_model"
	StageParsed        Stage = "parsed"
	StageValidated     Stage = "validated"
)

// Error is a terminal review failure. Message is safe to show to clients;
// Err carries the internal cause and is only meant for logs.
type Error struct {
	Kind       Kind
	Stage      Stage
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the failure kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindInternal
}

func newError(kind Kind, stage Stage, err error, format string, a ...any) *Error {
	return &Error{
		Kind:    kind,
		Stage:   stage,
		Message: fmt.Sprintf(format, a...),
		Err:     err,
	}
}
