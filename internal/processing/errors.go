package processing

import (
	"context"
	"errors"

	"github.com/aieou/sceneqc/internal/ai"
	"github.com/aieou/sceneqc/internal/database"
	"github.com/aieou/sceneqc/internal/resolver"
)

var (
	ErrInvalidSequenceID = errors.New("invalid sequence id")
	ErrSequenceNotFound  = errors.New("sequence not found")
	ErrEmptySequence     = errors.New("sequence has no frames")
	ErrRunInProgress     = errors.New("analysis already running for sequence")
	ErrNoImage           = errors.New("frame has no usable image")
)

// FailureKind groups per-frame errors so callers can tell an outage from bad
// data without parsing messages.
type FailureKind string

const (
	KindUpstreamUnavailable FailureKind = "upstream_unavailable"
	KindInvalidCredentials  FailureKind = "invalid_credentials"
	KindMalformedResponse   FailureKind = "malformed_response"
	KindNoImage             FailureKind = "no_image"
	KindPersistence         FailureKind = "persistence"
	KindTimeout             FailureKind = "timeout"
	KindResolve             FailureKind = "resolve"
	KindOther               FailureKind = "other"
)

func classifyFailure(err error) FailureKind {
	switch {
	case errors.Is(err, ErrNoImage):
		return KindNoImage
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ai.ErrInvalidCredentials):
		return KindInvalidCredentials
	case errors.Is(err, ai.ErrMalformedResponse):
		return KindMalformedResponse
	case errors.Is(err, ai.ErrUpstreamUnavailable):
		return KindUpstreamUnavailable
	case errors.Is(err, resolver.ErrMissingDimension):
		return KindResolve
	case errors.Is(err, database.ErrNotFound), errors.Is(err, database.ErrInvalidAttributes):
		return KindPersistence
	default:
		return KindOther
	}
}
