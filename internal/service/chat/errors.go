package chat

import (
	"errors"

	"github.com/zhouzirui/kids-tutor/backend/internal/service/ai"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrPersonaNotFound     = errors.New("persona not found")
	ErrInputRejected       = errors.New("input rejected")
	ErrTurnInProgress      = errors.New("a turn is already in progress for this session")
	ErrReviewerUnavailable = errors.New("reviewer stage is not configured")
)

// ErrorKind names a failure class in a form the interaction surfaces can
// show or map onto status codes.
type ErrorKind string

const (
	KindInputRejected  ErrorKind = "input_rejected"
	KindNotFound       ErrorKind = "not_found"
	KindBusy           ErrorKind = "turn_in_progress"
	KindAuthentication ErrorKind = "authentication"
	KindRateLimit      ErrorKind = "rate_limit_or_quota"
	KindTransport      ErrorKind = "transport"
	KindInternal       ErrorKind = "internal"
)

// Classify maps an error returned by this package onto its ErrorKind.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInputRejected):
		return KindInputRejected
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrPersonaNotFound):
		return KindNotFound
	case errors.Is(err, ErrTurnInProgress):
		return KindBusy
	case errors.Is(err, ai.ErrAuthentication):
		return KindAuthentication
	case errors.Is(err, ai.ErrRateLimitOrQuota):
		return KindRateLimit
	case errors.Is(err, ai.ErrTransport):
		return KindTransport
	default:
		return KindInternal
	}
}
