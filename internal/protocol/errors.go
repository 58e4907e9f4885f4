package protocol

import "errors"

// ErrMalformed marks a frame that cannot be decoded. The connection that
// sent it must be dropped.
var ErrMalformed = errors.New("malformed frame")

// ErrStringTooLong is returned when encoding a string over MaxStringBytes.
var ErrStringTooLong = errors.New("string too long for frame encoding")

// Close reasons sent with a policy-violation close frame.
const (
	CloseMalformed   = "E_PROTO_MALFORMED"
	CloseExpectHello = "E_PROTO_EXPECTED_HELLO"
	CloseUnexpected  = "E_PROTO_UNEXPECTED_KIND"
	CloseSlowClient  = "E_SLOW_CLIENT"
)

// Audit outcomes for a smelt request. None of them reach the client.
const (
	OutcomeAccepted    = "accepted"
	OutcomeNotVisible  = "not_visible"
	OutcomeNoRecipe    = "no_recipe"
	OutcomeRateLimited = "rate_limited"
	OutcomeApplyFailed = "apply_failed"
)

var knownOutcomes = map[string]struct{}{
	OutcomeAccepted:    {},
	OutcomeNotVisible:  {},
	OutcomeNoRecipe:    {},
	OutcomeRateLimited: {},
	OutcomeApplyFailed: {},
}

func IsKnownOutcome(o string) bool {
	_, ok := knownOutcomes[o]
	return ok
}
