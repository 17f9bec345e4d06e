package conversation

import "errors"

// Pipeline errors. Consumers never see these; the coordinator logs them and
// re-checks for pending work.
var (
	// ErrMissingContext means the consumer went away mid-pipeline.
	ErrMissingContext = errors.New("conversation context missing")

	// ErrLoadComputationFailure means the loader could not materialize a
	// render state.
	ErrLoadComputationFailure = errors.New("load computation failed")

	// ErrProtocolViolation marks a broken landing or single-flight contract.
	ErrProtocolViolation = errors.New("load protocol violation")
)

var errNoPayload = errors.New("renderer returned no payload")
