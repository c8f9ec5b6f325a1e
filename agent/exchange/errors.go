package exchange

import "errors"

var (
	// ErrTimeout tells that the exchange didn't reach its terminal state at
	// both ends in time.
	ErrTimeout = errors.New("exchange timeout")

	// ErrNotFound tells that the waited agent didn't have the exchange at
	// all, i.e. nothing was found by the query and no event was seen.
	ErrNotFound = errors.New("exchange not found")

	// ErrActionFailed tells that the responder's automatic action failed.
	ErrActionFailed = errors.New("responder action failed")

	// ErrValidation tells that the initiating command was rejected.
	ErrValidation = errors.New("validation failed")

	ErrAlreadyWaiting = errors.New("already waiting for the exchange")
)
