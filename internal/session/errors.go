package session

import "errors"

// Sentinel errors surfaced to callers; match with errors.Is. Underlying
// transport errors stay in the chain via wrapping.
var (
	// ErrConnectFailed is returned after every connect attempt of a cycle
	// has been exhausted.
	ErrConnectFailed = errors.New("connect failed")

	// ErrUpdateFailed marks a reconciliation cycle that could not reach the
	// device. A cycle that merely received no answer is not an error.
	ErrUpdateFailed = errors.New("update failed")

	// ErrCommandRejected marks a device-level negative acknowledgment of an
	// acknowledged write. Logged, not retried.
	ErrCommandRejected = errors.New("command rejected")

	// ErrUnknownSource is returned by SelectSource for a name absent from
	// the active profile's table. No write is performed.
	ErrUnknownSource = errors.New("unknown source")
)
