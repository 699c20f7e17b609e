package roon

import "errors"

// Sentinel errors returned by Bridge operations. Callers classify with
// errors.Is; no other error types leave this package.
var (
	// ErrNotFound means the requested path/zone does not exist in the library
	ErrNotFound = errors.New("not found in library")

	// ErrTimeout means a single remote call exceeded its bound
	ErrTimeout = errors.New("remote call timed out")

	// ErrConnectionLost means the control channel to the bridge is down
	ErrConnectionLost = errors.New("bridge connection lost")
)

// Wire error codes used by the bridge
const (
	codeNotFound = "not_found"
	codeTimeout  = "timeout"
)
