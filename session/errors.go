package session

import "errors"

// ErrAlreadyAwaiting is returned when a command is issued while another
// exchange is still waiting for its response. The protocol carries no
// request identifiers, so overlapping commands cannot be told apart.
var ErrAlreadyAwaiting = errors.New("another request is awaiting its response")

// ErrResponseTimeout is returned when the expected response packets did
// not all arrive within the exchange deadline. Partial responses are
// discarded, never returned.
var ErrResponseTimeout = errors.New("device response timed out")

// ErrCancelled is returned by an exchange aborted through Reset or
// Cancel, typically on transport reconnect.
var ErrCancelled = errors.New("request cancelled")

// ErrStaleSensorData is returned when the device keeps reporting a
// previously selected sensor after the retry budget for a fresh read is
// exhausted.
var ErrStaleSensorData = errors.New("device still reporting previously selected sensor")

// ErrCommandUnconfirmed is returned when the device acknowledged a
// command but its confirmation state does not reflect the requested
// change.
var ErrCommandUnconfirmed = errors.New("device state does not confirm the command")
