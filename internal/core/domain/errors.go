package domain

import "errors"

// ErrFatal marks an error after which an adapter's event loop must stop:
// the machine's bookkeeping can no longer be trusted.
var ErrFatal = errors.New("fatal link state error")

// ErrUnknownLink is returned when no adapter is configured under a name.
var ErrUnknownLink = errors.New("unknown link")

// ErrRoleMismatch is returned when an event is sent to an adapter running
// the other persona.
var ErrRoleMismatch = errors.New("event does not match adapter role")
