package model

import "errors"

// Failure taxonomy. None of these is ever reported back to a peer: callers
// log and drop.
var (
	ErrDecode                = errors.New("decode error")
	ErrRoutingMismatch       = errors.New("routing mismatch")
	ErrDebounced             = errors.New("debounce rejected")
	ErrCooldown              = errors.New("cooldown rejected")
	ErrTransportDisconnected = errors.New("transport disconnected")
)
