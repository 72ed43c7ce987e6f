// Package statesave implements the old Tox state-format (TSF) codec: a
// tagged, length-prefixed section stream used to persist nospam/keys, DHT
// nodes, friends, and related daemon state to disk.
package statesave

import (
	"errors"
	"fmt"
)

// ErrBadMagic is returned when a file or section magic value does not
// match what the format requires.
var ErrBadMagic = errors.New("statesave: bad magic")

// ErrBadTag is returned when a section's 2-byte tag does not match any
// known variant.
var ErrBadTag = errors.New("statesave: unknown section tag")

// ErrIncomplete is returned when a section's declared length exceeds the
// remaining input.
var ErrIncomplete = errors.New("statesave: incomplete section data")

// DecodeError wraps a lower-level parse failure with the section tag that
// was being decoded, for logging.
type DecodeError struct {
	Tag uint16
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("statesave: decode section 0x%04x: %v", e.Tag, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
