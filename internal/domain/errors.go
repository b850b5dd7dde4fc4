package domain

import "errors"

// ErrInvalid marks input validation failures so callers can map them
// to a 400 without inspecting message text.
var ErrInvalid = errors.New("invalid input")
