package grading

import "errors"

// ErrDelegatePersistFailure marks a page whose annotated (or original)
// bytes could not be written through the delegate. It is never fatal:
// the result is still returned with the corresponding URL slot empty
// and a warning recorded.
var ErrDelegatePersistFailure = errors.New("grading: delegate persist failure")
