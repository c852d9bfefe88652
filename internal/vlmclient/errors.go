package vlmclient

import "errors"

var (
	// ErrParseFailure is returned when two attempts (normal budget,
	// then doubled budget) both fail to yield parseable JSON.
	ErrParseFailure = errors.New("vlmclient: parse failure")
	// ErrTimeout is returned when the VLM call exceeds its deadline;
	// unlike OCRTimeout this is not recoverable.
	ErrTimeout = errors.New("vlmclient: timeout")
	// ErrFailure covers transport and HTTP 4xx/5xx errors surfaced
	// after the token-budget retry is exhausted.
	ErrFailure = errors.New("vlmclient: failure")
)
