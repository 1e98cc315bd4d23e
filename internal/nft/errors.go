package nft

import (
	"errors"
	"fmt"
)

var (
	// ErrAllSourcesFailed is returned by the aggregator only when every source failed.
	ErrAllSourcesFailed = errors.New("all NFT sources failed")
	ErrInvalidAction    = errors.New("invalid action")
)

// RequestError reports missing or malformed proxy parameters. Its message is
// shown to the caller as is.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string { return e.Message }

func badRequest(msg string) error { return &RequestError{Message: msg} }

// StatusError is a non-200 upstream response.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %d", e.Op, e.Status)
}
