package payments

import "errors"

var (
	// ErrUpstream is returned when the payment processor call fails; no
	// partial state is committed, so the caller may retry.
	ErrUpstream = errors.New("payment processor request failed")

	// ErrSignature is returned when webhook signature verification fails.
	// The event is discarded and never trusted.
	ErrSignature = errors.New("webhook signature verification failed")
)
