package core

import "errors"

var (
	ErrHelp = errors.New("")

	// ErrMalformed marks a message that can never be delivered. It is dropped.
	ErrMalformed = errors.New("malformed message")

	ErrDeliveriesClosed = errors.New("broker closed the delivery channel")
)
