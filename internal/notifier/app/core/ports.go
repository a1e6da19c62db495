package core

import "context"

type Email struct {
	To      string
	Subject string
	HTML    string
}

type IMailer interface {
	Send(ctx context.Context, email Email) error
}

type NotifierParams struct {
	// Prefetch bounds the unacknowledged deliveries per consumer.
	Prefetch int
}

const WaitTime = 20
