package mail

import (
	"context"
	"io"
)

// Message is a provider agnostic email.
type Message struct {
	// From overrides the configured default sender when set.
	From     string
	To       []string
	Cc       []string
	Bcc      []string
	Subject  string
	TextBody string
	// HTMLBody is sent as an alternative part when set.
	HTMLBody string
}

// Mail sends messages.
type Mail interface {
	io.Closer
	Send(ctx context.Context, msg Message) error
}
