package digest

import "context"

// Message is a fully rendered email ready for a provider.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a message through an email provider.
type Sender interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	Send(ctx context.Context, msg Message) error
}
