package notify

import "context"

// Message is a rendered notification. Body is plain text; HTMLBody is
// optional and derived from Body when empty.
type Message struct {
	Recipient     string
	RecipientName string
	Subject       string
	Body          string
	HTMLBody      string
}

// Notifier delivers a rendered message to one recipient. A non-nil
// error means the message must be treated as not delivered.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
