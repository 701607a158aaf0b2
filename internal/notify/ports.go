package notify

import "context"

// Sink delivers one event to the external collaborator.
type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

// Producer writes a keyed message to the event stream.
type Producer interface {
	Publish(ctx context.Context, key string, value []byte) error
}
