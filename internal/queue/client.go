package queue

import "context"

// Client sends run requests to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}
