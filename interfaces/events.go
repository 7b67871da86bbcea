package interfaces

import "context"

type EventPublisher interface {
	PublishEvent(ctx context.Context, routingKey string, message interface{}) error
	Close() error
}
