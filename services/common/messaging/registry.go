package messaging

import "context"

// Message is a single consumed bus message.
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

// EventHandler is the marker interface implemented by every saga consumer,
// so all consumers are discoverable and registered uniformly. Handlers must
// be idempotent: the bus delivers at least once and guarantees no ordering
// across topics. A handler that sees an event for an aggregate whose local
// projection has not committed yet must return a retryable error, not a
// terminal one.
type EventHandler interface {
	Topic() string
	GroupID() string
	Handle(ctx context.Context, msg Message) error
}

// Registry collects the handlers of a service before the consumer starts.
type Registry struct {
	handlers []EventHandler
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(h EventHandler) {
	r.handlers = append(r.handlers, h)
}

func (r *Registry) Handlers() []EventHandler {
	return r.handlers
}
