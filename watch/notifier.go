package watch

import "context"

// Notification is one event delivered to a subscriber.
type Notification struct {
	Method string
	Params any
}

// Notifier delivers notifications to one subscriber. WebSocket connections
// use ws.JSONRPCNotifier; the console reporter is another implementation.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}
