// Package watch fans daemon events out to subscribed clients.
package watch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Event methods sent to subscribers.
const (
	MethodTrainingChanged = "training.changed"
	MethodTrainingError   = "training.error"
	MethodCaptureMoved    = "capture.moved"
	MethodGalleryChanged  = "gallery.changed"
	MethodEditComment     = "gallery.edit_comment"
	MethodGalleryError    = "gallery.error"
	MethodDebriefProgress = "debrief.progress"
	MethodDebriefDone     = "debrief.done"
	MethodDebriefError    = "debrief.error"
)

const eventBufferSize = 256

type Subscription struct {
	ID       string
	Notifier Notifier
}

// Event is the params object of every notification. ID names the
// subscription it was delivered to.
type Event struct {
	ID   string `json:"id"`
	Data any    `json:"data"`
}

// EventWatcher queues published events and delivers them to every
// subscriber on its own goroutine, so publishers (the control loop) never
// wait on network I/O.
type EventWatcher struct {
	subMu         sync.RWMutex
	subscriptions map[string]*Subscription

	eventCh chan Notification

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEventWatcher() *EventWatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventWatcher{
		subscriptions: make(map[string]*Subscription),
		eventCh:       make(chan Notification, eventBufferSize),
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (w *EventWatcher) Start() {
	w.wg.Add(1)
	go w.eventLoop()
	slog.Info("EventWatcher started")
}

func (w *EventWatcher) Stop() {
	w.cancel()
	w.wg.Wait()
	slog.Info("EventWatcher stopped")
}

func (w *EventWatcher) eventLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case n := <-w.eventCh:
			w.notifyAll(n)
		}
	}
}

// Subscribe registers notifier and returns its subscription ID.
func (w *EventWatcher) Subscribe(notifier Notifier) string {
	id := "ev_" + uuid.NewString()[:8]
	w.subMu.Lock()
	defer w.subMu.Unlock()
	w.subscriptions[id] = &Subscription{ID: id, Notifier: notifier}
	return id
}

// Unsubscribe removes a subscription and reports whether it existed.
func (w *EventWatcher) Unsubscribe(id string) bool {
	w.subMu.Lock()
	defer w.subMu.Unlock()
	if _, ok := w.subscriptions[id]; !ok {
		return false
	}
	delete(w.subscriptions, id)
	return true
}

func (w *EventWatcher) HasSubscriptions() bool {
	w.subMu.RLock()
	defer w.subMu.RUnlock()
	return len(w.subscriptions) > 0
}

func (w *EventWatcher) snapshot() []*Subscription {
	w.subMu.RLock()
	defer w.subMu.RUnlock()
	subs := make([]*Subscription, 0, len(w.subscriptions))
	for _, sub := range w.subscriptions {
		subs = append(subs, sub)
	}
	return subs
}

// Publish queues an event. It never blocks; when the queue is full the
// event is dropped.
func (w *EventWatcher) Publish(method string, data any) {
	if w.ctx.Err() != nil {
		return
	}
	select {
	case w.eventCh <- Notification{Method: method, Params: data}:
	default:
		slog.Warn("event dropped (buffer full)", "method", method)
	}
}

func (w *EventWatcher) notifyAll(n Notification) {
	for _, sub := range w.snapshot() {
		out := Notification{Method: n.Method, Params: Event{ID: sub.ID, Data: n.Params}}
		if err := sub.Notifier.Notify(w.ctx, out); err != nil {
			slog.Debug("failed to notify subscriber", "id", sub.ID, "method", n.Method, "error", err)
		}
	}
}
