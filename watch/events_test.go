package watch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/traineemgr/server/gallery"
)

type collector struct {
	mu  sync.Mutex
	got []Notification
	ch  chan struct{}
}

func newCollector() *collector {
	return &collector{ch: make(chan struct{}, 64)}
}

func (c *collector) Notify(ctx context.Context, n Notification) error {
	c.mu.Lock()
	c.got = append(c.got, n)
	c.mu.Unlock()
	c.ch <- struct{}{}
	return nil
}

func (c *collector) wait(t *testing.T, n int) []Notification {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d notifications, want %d", i, n)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification(nil), c.got...)
}

func startWatcher(t *testing.T) *EventWatcher {
	t.Helper()
	w := NewEventWatcher()
	w.Start()
	t.Cleanup(w.Stop)
	return w
}

func TestEventWatcher_SubscribeUnsubscribe(t *testing.T) {
	w := NewEventWatcher()

	id := w.Subscribe(newCollector())
	if !strings.HasPrefix(id, "ev_") {
		t.Errorf("Subscribe() id = %q, want ev_ prefix", id)
	}
	if !w.HasSubscriptions() {
		t.Error("HasSubscriptions() = false after Subscribe")
	}
	if !w.Unsubscribe(id) {
		t.Error("Unsubscribe() = false for existing id")
	}
	if w.Unsubscribe(id) {
		t.Error("Unsubscribe() = true for removed id")
	}
	if w.HasSubscriptions() {
		t.Error("HasSubscriptions() = true after Unsubscribe")
	}
}

func TestEventWatcher_DeliversToEverySubscriber(t *testing.T) {
	w := startWatcher(t)
	a, b := newCollector(), newCollector()
	idA := w.Subscribe(a)
	w.Subscribe(b)

	w.Publish(MethodGalleryChanged, "payload")

	got := a.wait(t, 1)
	b.wait(t, 1)
	if got[0].Method != MethodGalleryChanged {
		t.Errorf("Method = %q, want %q", got[0].Method, MethodGalleryChanged)
	}
	ev, ok := got[0].Params.(Event)
	if !ok || ev.ID != idA || ev.Data != "payload" {
		t.Errorf("Params = %#v, want Event for %s", got[0].Params, idA)
	}
}

func TestEventWatcher_PublishNeverBlocks(t *testing.T) {
	w := NewEventWatcher()
	done := make(chan struct{})
	go func() {
		for i := 0; i < eventBufferSize*2; i++ {
			w.Publish(MethodTrainingChanged, i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked with a full buffer")
	}
}

func TestGalleryListener_UploadEvents(t *testing.T) {
	w := startWatcher(t)
	c := newCollector()
	w.Subscribe(c)

	l := w.GalleryListener()
	l.OnUploadProgress(gallery.UploadResult{Name: "a.png", Err: errors.New("boom")}, 1, 2)
	l.OnBulkUploadDone(gallery.UploadReport{
		Total:     2,
		Succeeded: 1,
		Failed:    1,
		Results:   []gallery.UploadResult{{Name: "a.png", Err: errors.New("boom")}, {Name: "b.png"}},
		Link:      "http://viewer/x",
	})

	got := c.wait(t, 2)
	progress := got[0].Params.(Event).Data.(ProgressEvent)
	if progress.OK || progress.Error != "boom" || progress.Done != 1 || progress.Total != 2 {
		t.Errorf("progress = %+v", progress)
	}
	done := got[1].Params.(Event).Data.(DoneEvent)
	if len(done.FailedNames) != 1 || done.FailedNames[0] != "a.png" || done.Link != "http://viewer/x" {
		t.Errorf("done = %+v", done)
	}
}

func TestGalleryListener_ErrorMethods(t *testing.T) {
	tests := []struct {
		op   gallery.Op
		want string
	}{
		{gallery.OpUpload, MethodDebriefError},
		{gallery.OpLive, MethodDebriefError},
		{gallery.OpEnd, MethodDebriefError},
		{gallery.OpRefresh, MethodGalleryError},
		{gallery.OpEdit, MethodGalleryError},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			w := startWatcher(t)
			c := newCollector()
			w.Subscribe(c)

			w.GalleryListener().OnError(tt.op, "a.png", errors.New("boom"))

			got := c.wait(t, 1)
			if got[0].Method != tt.want {
				t.Errorf("method = %q, want %q", got[0].Method, tt.want)
			}
			ev := got[0].Params.(Event).Data.(ErrorEvent)
			if ev.Op != string(tt.op) || ev.Name != "a.png" || ev.Error != "boom" {
				t.Errorf("event = %+v", ev)
			}
		})
	}
}
