// Package capture detects new screenshots and moves them into session folders.
package capture

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Extension is the image type captured by the watcher.
const Extension = ".png"

// Event announces a new, settled image in the watched directory.
type Event struct {
	Path       string
	DetectedAt time.Time
}

// Sink receives events on the watcher goroutine. It must hand them off
// (e.g. to the control loop) instead of touching session state directly.
type Sink func(Event)

type Options struct {
	Settle SettleOptions
}

// Watcher watches one directory, non-recursively, for newly created images.
type Watcher struct {
	dir    string
	sink   Sink
	settle SettleOptions

	watcher *fsnotify.Watcher

	// pending holds paths between their create event and delivery so a
	// duplicate create from the OS is not delivered twice.
	pendingMu sync.Mutex
	pending   map[string]struct{}

	queue chan string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWatcher(dir string, sink Sink, opts Options) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		dir:     dir,
		sink:    sink,
		settle:  opts.Settle.withDefaults(),
		pending: make(map[string]struct{}),
		queue:   make(chan string, 64),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (w *Watcher) Dir() string { return w.dir }

// Start creates the watched directory if needed and begins watching.
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return err
	}
	w.watcher = watcher

	w.wg.Add(2)
	go w.eventLoop()
	go w.deliverLoop()
	slog.Info("capture watcher started", "dir", w.dir)
	return nil
}

func (w *Watcher) Stop() {
	w.cancel()
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.wg.Wait()
	slog.Info("capture watcher stopped", "dir", w.dir)
}

// eventLoop filters raw fsnotify events. Settling happens on deliverLoop so
// slow writers do not stall the fsnotify reader.
func (w *Watcher) eventLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("fsnotify error", "dir", w.dir, "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) {
		return
	}
	if !IsImage(event.Name) {
		return
	}
	if filepath.Dir(event.Name) != filepath.Clean(w.dir) {
		return
	}

	w.pendingMu.Lock()
	if _, dup := w.pending[event.Name]; dup {
		w.pendingMu.Unlock()
		slog.Debug("duplicate create event ignored", "file", event.Name)
		return
	}
	w.pending[event.Name] = struct{}{}
	w.pendingMu.Unlock()

	select {
	case w.queue <- event.Name:
	case <-w.ctx.Done():
	}
}

// deliverLoop settles and delivers paths one at a time, preserving the order
// in which the filesystem reported them.
func (w *Watcher) deliverLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case path := <-w.queue:
			w.deliver(path)
		}
	}
}

func (w *Watcher) deliver(path string) {
	defer func() {
		w.pendingMu.Lock()
		delete(w.pending, path)
		w.pendingMu.Unlock()
	}()

	info, err := WaitSettled(w.ctx, path, w.settle)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		slog.Warn("dropping capture", "file", path, "error", err)
		return
	}
	if !info.Mode().IsRegular() {
		return
	}

	w.sink(Event{Path: path, DetectedAt: time.Now()})
}

// IsImage reports whether path has the captured image extension, ignoring case.
func IsImage(path string) bool {
	return strings.EqualFold(filepath.Ext(path), Extension)
}
