// Package service is the request-facing API of the daemon. Each method
// marshals onto the control loop and waits for the result, so the
// WebSocket, REST and MCP surfaces can call it from their own goroutines.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/traineemgr/server/capture"
	"github.com/traineemgr/server/gallery"
	"github.com/traineemgr/server/trainee"
	"github.com/traineemgr/server/training"
)

var ErrNoGallery = errors.New("no gallery open")

// Loop is the control loop. *eventloop.Loop implements it.
type Loop interface {
	Post(fn func()) bool
	Call(ctx context.Context, fn func() error) error
}

type Service struct {
	loop     Loop
	ctrl     *training.Controller
	trainees *trainee.Registry
}

func New(loop Loop, ctrl *training.Controller, trainees *trainee.Registry) *Service {
	return &Service{loop: loop, ctrl: ctrl, trainees: trainees}
}

// StopResult is the outcome of stopping a training.
type StopResult struct {
	Duration time.Duration `json:"-"`
	Seconds  int64         `json:"seconds"`
	Display  string        `json:"display"`
}

// Capture is the capture watcher's sink: it hands the event to the loop.
func (s *Service) Capture(ev capture.Event) {
	s.loop.Post(func() {
		s.ctrl.HandleCapture(ev.Path)
	})
}

func (s *Service) Trainees() ([]string, error) {
	return s.trainees.List()
}

func (s *Service) AddTrainee(name, id string) (string, error) {
	return s.trainees.Add(name, id)
}

func (s *Service) Status(ctx context.Context) (training.Status, error) {
	var st training.Status
	err := s.loop.Call(ctx, func() error {
		st = s.ctrl.Status()
		return nil
	})
	return st, err
}

func (s *Service) StartTraining(ctx context.Context, traineeName, name string) (training.Session, error) {
	var sess training.Session
	err := s.loop.Call(ctx, func() error {
		var err error
		sess, err = s.ctrl.Start(traineeName, name)
		return err
	})
	return sess, err
}

func (s *Service) StopTraining(ctx context.Context) (StopResult, error) {
	var res StopResult
	err := s.loop.Call(ctx, func() error {
		d, err := s.ctrl.Stop()
		if err != nil {
			return err
		}
		res = StopResult{Duration: d, Seconds: int64(d / time.Second), Display: training.FormatDuration(d)}
		return nil
	})
	return res, err
}

// withGallery runs fn on the loop with the open gallery.
func (s *Service) withGallery(ctx context.Context, fn func(g *gallery.Gallery) error) error {
	return s.loop.Call(ctx, func() error {
		g := s.ctrl.Gallery()
		if g == nil || g.Closed() {
			return ErrNoGallery
		}
		return fn(g)
	})
}

func (s *Service) Gallery(ctx context.Context) (gallery.Snapshot, error) {
	var snap gallery.Snapshot
	err := s.withGallery(ctx, func(g *gallery.Gallery) error {
		snap = g.Snapshot()
		return nil
	})
	return snap, err
}

// RefreshGallery rescans the folder. A corrupt sidecar is reported with the
// refreshed listing.
func (s *Service) RefreshGallery(ctx context.Context) (gallery.Snapshot, error) {
	var snap gallery.Snapshot
	err := s.withGallery(ctx, func(g *gallery.Gallery) error {
		err := g.Refresh()
		snap = g.Snapshot()
		return err
	})
	return snap, err
}

func (s *Service) Image(ctx context.Context, name string) (gallery.Image, error) {
	var img gallery.Image
	err := s.withGallery(ctx, func(g *gallery.Gallery) error {
		var ok bool
		img, ok = g.Image(name)
		if !ok {
			return gallery.ErrNotFound
		}
		return nil
	})
	return img, err
}

func (s *Service) Comment(ctx context.Context, name, text string) (gallery.Image, error) {
	var img gallery.Image
	err := s.withGallery(ctx, func(g *gallery.Gallery) error {
		if err := g.SetComment(name, text); err != nil {
			return err
		}
		img, _ = g.Image(name)
		return nil
	})
	return img, err
}

func (s *Service) CommentLast(ctx context.Context, text string) (gallery.Image, error) {
	var img gallery.Image
	err := s.withGallery(ctx, func(g *gallery.Gallery) error {
		var err error
		img, err = g.CommentLast(text)
		return err
	})
	return img, err
}

func (s *Service) Delete(ctx context.Context, name string) error {
	return s.withGallery(ctx, func(g *gallery.Gallery) error {
		return g.Delete(name)
	})
}

func (s *Service) Click(ctx context.Context, name string) error {
	return s.withGallery(ctx, func(g *gallery.Gallery) error {
		return g.Click(name)
	})
}

func (s *Service) DoubleClick(ctx context.Context, name string) error {
	return s.withGallery(ctx, func(g *gallery.Gallery) error {
		return g.DoubleClick(name)
	})
}

func (s *Service) CloseGallery(ctx context.Context) error {
	return s.loop.Call(ctx, s.ctrl.CloseGallery)
}

// DebriefStart is returned by StartDebrief; the upload report follows as an
// event.
type DebriefStart struct {
	Link   string `json:"link"`
	Images int    `json:"images"`
}

func (s *Service) StartDebrief(ctx context.Context) (DebriefStart, error) {
	var res DebriefStart
	err := s.withGallery(ctx, func(g *gallery.Gallery) error {
		if err := g.StartDebrief(); err != nil {
			return err
		}
		res = DebriefStart{Link: g.Link(), Images: len(g.Images())}
		return nil
	})
	return res, err
}

func (s *Service) EndDebrief(ctx context.Context) error {
	return s.withGallery(ctx, func(g *gallery.Gallery) error {
		return g.EndDebrief()
	})
}

// Upload re-uploads one image and waits for the viewer's answer.
func (s *Service) Upload(ctx context.Context, name string) error {
	return s.awaitAsync(ctx, func(g *gallery.Gallery, done func(error)) error {
		return g.UploadOne(name, done)
	})
}

// GoLive switches the viewer to image name and waits for the outcome.
func (s *Service) GoLive(ctx context.Context, name string) error {
	return s.awaitAsync(ctx, func(g *gallery.Gallery, done func(error)) error {
		return g.GoLive(name, done)
	})
}

func (s *Service) awaitAsync(ctx context.Context, start func(g *gallery.Gallery, done func(error)) error) error {
	result := make(chan error, 1)
	err := s.withGallery(ctx, func(g *gallery.Gallery) error {
		return start(g, func(err error) { result <- err })
	})
	if err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
