// Package training owns the live session: starting and stopping it, and
// moving captured images into its folder.
//
// The Controller is not safe for concurrent use; the daemon only calls it
// from the control loop.
package training

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/traineemgr/server/capture"
	"github.com/traineemgr/server/gallery"
	"github.com/traineemgr/server/notes"
	"github.com/traineemgr/server/trainee"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrAlreadyActive = errors.New("a training is already active")
	ErrNotActive     = errors.New("no training is active")
)

type Session struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Name      string    `json:"name"`
	Folder    string    `json:"folder"`
	Active    bool      `json:"active"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at,omitzero"`
	NotesPath string    `json:"notes_path,omitempty"`
}

// Duration is how long a stopped session ran.
func (s Session) Duration() time.Duration {
	if s.StoppedAt.Before(s.StartedAt) {
		return 0
	}
	return s.StoppedAt.Sub(s.StartedAt)
}

// GalleryFactory opens the gallery for a session folder.
type GalleryFactory func(folder, sessionID string) (*gallery.Gallery, error)

// Opener shows a file to the operator without waiting.
type Opener interface {
	Start(path string) error
}

// Listener receives controller events on the loop.
type Listener interface {
	OnSessionChange(st Status)
	OnCapture(img gallery.Image)
	OnError(op string, err error)
}

type NopListener struct{}

func (NopListener) OnSessionChange(Status)  {}
func (NopListener) OnCapture(gallery.Image) {}
func (NopListener) OnError(string, error)   {}

type Config struct {
	Root        string
	OpenGallery GalleryFactory
	// Template, if set, is filled into a notes document on every start.
	Template    string
	Opener      Opener
	Listener    Listener
	Now         func() time.Time
}

type Controller struct {
	root        string
	openGallery GalleryFactory
	template    string
	opener      Opener
	listener    Listener
	now         func() time.Time

	session *Session
	gallery *gallery.Gallery
}

func NewController(cfg Config) *Controller {
	if cfg.Listener == nil {
		cfg.Listener = NopListener{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Controller{
		root:        cfg.Root,
		openGallery: cfg.OpenGallery,
		template:    cfg.Template,
		opener:      cfg.Opener,
		listener:    cfg.Listener,
		now:         cfg.Now,
	}
}

// Start begins a session for trainee named name. The session folder
// <root>/<trainee>/<name> is created if needed and a gallery bound to it
// replaces any gallery left open by the previous session.
func (c *Controller) Start(traineeName, name string) (Session, error) {
	if !trainee.ValidName(traineeName) {
		return Session{}, fmt.Errorf("%w: trainee is required", ErrInvalidInput)
	}
	if !trainee.ValidName(name) {
		return Session{}, fmt.Errorf("%w: training name is required and must be a plain folder name", ErrInvalidInput)
	}
	if c.Active() {
		return Session{}, ErrAlreadyActive
	}

	folder := filepath.Join(c.root, traineeName, name)
	if err := os.MkdirAll(folder, 0755); err != nil {
		return Session{}, fmt.Errorf("create session folder: %w", err)
	}

	s := &Session{
		ID:        uuid.NewString(),
		Owner:     traineeName,
		Name:      name,
		Folder:    folder,
		Active:    true,
		StartedAt: c.now(),
	}

	if c.openGallery != nil {
		g, err := c.openGallery(folder, s.ID)
		if err != nil {
			return Session{}, fmt.Errorf("open gallery: %w", err)
		}
		if c.gallery != nil {
			c.gallery.Close()
		}
		c.gallery = g
	}
	c.session = s

	slog.Info("training started", "sessionId", s.ID, "trainee", traineeName, "training", name, "folder", folder)
	c.fillNotes(s)
	c.listener.OnSessionChange(c.Status())
	if c.gallery != nil {
		c.gallery.Refresh()
	}
	return *s, nil
}

// fillNotes creates the notes document. An existing document is kept so
// restarting a training does not wipe its notes. Failures do not abort the
// start.
func (c *Controller) fillNotes(s *Session) {
	if c.template == "" {
		return
	}
	out := filepath.Join(s.Folder, notes.OutputName(c.template, s.Name))
	if _, err := os.Stat(out); err == nil {
		s.NotesPath = out
		return
	}

	path, err := notes.Fill(c.template, s.Folder, notes.Fields{
		Name:     s.Owner,
		Training: s.Name,
		Date:     s.StartedAt,
	})
	if err != nil {
		slog.Warn("training notes not created", "sessionId", s.ID, "template", c.template, "error", err)
		c.listener.OnError("notes", err)
		return
	}
	s.NotesPath = path
	slog.Info("training notes created", "sessionId", s.ID, "file", path)

	if c.opener != nil {
		if err := c.opener.Start(path); err != nil {
			slog.Warn("failed to open training notes", "file", path, "error", err)
			c.listener.OnError("notes", err)
		}
	}
}

// Stop ends the active session and returns how long it ran. The gallery
// stays open for review and debrief.
func (c *Controller) Stop() (time.Duration, error) {
	if !c.Active() {
		return 0, ErrNotActive
	}
	c.session.StoppedAt = c.now()
	elapsed := c.session.Duration()
	c.session.Active = false
	slog.Info("training stopped", "sessionId", c.session.ID, "duration", FormatDuration(elapsed))
	c.listener.OnSessionChange(c.Status())
	return elapsed, nil
}

func (c *Controller) Active() bool {
	return c.session != nil && c.session.Active
}

// Session returns the current or most recent session.
func (c *Controller) Session() (Session, bool) {
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// Gallery returns the open gallery, or nil.
func (c *Controller) Gallery() *gallery.Gallery {
	return c.gallery
}

// HandleCapture moves a newly detected image into the active session. While
// idle the file is left where it is.
func (c *Controller) HandleCapture(path string) (string, error) {
	if !c.Active() {
		slog.Debug("capture ignored, no active training", "file", path)
		return "", nil
	}

	dst, err := capture.Relocate(path, c.session.Folder, c.now())
	if err != nil {
		slog.Error("failed to move capture", "file", path, "sessionId", c.session.ID, "error", err)
		c.listener.OnError("capture", err)
		return "", err
	}
	slog.Info("capture moved", "file", dst, "sessionId", c.session.ID)

	if err := c.ensureGallery(); err != nil {
		slog.Warn("gallery reopen after capture failed", "sessionId", c.session.ID, "error", err)
		c.listener.OnError("capture", err)
		return dst, nil
	}
	if c.gallery == nil {
		return dst, nil
	}
	if err := c.gallery.Refresh(); err != nil {
		slog.Warn("gallery refresh after capture failed", "sessionId", c.session.ID, "error", err)
		c.listener.OnError("capture", err)
	}
	if img, ok := c.gallery.Image(filepath.Base(dst)); ok {
		c.listener.OnCapture(img)
	}
	return dst, nil
}

// ensureGallery reopens the session's gallery after the operator closed it.
func (c *Controller) ensureGallery() error {
	if c.openGallery == nil || (c.gallery != nil && !c.gallery.Closed()) {
		return nil
	}
	g, err := c.openGallery(c.session.Folder, c.session.ID)
	if err != nil {
		return err
	}
	c.gallery = g
	return nil
}

// CloseGallery closes the open gallery. A later capture in the active
// session opens a new one.
func (c *Controller) CloseGallery() error {
	if c.gallery == nil || c.gallery.Closed() {
		return gallery.ErrClosed
	}
	c.gallery.Close()
	c.listener.OnSessionChange(c.Status())
	return nil
}

// Close releases the gallery at shutdown.
func (c *Controller) Close() {
	if c.gallery != nil {
		c.gallery.Close()
		c.gallery = nil
	}
}
