// Package gallery lists and annotates the images of one session folder and
// drives the remote debrief for it.
//
// A Gallery is owned by the control loop: every exported method must be
// called from the loop goroutine. Network calls and the external editor run
// on worker goroutines and post their results back to the loop.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/traineemgr/server/capture"
	"github.com/traineemgr/server/metadata"
)

// DefaultClickWindow is how long a single click waits for a second click
// before it opens the editor.
const DefaultClickWindow = 200 * time.Millisecond

// Config binds a gallery. A nil Remote makes it local-only.
type Config struct {
	Folder      string
	SessionID   string
	Remote      Remote
	Editor      Editor
	Listener    Listener
	ClickWindow time.Duration
}

type Gallery struct {
	loop      Scheduler
	folder    string
	imageDir  string
	sessionID string
	remote    Remote
	editor    Editor
	listener  Listener
	window    time.Duration

	images []Image
	meta   metadata.Metadata

	debrief      bool
	uploading    bool
	closed       bool
	pendingClick *clickTimer

	// ctx is cancelled by Close. Workers check it between items; requests
	// already issued are not cancelled.
	ctx    context.Context
	cancel context.CancelFunc
}

// Open binds a gallery to folder and loads its current contents.
// A corrupt sidecar fails the open.
func Open(loop Scheduler, cfg Config) (*Gallery, error) {
	if cfg.Folder == "" {
		return nil, errors.New("gallery folder is required")
	}
	if cfg.Listener == nil {
		cfg.Listener = NopListener{}
	}
	if cfg.ClickWindow <= 0 {
		cfg.ClickWindow = DefaultClickWindow
	}

	imageDir := capture.ImageFolder(cfg.Folder)
	if err := os.MkdirAll(imageDir, 0755); err != nil {
		return nil, fmt.Errorf("create image folder: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	g := &Gallery{
		loop:      loop,
		folder:    cfg.Folder,
		imageDir:  imageDir,
		sessionID: cfg.SessionID,
		remote:    cfg.Remote,
		editor:    cfg.Editor,
		listener:  cfg.Listener,
		window:    cfg.ClickWindow,
		meta:      metadata.New(),
		ctx:       ctx,
		cancel:    cancel,
	}
	if err := g.load(); err != nil {
		cancel()
		return nil, err
	}
	return g, nil
}

func (g *Gallery) Folder() string    { return g.folder }
func (g *Gallery) SessionID() string { return g.sessionID }
func (g *Gallery) Closed() bool      { return g.closed }
func (g *Gallery) DebriefActive() bool {
	return g.debrief
}

// Link returns the viewer URL for this session, or "" without a remote.
func (g *Gallery) Link() string {
	if g.remote == nil {
		return ""
	}
	return g.remote.Link(g.sessionID)
}

// Images returns the listed images in capture order.
func (g *Gallery) Images() []Image {
	return slices.Clone(g.images)
}

// Image returns the listed image called name.
func (g *Gallery) Image(name string) (Image, bool) {
	for _, img := range g.images {
		if img.Name == name {
			return img, true
		}
	}
	return Image{}, false
}

// Last returns the most recently captured image.
func (g *Gallery) Last() (Image, bool) {
	if len(g.images) == 0 {
		return Image{}, false
	}
	return g.images[len(g.images)-1], true
}

func (g *Gallery) Snapshot() Snapshot {
	return Snapshot{
		Folder:    g.folder,
		SessionID: g.sessionID,
		Remote:    g.remote != nil,
		Debrief:   g.debrief,
		Live:      g.meta.Live,
		Images:    g.Images(),
	}
}

// Refresh rescans the image folder and reloads the sidecar. If the sidecar
// is corrupt the image list is still updated, the previous annotations are
// kept and the error is returned.
func (g *Gallery) Refresh() error {
	if g.closed {
		return ErrClosed
	}
	err := g.load()
	g.listener.OnGalleryChange(g.Snapshot())
	return err
}

// reload refreshes after a successful mutation. A refresh error is reported
// to the listener since the mutation itself already succeeded.
func (g *Gallery) reload() {
	if g.closed {
		return
	}
	if err := g.Refresh(); err != nil {
		slog.Warn("gallery refresh failed", "folder", g.folder, "error", err)
		g.listener.OnError(OpRefresh, "", err)
	}
}

func (g *Gallery) load() error {
	meta, metaErr := metadata.Load(g.folder)
	if metaErr == nil {
		g.meta = meta
	}
	images, err := scan(g.imageDir, g.meta)
	if err != nil {
		return err
	}
	g.images = images
	return metaErr
}

// Scan lists the images of a session folder without opening a gallery.
// It is meant for read-only callers outside the control loop.
func Scan(folder string) ([]Image, metadata.Metadata, error) {
	meta, err := metadata.Load(folder)
	if err != nil {
		return nil, metadata.Metadata{}, err
	}
	images, err := scan(capture.ImageFolder(folder), meta)
	if err != nil {
		return nil, metadata.Metadata{}, err
	}
	return images, meta, nil
}

func scan(imageDir string, meta metadata.Metadata) ([]Image, error) {
	entries, err := os.ReadDir(imageDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("list images: %w", err)
	}

	images := make([]Image, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !capture.IsImage(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		name := entry.Name()
		captured, ok := capture.ParseCanonicalName(name)
		if !ok {
			captured = info.ModTime()
		}
		images = append(images, Image{
			Name:       name,
			Path:       filepath.Join(imageDir, name),
			CapturedAt: captured,
			ModTime:    info.ModTime(),
			Comment:    meta.Comments[name],
			Discussed:  meta.IsDiscussed(name),
			Live:       meta.Live == name,
		})
	}
	sortImages(images)
	return images, nil
}

func sortImages(images []Image) {
	slices.SortStableFunc(images, func(a, b Image) int {
		if c := a.CapturedAt.Compare(b.CapturedAt); c != 0 {
			return c
		}
		if c := a.ModTime.Compare(b.ModTime); c != 0 {
			return c
		}
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
}

// lookup validates name against the current listing.
func (g *Gallery) lookup(name string) (Image, error) {
	if g.closed {
		return Image{}, ErrClosed
	}
	if name == "" || filepath.Base(name) != name {
		return Image{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	img, ok := g.Image(name)
	if !ok {
		return Image{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return img, nil
}

// SetComment stores text as the comment of image name.
func (g *Gallery) SetComment(name, text string) error {
	if _, err := g.lookup(name); err != nil {
		return err
	}
	meta, err := metadata.SetComment(g.folder, name, text)
	if err != nil {
		return err
	}
	g.meta = meta
	g.reload()
	return nil
}

// CommentLast comments the most recently captured image.
func (g *Gallery) CommentLast(text string) (Image, error) {
	if g.closed {
		return Image{}, ErrClosed
	}
	last, ok := g.Last()
	if !ok {
		return Image{}, ErrNoImages
	}
	if err := g.SetComment(last.Name, text); err != nil {
		return Image{}, err
	}
	img, _ := g.Image(last.Name)
	return img, nil
}

// Delete removes image name from disk. Its sidecar entries are left alone,
// including a live pointer that names it.
func (g *Gallery) Delete(name string) error {
	img, err := g.lookup(name)
	if err != nil {
		return err
	}
	if g.pendingClick != nil && g.pendingClick.name == name {
		g.cancelClick()
	}
	if err := os.Remove(img.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete image: %w", err)
	}
	slog.Info("image deleted", "folder", g.folder, "image", name)
	g.reload()
	return nil
}

// Close releases the gallery. Uploads in progress stop before their next
// item; callbacks already scheduled still run but see a closed gallery.
func (g *Gallery) Close() {
	if g.closed {
		return
	}
	g.cancelClick()
	g.closed = true
	g.debrief = false
	g.cancel()
}
