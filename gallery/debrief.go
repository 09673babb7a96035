package gallery

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/traineemgr/server/metadata"
)

// StartDebrief activates the debrief and uploads every listed image in
// capture order on a worker goroutine. Progress and the final report reach
// the listener on the loop. Only one bulk upload runs at a time, also across
// an end and restart of the debrief.
func (g *Gallery) StartDebrief() error {
	if g.closed {
		return ErrClosed
	}
	if g.remote == nil {
		return ErrRemoteDisabled
	}
	if g.debrief {
		return ErrDebriefActive
	}
	if g.uploading {
		return ErrUploadRunning
	}
	if err := g.load(); err != nil {
		slog.Warn("gallery refresh before debrief failed", "folder", g.folder, "error", err)
	}
	if len(g.images) == 0 {
		return ErrNoImages
	}

	g.debrief = true
	g.uploading = true
	batch := g.Images()
	slog.Info("debrief started", "session", g.sessionID, "images", len(batch))
	g.listener.OnGalleryChange(g.Snapshot())

	go g.uploadAll(batch)
	return nil
}

func (g *Gallery) uploadAll(batch []Image) {
	total := len(batch)
	report := UploadReport{Total: total, Link: g.Link()}
	for i, img := range batch {
		if g.ctx.Err() != nil {
			report.Abandoned = total - i
			break
		}
		res := UploadResult{Name: img.Name, Err: g.upload(img)}
		report.Results = append(report.Results, res)
		if res.OK() {
			report.Succeeded++
		} else {
			report.Failed++
			slog.Warn("image upload failed", "session", g.sessionID, "image", img.Name, "error", res.Err)
		}

		done := i + 1
		g.loop.Post(func() {
			g.listener.OnUploadProgress(res, done, total)
		})
	}

	slog.Info("bulk upload finished",
		"session", g.sessionID,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"abandoned", report.Abandoned)
	g.loop.Post(func() {
		g.uploading = false
		g.listener.OnBulkUploadDone(report)
	})
}

func (g *Gallery) upload(img Image) error {
	data, err := os.ReadFile(img.Path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	return g.remote.Upload(context.Background(), g.sessionID, img.Name, data)
}

func (g *Gallery) requireDebrief() error {
	if g.closed {
		return ErrClosed
	}
	if g.remote == nil {
		return ErrRemoteDisabled
	}
	if !g.debrief {
		return ErrDebriefInactive
	}
	return nil
}

// UploadOne uploads a single image. done, if set, is called on the loop with
// the outcome.
func (g *Gallery) UploadOne(name string, done func(error)) error {
	if err := g.requireDebrief(); err != nil {
		return err
	}
	img, err := g.lookup(name)
	if err != nil {
		return err
	}

	go func() {
		err := g.upload(img)
		g.loop.Post(func() {
			if err != nil {
				slog.Warn("image upload failed", "session", g.sessionID, "image", name, "error", err)
				g.listener.OnError(OpUpload, name, err)
			}
			if done != nil {
				done(err)
			}
		})
	}()
	return nil
}

// GoLive tells the viewer to show image name. Once the viewer accepts, the
// sidecar's live pointer moves to name and name is marked discussed.
func (g *Gallery) GoLive(name string, done func(error)) error {
	if err := g.requireDebrief(); err != nil {
		return err
	}
	if _, err := g.lookup(name); err != nil {
		return err
	}

	go func() {
		err := g.remote.MarkLive(context.Background(), g.sessionID, name)
		g.loop.Post(func() {
			if err == nil {
				err = g.applyLive(name)
			}
			if err != nil {
				slog.Warn("go live failed", "session", g.sessionID, "image", name, "error", err)
				g.listener.OnError(OpLive, name, err)
			}
			if done != nil {
				done(err)
			}
		})
	}()
	return nil
}

// applyLive records an accepted live switch. The sidecar is written even if
// the gallery closed in the meantime, since the viewer already switched.
func (g *Gallery) applyLive(name string) error {
	meta, err := metadata.MarkLive(g.folder, name)
	if err != nil {
		return err
	}
	if g.closed {
		return nil
	}
	g.meta = meta
	g.reload()
	return nil
}

// EndDebrief deactivates the debrief and signals the viewer. A failed
// signal is reported to the listener; the debrief stays ended locally.
func (g *Gallery) EndDebrief() error {
	if err := g.requireDebrief(); err != nil {
		return err
	}
	g.debrief = false
	slog.Info("debrief ended", "session", g.sessionID)

	go func() {
		err := g.remote.SignalEnd(context.Background(), g.sessionID)
		if err == nil {
			return
		}
		slog.Warn("debrief end signal failed", "session", g.sessionID, "error", err)
		g.loop.Post(func() {
			g.listener.OnError(OpEnd, "", err)
		})
	}()

	g.reload()
	return nil
}
