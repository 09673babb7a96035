package gallery

import (
	"context"
	"log/slog"

	"github.com/traineemgr/server/eventloop"
)

type clickTimer struct {
	name  string
	timer *eventloop.Timer
}

// Click handles a single click on image name. The editor opens after the
// click window unless a double click on any image arrives first.
func (g *Gallery) Click(name string) error {
	img, err := g.lookup(name)
	if err != nil {
		return err
	}
	g.cancelClick()

	pending := &clickTimer{name: name}
	pending.timer = g.loop.AfterFunc(g.window, func() {
		if g.pendingClick != pending {
			return
		}
		g.pendingClick = nil
		g.openEditor(img)
	})
	g.pendingClick = pending
	return nil
}

// DoubleClick cancels the pending single click and asks the listener to
// prompt for a comment on image name.
func (g *Gallery) DoubleClick(name string) error {
	g.cancelClick()
	img, err := g.lookup(name)
	if err != nil {
		return err
	}
	g.listener.OnEditComment(img)
	return nil
}

func (g *Gallery) cancelClick() {
	if g.pendingClick == nil {
		return
	}
	g.pendingClick.timer.Stop()
	g.pendingClick = nil
}

func (g *Gallery) openEditor(img Image) {
	if g.closed {
		return
	}
	if g.editor == nil {
		g.listener.OnError(OpEdit, img.Name, ErrNoEditor)
		return
	}

	editor := g.editor
	go func() {
		err := editor.Edit(context.Background(), img.Path)
		g.loop.Post(func() {
			if err != nil {
				slog.Warn("image editor failed", "image", img.Path, "error", err)
				g.listener.OnError(OpEdit, img.Name, err)
			}
			g.reload()
		})
	}()
}
