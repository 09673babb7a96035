// Package console prints daemon events for the operator running `serve` in
// a terminal.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mdp/qrterminal/v3"
	"golang.org/x/term"

	"github.com/traineemgr/server/gallery"
	"github.com/traineemgr/server/training"
	"github.com/traineemgr/server/watch"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

// Reporter renders events as one styled line each. It implements
// watch.Notifier.
type Reporter struct {
	mu     sync.Mutex
	out    io.Writer
	qr     bool
	active bool
}

var _ watch.Notifier = (*Reporter)(nil)

// New returns a reporter writing to out. With qr set, debrief links are
// also drawn as QR codes.
func New(out io.Writer, qr bool) *Reporter {
	return &Reporter{out: out, qr: qr}
}

// NewStdout reports to stdout, drawing QR codes only on a terminal.
func NewStdout() *Reporter {
	return New(os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))
}

func (r *Reporter) Notify(ctx context.Context, n watch.Notification) error {
	data := n.Params
	if ev, ok := data.(watch.Event); ok {
		data = ev.Data
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch v := data.(type) {
	case training.Status:
		r.session(v)
	case gallery.Image:
		switch n.Method {
		case watch.MethodCaptureMoved:
			r.line(successStyle.Render("captured"), v.Name)
		case watch.MethodEditComment:
			r.line(titleStyle.Render("comment"), v.Name, dimStyle.Render(v.Comment))
		}
	case watch.ProgressEvent:
		progress := fmt.Sprintf("[%d/%d]", v.Done, v.Total)
		if v.OK {
			r.line(dimStyle.Render(progress), v.Name)
		} else {
			r.line(warningStyle.Render(progress), v.Name, errorStyle.Render(v.Error))
		}
	case watch.DoneEvent:
		r.debriefDone(v)
	case watch.ErrorEvent:
		subject := v.Op
		if v.Name != "" {
			subject += " " + v.Name
		}
		r.line(errorStyle.Render("error"), subject, v.Error)
	}
	return nil
}

func (r *Reporter) session(st training.Status) {
	switch {
	case st.Active && !r.active && st.Session != nil:
		r.line(titleStyle.Render("training started"), st.Session.Owner+"/"+st.Session.Name, dimStyle.Render(st.Session.Folder))
	case !st.Active && r.active:
		parts := []string{titleStyle.Render("training stopped")}
		if st.Session != nil {
			parts = append(parts, st.Session.Owner+"/"+st.Session.Name)
		}
		if st.Elapsed != "" {
			parts = append(parts, dimStyle.Render("after "+st.Elapsed))
		}
		r.line(parts...)
	}
	r.active = st.Active
}

func (r *Reporter) debriefDone(d watch.DoneEvent) {
	summary := fmt.Sprintf("%d/%d uploaded", d.Succeeded, d.Total)
	if d.Failed > 0 {
		summary += fmt.Sprintf(", %d failed", d.Failed)
	}
	if d.Abandoned > 0 {
		summary += fmt.Sprintf(", %d not sent", d.Abandoned)
	}
	style := successStyle
	if d.Failed > 0 || d.Abandoned > 0 {
		style = warningStyle
	}
	r.line(style.Render("debrief ready"), summary)
	for _, name := range d.FailedNames {
		r.line(errorStyle.Render("  failed"), name)
	}
	if d.Link == "" {
		return
	}
	r.line(dimStyle.Render("viewer"), d.Link)
	if r.qr {
		qrterminal.GenerateHalfBlock(d.Link, qrterminal.L, r.out)
	}
}

func (r *Reporter) line(parts ...string) {
	for i, p := range parts {
		if i > 0 {
			fmt.Fprint(r.out, " ")
		}
		fmt.Fprint(r.out, p)
	}
	fmt.Fprintln(r.out)
}
