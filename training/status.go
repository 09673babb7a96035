package training

import (
	"fmt"
	"time"
)

// FormatDuration renders d as "Xh Ym Zs", truncated to whole seconds.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%dh %dm %ds", total/3600, total%3600/60, total%60)
}

type GallerySummary struct {
	Folder    string `json:"folder"`
	SessionID string `json:"session_id"`
	Images    int    `json:"images"`
	Debrief   bool   `json:"debrief"`
	Link      string `json:"link,omitempty"`
}

// Status is the controller state shown to front-ends. After a stop, Elapsed
// is the final duration of the stopped session.
type Status struct {
	Active  bool            `json:"active"`
	Session *Session        `json:"session,omitempty"`
	Elapsed string          `json:"elapsed,omitempty"`
	Seconds int64           `json:"elapsed_seconds"`
	Gallery *GallerySummary `json:"gallery,omitempty"`
}

func (c *Controller) Status() Status {
	var st Status
	if c.session != nil {
		s := *c.session
		st.Session = &s
		st.Active = s.Active
		var elapsed time.Duration
		switch {
		case s.Active:
			elapsed = c.now().Sub(s.StartedAt)
		case !s.StoppedAt.IsZero():
			elapsed = s.Duration()
		}
		if s.Active || !s.StoppedAt.IsZero() {
			st.Elapsed = FormatDuration(elapsed)
			st.Seconds = int64(elapsed / time.Second)
		}
	}
	if g := c.gallery; g != nil && !g.Closed() {
		st.Gallery = &GallerySummary{
			Folder:    g.Folder(),
			SessionID: g.SessionID(),
			Images:    len(g.Images()),
			Debrief:   g.DebriefActive(),
			Link:      g.Link(),
		}
	}
	return st
}
