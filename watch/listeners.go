package watch

import (
	"github.com/traineemgr/server/gallery"
	"github.com/traineemgr/server/training"
)

type ErrorEvent struct {
	Op    string `json:"op"`
	Name  string `json:"name,omitempty"`
	Error string `json:"error"`
}

type ProgressEvent struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
}

type DoneEvent struct {
	Total       int      `json:"total"`
	Succeeded   int      `json:"succeeded"`
	Failed      int      `json:"failed"`
	Abandoned   int      `json:"abandoned"`
	FailedNames []string `json:"failed_names,omitempty"`
	Link        string   `json:"link"`
}

// TrainingListener publishes controller events.
func (w *EventWatcher) TrainingListener() training.Listener {
	return trainingEvents{w}
}

// GalleryListener publishes gallery and debrief events.
func (w *EventWatcher) GalleryListener() gallery.Listener {
	return galleryEvents{w}
}

type trainingEvents struct{ w *EventWatcher }

func (e trainingEvents) OnSessionChange(st training.Status) {
	e.w.Publish(MethodTrainingChanged, st)
}

func (e trainingEvents) OnCapture(img gallery.Image) {
	e.w.Publish(MethodCaptureMoved, img)
}

func (e trainingEvents) OnError(op string, err error) {
	e.w.Publish(MethodTrainingError, ErrorEvent{Op: op, Error: err.Error()})
}

type galleryEvents struct{ w *EventWatcher }

func (e galleryEvents) OnGalleryChange(s gallery.Snapshot) {
	e.w.Publish(MethodGalleryChanged, s)
}

func (e galleryEvents) OnUploadProgress(res gallery.UploadResult, done, total int) {
	ev := ProgressEvent{Name: res.Name, OK: res.OK(), Done: done, Total: total}
	if res.Err != nil {
		ev.Error = res.Err.Error()
	}
	e.w.Publish(MethodDebriefProgress, ev)
}

func (e galleryEvents) OnBulkUploadDone(r gallery.UploadReport) {
	e.w.Publish(MethodDebriefDone, DoneEvent{
		Total:       r.Total,
		Succeeded:   r.Succeeded,
		Failed:      r.Failed,
		Abandoned:   r.Abandoned,
		FailedNames: r.FailedNames(),
		Link:        r.Link,
	})
}

func (e galleryEvents) OnEditComment(img gallery.Image) {
	e.w.Publish(MethodEditComment, img)
}

// OnError publishes upload, live and end failures as debrief errors and
// everything else as gallery errors.
func (e galleryEvents) OnError(op gallery.Op, name string, err error) {
	method := MethodGalleryError
	switch op {
	case gallery.OpUpload, gallery.OpLive, gallery.OpEnd:
		method = MethodDebriefError
	}
	e.w.Publish(method, ErrorEvent{Op: string(op), Name: name, Error: err.Error()})
}
