package gallery

import (
	"context"
	"errors"
	"time"

	"github.com/traineemgr/server/eventloop"
)

var (
	ErrNotFound        = errors.New("image not found")
	ErrNoImages        = errors.New("no images in session")
	ErrRemoteDisabled  = errors.New("remote sync is not configured")
	ErrDebriefActive   = errors.New("debrief already active")
	ErrDebriefInactive = errors.New("debrief is not active")
	ErrClosed          = errors.New("gallery closed")
	ErrNoEditor        = errors.New("no image editor configured")
	ErrUploadRunning   = errors.New("bulk upload still running")
)

// Image is one captured image of the bound session folder.
type Image struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	CapturedAt time.Time `json:"captured_at"`
	ModTime    time.Time `json:"mod_time"`
	Comment    string    `json:"comment,omitempty"`
	Discussed  bool      `json:"discussed"`
	Live       bool      `json:"live"`
}

// Snapshot is the rendered state of a gallery.
type Snapshot struct {
	Folder    string  `json:"folder"`
	SessionID string  `json:"session_id,omitempty"`
	Remote    bool    `json:"remote"`
	Debrief   bool    `json:"debrief"`
	Live      string  `json:"live"`
	Images    []Image `json:"images"`
}

// Op names the gallery operation an asynchronous error belongs to.
type Op string

const (
	OpRefresh Op = "refresh"
	OpUpload  Op = "upload"
	OpLive    Op = "live"
	OpEnd     Op = "end"
	OpEdit    Op = "edit"
)

// UploadResult is the outcome of uploading one image.
type UploadResult struct {
	Name string `json:"name"`
	Err  error  `json:"-"`
}

func (r UploadResult) OK() bool { return r.Err == nil }

// UploadReport summarizes a bulk upload.
type UploadReport struct {
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Abandoned int            `json:"abandoned"`
	Results   []UploadResult `json:"-"`
	Link      string         `json:"link"`
}

// FailedNames lists the images whose upload failed.
func (r UploadReport) FailedNames() []string {
	var names []string
	for _, res := range r.Results {
		if !res.OK() {
			names = append(names, res.Name)
		}
	}
	return names
}

// Remote is the debrief viewer. *remote.Client implements it.
type Remote interface {
	Upload(ctx context.Context, sessionID, filename string, data []byte) error
	MarkLive(ctx context.Context, sessionID, filename string) error
	SignalEnd(ctx context.Context, sessionID string) error
	Link(sessionID string) string
}

// Editor opens an image for touch-up and returns when the user is done.
type Editor interface {
	Edit(ctx context.Context, path string) error
}

// Scheduler is the control loop the gallery runs on. *eventloop.Loop
// implements it.
type Scheduler interface {
	Post(fn func()) bool
	AfterFunc(d time.Duration, fn func()) *eventloop.Timer
}

// Listener receives gallery events. All methods are called on the loop.
type Listener interface {
	OnGalleryChange(s Snapshot)
	OnUploadProgress(res UploadResult, done, total int)
	OnBulkUploadDone(report UploadReport)
	OnEditComment(img Image)
	OnError(op Op, name string, err error)
}

// NopListener ignores all events.
type NopListener struct{}

func (NopListener) OnGalleryChange(Snapshot)                {}
func (NopListener) OnUploadProgress(UploadResult, int, int) {}
func (NopListener) OnBulkUploadDone(UploadReport)           {}
func (NopListener) OnEditComment(Image)                     {}
func (NopListener) OnError(Op, string, error)               {}
