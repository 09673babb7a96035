package ws

import (
	"context"
	"errors"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/traineemgr/server/gallery"
	"github.com/traineemgr/server/metadata"
	"github.com/traineemgr/server/service"
	"github.com/traineemgr/server/trainee"
	"github.com/traineemgr/server/training"
)

type paramsError struct {
	err error
}

func (e *paramsError) Error() string { return "invalid params: " + e.err.Error() }
func (e *paramsError) Unwrap() error { return e.err }

// CodeConflict is returned when a request is valid but not allowed in the
// current session or debrief state.
const CodeConflict int64 = -32001

// errorCode maps a domain error to a JSON-RPC error code and message.
func errorCode(err error) (int64, string) {
	var pe *paramsError
	switch {
	case errors.Is(err, errParamsRequired), errors.As(err, &pe):
		return jsonrpc2.CodeInvalidParams, err.Error()
	case errors.Is(err, training.ErrInvalidInput),
		errors.Is(err, trainee.ErrInvalidInput),
		errors.Is(err, trainee.ErrExists),
		errors.Is(err, trainee.ErrNotFound),
		errors.Is(err, gallery.ErrNotFound):
		return jsonrpc2.CodeInvalidParams, err.Error()
	case errors.Is(err, training.ErrAlreadyActive),
		errors.Is(err, training.ErrNotActive),
		errors.Is(err, service.ErrNoGallery),
		errors.Is(err, gallery.ErrNoImages),
		errors.Is(err, gallery.ErrDebriefActive),
		errors.Is(err, gallery.ErrDebriefInactive),
		errors.Is(err, gallery.ErrRemoteDisabled),
		errors.Is(err, gallery.ErrClosed),
		errors.Is(err, gallery.ErrNoEditor),
		errors.Is(err, gallery.ErrUploadRunning):
		return CodeConflict, err.Error()
	case errors.Is(err, metadata.ErrCorrupt):
		return jsonrpc2.CodeInternalError, err.Error()
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return jsonrpc2.CodeInternalError, "request timed out"
	default:
		return jsonrpc2.CodeInternalError, err.Error()
	}
}
