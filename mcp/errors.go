package mcp

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/traineemgr/server/gallery"
	"github.com/traineemgr/server/service"
	"github.com/traineemgr/server/trainee"
	"github.com/traineemgr/server/training"
)

type ErrorCode string

const (
	ErrNotFound   ErrorCode = "not_found"
	ErrValidation ErrorCode = "validation"
	ErrConflict   ErrorCode = "conflict"
	ErrInternal   ErrorCode = "internal"
)

// ToolError is the JSON body of a failed tool call.
type ToolError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e ToolError) ToResult() *mcp.CallToolResult {
	data, _ := json.Marshal(e)
	return mcp.NewToolResultError(string(data))
}

func ValidationError(msg string) *mcp.CallToolResult {
	return ToolError{Code: ErrValidation, Message: msg}.ToResult()
}

var (
	notFoundErrors   = []error{gallery.ErrNotFound, trainee.ErrNotFound}
	validationErrors = []error{training.ErrInvalidInput, trainee.ErrInvalidInput, trainee.ErrExists}
	conflictErrors   = []error{
		training.ErrAlreadyActive,
		training.ErrNotActive,
		service.ErrNoGallery,
		gallery.ErrNoImages,
		gallery.ErrDebriefActive,
		gallery.ErrDebriefInactive,
		gallery.ErrRemoteDisabled,
		gallery.ErrClosed,
		gallery.ErrUploadRunning,
	}
)

func classify(err error) ErrorCode {
	isAny := func(targets []error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}
	switch {
	case isAny(notFoundErrors):
		return ErrNotFound
	case isAny(validationErrors):
		return ErrValidation
	case isAny(conflictErrors):
		return ErrConflict
	default:
		return ErrInternal
	}
}

// errorResult turns a service error into a tool error result.
func errorResult(err error) *mcp.CallToolResult {
	return ToolError{Code: classify(err), Message: err.Error()}.ToResult()
}
