// Package remote talks to the debrief viewer service.
//
// All functions are single-attempt: retry policy belongs to the caller.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL    = "http://localhost:3000"
	DefaultAPIPath    = "/api/Vatsim/traineemanager/training"
	DefaultViewerPath = "/vatsim/traineemanager/training"

	// EndSentinel is posted as the current screenshot when a debrief ends.
	EndSentinel = "DEBRIEFENDE"
)

var (
	ErrUnavailable = errors.New("remote unavailable")
	ErrRejected    = errors.New("remote rejected request")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status: %d", e.Op, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return ErrRejected
}

type Config struct {
	BaseURL    string
	APIPath    string
	ViewerBase string
	ViewerPath string
	Timeout    time.Duration
}

type Client struct {
	baseURL    string
	apiPath    string
	viewerBase string
	viewerPath string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIPath == "" {
		cfg.APIPath = DefaultAPIPath
	}
	if cfg.ViewerBase == "" {
		cfg.ViewerBase = cfg.BaseURL
	}
	if cfg.ViewerPath == "" {
		cfg.ViewerPath = DefaultViewerPath
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiPath:    "/" + strings.Trim(cfg.APIPath, "/"),
		viewerBase: strings.TrimRight(cfg.ViewerBase, "/"),
		viewerPath: "/" + strings.Trim(cfg.ViewerPath, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type uploadRequest struct {
	File     string `json:"file"`
	Filename string `json:"filename"`
}

type syncRequest struct {
	CurrentScreenshot string `json:"current_screenshot"`
}

// Upload posts one image, base64 encoded, under its canonical filename.
func (c *Client) Upload(ctx context.Context, sessionID, filename string, data []byte) error {
	body := uploadRequest{
		File:     base64.StdEncoding.EncodeToString(data),
		Filename: filename,
	}
	return c.post(ctx, "upload", c.endpoint(sessionID, "upload"), body)
}

// MarkLive tells the viewer which image is on screen.
func (c *Client) MarkLive(ctx context.Context, sessionID, filename string) error {
	return c.post(ctx, "mark live", c.endpoint(sessionID, "sync"), syncRequest{CurrentScreenshot: filename})
}

// SignalEnd tells the viewer the debrief is over.
func (c *Client) SignalEnd(ctx context.Context, sessionID string) error {
	return c.post(ctx, "signal end", c.endpoint(sessionID, "sync"), syncRequest{CurrentScreenshot: EndSentinel})
}

// Link returns the human-facing viewer URL for a session.
func (c *Client) Link(sessionID string) string {
	return c.viewerBase + c.viewerPath + "/" + url.PathEscape(sessionID)
}

func (c *Client) endpoint(sessionID, action string) string {
	return c.baseURL + c.apiPath + "/" + url.PathEscape(sessionID) + "/" + action
}

func (c *Client) post(ctx context.Context, op, target string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, StatusCode: resp.StatusCode}
	}
	return nil
}
