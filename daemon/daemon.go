// Package daemon assembles the control loop, the capture watcher and the
// HTTP surfaces into the long-running `serve` process.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/traineemgr/server/api"
	"github.com/traineemgr/server/capture"
	"github.com/traineemgr/server/console"
	"github.com/traineemgr/server/eventloop"
	"github.com/traineemgr/server/gallery"
	"github.com/traineemgr/server/launcher"
	"github.com/traineemgr/server/mcp"
	"github.com/traineemgr/server/middleware"
	"github.com/traineemgr/server/remote"
	"github.com/traineemgr/server/service"
	"github.com/traineemgr/server/trainee"
	"github.com/traineemgr/server/training"
	"github.com/traineemgr/server/watch"
	"github.com/traineemgr/server/ws"
)

const shutdownTimeout = 5 * time.Second

type Daemon struct {
	cfg Config

	loop    *eventloop.Loop
	events  *watch.EventWatcher
	ctrl    *training.Controller
	svc     *service.Service
	capture *capture.Watcher
	handler http.Handler

	loopCancel context.CancelFunc
}

func New(cfg Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:    cfg,
		loop:   eventloop.New(),
		events: watch.NewEventWatcher(),
	}

	var rc gallery.Remote
	if !cfg.Offline {
		rc = remote.NewClient(cfg.remoteConfig())
	}
	editor := launcher.Command{Line: cfg.Editor}
	galleryEvents := d.events.GalleryListener()

	d.ctrl = training.NewController(training.Config{
		Root: cfg.TraineeRoot,
		OpenGallery: func(folder, sessionID string) (*gallery.Gallery, error) {
			return gallery.Open(d.loop, gallery.Config{
				Folder:      folder,
				SessionID:   sessionID,
				Remote:      rc,
				Editor:      editor,
				Listener:    galleryEvents,
				ClickWindow: cfg.ClickWindow,
			})
		},
		Template: cfg.Template,
		Opener:   launcher.Command{Line: cfg.Opener},
		Listener: d.events.TrainingListener(),
	})
	d.svc = service.New(d.loop, d.ctrl, trainee.NewRegistry(cfg.TraineeRoot))
	d.capture = capture.NewWatcher(cfg.ScreenshotDir, d.svc.Capture, capture.Options{Settle: cfg.settleOptions()})
	d.handler = d.newHandler()
	return d, nil
}

func (d *Daemon) Service() *service.Service   { return d.svc }
func (d *Daemon) Events() *watch.EventWatcher { return d.events }
func (d *Daemon) Handler() http.Handler       { return d.handler }

func (d *Daemon) newHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	api.NewGalleryHandler(d.svc).Register(mux)

	// WebSocket endpoint (authenticates with its first RPC call)
	rpcHandler := ws.NewRPCHandler(ws.Config{
		Token:       d.cfg.Token,
		Version:     d.cfg.Version,
		DevMode:     d.cfg.DevMode,
		TraineeRoot: d.cfg.TraineeRoot,
		Remote:      !d.cfg.Offline,
	}, d.svc, d.events)
	mux.Handle("GET /ws", rpcHandler)

	mux.Handle("/mcp", mcp.NewServer(d.svc, d.cfg.Version).Handler())

	origins := d.cfg.CORSOrigins
	if d.cfg.DevMode && len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Mcp-Session-Id"},
	})

	return c.Handler(middleware.Auth(d.cfg.Token)(mux))
}

// Start runs the control loop, event delivery and the capture watcher.
func (d *Daemon) Start() error {
	loopCtx, cancel := context.WithCancel(context.Background())
	d.loopCancel = cancel
	go d.loop.Run(loopCtx)

	d.events.Start()
	if d.cfg.Console {
		d.events.Subscribe(console.NewStdout())
	}

	if err := d.capture.Start(); err != nil {
		d.stopCore()
		return err
	}
	return nil
}

// Shutdown stops capturing, closes the gallery and drains the loop.
// Uploads already in flight finish on their own.
func (d *Daemon) Shutdown() {
	d.capture.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.loop.Call(ctx, func() error {
		d.ctrl.Close()
		return nil
	}); err != nil {
		slog.Warn("failed to close gallery on shutdown", "error", err)
	}
	d.stopCore()
}

func (d *Daemon) stopCore() {
	if d.loopCancel == nil {
		return
	}
	d.loopCancel()
	d.loop.Wait()
	d.events.Stop()
}

// Run serves until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.cfg.Addr)
	if err != nil {
		return err
	}
	return d.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (d *Daemon) Serve(ctx context.Context, ln net.Listener) error {
	if err := d.Start(); err != nil {
		ln.Close()
		return err
	}

	srv := &http.Server{Handler: d.handler}
	errCh := make(chan error, 1)
	var err error
	go func() {
		slog.Info("server starting", "addr", ln.Addr().String(), "traineeRoot", d.cfg.TraineeRoot, "screenshotDir", d.cfg.ScreenshotDir, "remote", !d.cfg.Offline)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err = srv.Shutdown(shutdownCtx)
		cancel()
	}
	d.Shutdown()

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
