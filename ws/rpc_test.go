package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/traineemgr/server/capture"
	"github.com/traineemgr/server/eventloop"
	"github.com/traineemgr/server/gallery"
	"github.com/traineemgr/server/rpc"
	"github.com/traineemgr/server/service"
	"github.com/traineemgr/server/trainee"
	"github.com/traineemgr/server/training"
	"github.com/traineemgr/server/watch"
)

type rpcMessage struct {
	ID     *jsonrpc2.ID    `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *jsonrpc2.Error `json:"error,omitempty"`
}

type testEnv struct {
	t       *testing.T
	root    string
	svc     *service.Service
	watcher *watch.EventWatcher
	conn    *websocket.Conn
	ctx     context.Context
	nextID  uint64
	pending []rpcMessage
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()

	loop := eventloop.New()
	loopCtx, stopLoop := context.WithCancel(context.Background())
	go loop.Run(loopCtx)

	watcher := watch.NewEventWatcher()
	watcher.Start()

	ctrl := training.NewController(training.Config{
		Root:     root,
		Listener: watcher.TrainingListener(),
		OpenGallery: func(folder, sessionID string) (*gallery.Gallery, error) {
			return gallery.Open(loop, gallery.Config{
				Folder:    folder,
				SessionID: sessionID,
				Listener:  watcher.GalleryListener(),
			})
		},
	})
	svc := service.New(loop, ctrl, trainee.NewRegistry(root))

	h := NewRPCHandler(Config{Token: "test-token", Version: "test", DevMode: true, TraineeRoot: root}, svc, watcher)
	server := httptest.NewServer(h)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		cancel()
		server.Close()
		t.Fatalf("failed to connect: %v", err)
	}

	t.Cleanup(func() {
		conn.Close(websocket.StatusNormalClosure, "")
		cancel()
		server.Close()
		watcher.Stop()
		stopLoop()
		loop.Wait()
	})

	return &testEnv{t: t, root: root, svc: svc, watcher: watcher, conn: conn, ctx: ctx}
}

// authedEnv returns an environment whose connection already authenticated.
func authedEnv(t *testing.T) *testEnv {
	env := newTestEnv(t)
	resp := env.call("auth", rpc.AuthParams{Token: "test-token"})
	if resp.Error != nil {
		t.Fatalf("auth failed: %s", resp.Error.Message)
	}
	return env
}

func (e *testEnv) write(v any) {
	data, _ := json.Marshal(v)
	if err := e.conn.Write(e.ctx, websocket.MessageText, data); err != nil {
		e.t.Fatalf("failed to send: %v", err)
	}
}

func (e *testEnv) read() rpcMessage {
	_, data, err := e.conn.Read(e.ctx)
	if err != nil {
		e.t.Fatalf("failed to read: %v", err)
	}
	var msg rpcMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		e.t.Fatalf("failed to unmarshal: %v", err)
	}
	return msg
}

// call sends a request and waits for its response. Notifications read in
// the meantime are kept for notification.
func (e *testEnv) call(method string, params any) rpcMessage {
	e.nextID++
	id := e.nextID
	req := map[string]any{"jsonrpc": "2.0", "id": id, "method": method}
	if params != nil {
		req["params"] = params
	}
	e.write(req)

	for {
		msg := e.read()
		if msg.ID == nil {
			e.pending = append(e.pending, msg)
			continue
		}
		if msg.ID.Num == id {
			return msg
		}
	}
}

// notification returns the next notification with the given method.
func (e *testEnv) notification(method string) watch.Event {
	for {
		var msg rpcMessage
		if len(e.pending) > 0 {
			msg, e.pending = e.pending[0], e.pending[1:]
		} else {
			msg = e.read()
		}
		if msg.ID != nil || msg.Method != method {
			continue
		}
		var ev watch.Event
		if err := json.Unmarshal(msg.Params, &ev); err != nil {
			e.t.Fatalf("failed to unmarshal event: %v", err)
		}
		return ev
	}
}

func (e *testEnv) result(msg rpcMessage, v any) {
	e.t.Helper()
	if msg.Error != nil {
		e.t.Fatalf("unexpected error: %s", msg.Error.Message)
	}
	if err := json.Unmarshal(msg.Result, v); err != nil {
		e.t.Fatalf("failed to unmarshal result: %v", err)
	}
}

func (e *testEnv) startTraining() training.Session {
	e.t.Helper()
	var added rpc.TraineeAddResult
	e.result(e.call("trainee.add", rpc.TraineeAddParams{Name: "Alice", ID: "1001"}), &added)

	var started rpc.TrainingStartResult
	e.result(e.call("training.start", rpc.TrainingStartParams{Trainee: added.Folder, Name: "Approach1"}), &started)
	return started.Session
}

// capture drops a screenshot into the active session and waits for the move.
func (e *testEnv) capture() {
	e.t.Helper()
	src := filepath.Join(e.t.TempDir(), "shot.png")
	if err := os.WriteFile(src, []byte("png"), 0644); err != nil {
		e.t.Fatal(err)
	}
	e.svc.Capture(capture.Event{Path: src, DetectedAt: time.Now()})

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(src); os.IsNotExist(err) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	e.t.Fatal("capture was not moved")
}

func TestHandler_AuthRequiredFirst(t *testing.T) {
	env := newTestEnv(t)

	resp := env.call("training.status", nil)
	if resp.Error == nil {
		t.Fatal("expected error before auth")
	}
	if resp.Error.Code != jsonrpc2.CodeInvalidRequest {
		t.Errorf("code = %d, want %d", resp.Error.Code, jsonrpc2.CodeInvalidRequest)
	}
}

func TestHandler_InvalidToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.call("auth", rpc.AuthParams{Token: "wrong"})
	if resp.Error == nil || resp.Error.Message != "invalid token" {
		t.Errorf("auth error = %+v, want invalid token", resp.Error)
	}
}

func TestHandler_Auth(t *testing.T) {
	env := newTestEnv(t)

	var result rpc.AuthResult
	env.result(env.call("auth", rpc.AuthParams{Token: "test-token"}), &result)

	if result.Version != "test" {
		t.Errorf("version = %q, want %q", result.Version, "test")
	}
	if result.TraineeRoot != env.root {
		t.Errorf("trainee_root = %q, want %q", result.TraineeRoot, env.root)
	}
	if result.Remote {
		t.Error("expected remote=false")
	}
}

func TestHandler_MethodNotFound(t *testing.T) {
	env := authedEnv(t)

	resp := env.call("nope.nothing", nil)
	if resp.Error == nil || resp.Error.Code != jsonrpc2.CodeMethodNotFound {
		t.Errorf("error = %+v, want method not found", resp.Error)
	}
}

func TestHandler_TraineeAddAndList(t *testing.T) {
	env := authedEnv(t)

	var added rpc.TraineeAddResult
	env.result(env.call("trainee.add", rpc.TraineeAddParams{Name: "Bob", ID: "7"}), &added)
	if added.Folder != "Bob-7" {
		t.Errorf("folder = %q, want %q", added.Folder, "Bob-7")
	}

	resp := env.call("trainee.add", rpc.TraineeAddParams{Name: "Bob", ID: "7"})
	if resp.Error == nil || resp.Error.Code != jsonrpc2.CodeInvalidParams {
		t.Errorf("duplicate add error = %+v, want invalid params", resp.Error)
	}

	var list rpc.TraineeListResult
	env.result(env.call("trainee.list", nil), &list)
	if len(list.Trainees) != 1 || list.Trainees[0] != "Bob-7" {
		t.Errorf("trainees = %v, want [Bob-7]", list.Trainees)
	}
}

func TestHandler_MissingParams(t *testing.T) {
	env := authedEnv(t)

	resp := env.call("training.start", nil)
	if resp.Error == nil || resp.Error.Code != jsonrpc2.CodeInvalidParams {
		t.Errorf("error = %+v, want invalid params", resp.Error)
	}
}

func TestHandler_TrainingLifecycle(t *testing.T) {
	env := authedEnv(t)

	sess := env.startTraining()
	if !sess.Active {
		t.Error("expected active session")
	}
	if sess.Folder != filepath.Join(env.root, "Alice-1001", "Approach1") {
		t.Errorf("folder = %q", sess.Folder)
	}

	resp := env.call("training.start", rpc.TrainingStartParams{Trainee: "Alice-1001", Name: "Approach2"})
	if resp.Error == nil || resp.Error.Code != CodeConflict {
		t.Errorf("second start error = %+v, want conflict", resp.Error)
	}

	var st training.Status
	env.result(env.call("training.status", nil), &st)
	if !st.Active || st.Gallery == nil {
		t.Errorf("status = %+v, want active with gallery", st)
	}

	var stopped rpc.TrainingStopResult
	env.result(env.call("training.stop", nil), &stopped)
	if !strings.HasSuffix(stopped.Display, "s") {
		t.Errorf("display = %q", stopped.Display)
	}

	resp = env.call("training.stop", nil)
	if resp.Error == nil || resp.Error.Code != CodeConflict {
		t.Errorf("second stop error = %+v, want conflict", resp.Error)
	}
}

func TestHandler_GalleryComment(t *testing.T) {
	env := authedEnv(t)
	env.startTraining()
	env.capture()

	var snap gallery.Snapshot
	env.result(env.call("gallery.list", nil), &snap)
	if len(snap.Images) != 1 {
		t.Fatalf("images = %d, want 1", len(snap.Images))
	}
	name := snap.Images[0].Name

	var res rpc.ImageResult
	env.result(env.call("gallery.comment", rpc.CommentParams{Name: name, Text: "good clearance"}), &res)
	if res.Image.Comment != "good clearance" {
		t.Errorf("comment = %q, want %q", res.Image.Comment, "good clearance")
	}

	env.result(env.call("gallery.comment_last", rpc.CommentLastParams{Text: "late flare"}), &res)
	if res.Image.Name != name || res.Image.Comment != "late flare" {
		t.Errorf("comment_last = %+v", res.Image)
	}

	resp := env.call("gallery.comment", rpc.CommentParams{Name: "missing.png", Text: "x"})
	if resp.Error == nil || resp.Error.Code != jsonrpc2.CodeInvalidParams {
		t.Errorf("unknown image error = %+v, want invalid params", resp.Error)
	}
}

func TestHandler_GalleryClose(t *testing.T) {
	env := authedEnv(t)
	env.startTraining()

	resp := env.call("gallery.close", nil)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %s", resp.Error.Message)
	}

	resp = env.call("gallery.list", nil)
	if resp.Error == nil || resp.Error.Code != CodeConflict {
		t.Errorf("list after close error = %+v, want conflict", resp.Error)
	}
}

func TestHandler_DebriefWithoutRemote(t *testing.T) {
	env := authedEnv(t)
	env.startTraining()
	env.capture()

	resp := env.call("debrief.start", nil)
	if resp.Error == nil || resp.Error.Code != CodeConflict {
		t.Errorf("debrief.start error = %+v, want conflict", resp.Error)
	}
}

func TestHandler_EventsSubscribe(t *testing.T) {
	env := authedEnv(t)

	var sub rpc.SubscribeResult
	env.result(env.call("events.subscribe", nil), &sub)
	if !strings.HasPrefix(sub.ID, "ev_") {
		t.Errorf("subscription id = %q", sub.ID)
	}
	if sub.Status.Active {
		t.Error("expected idle status")
	}

	env.startTraining()
	ev := env.notification(watch.MethodTrainingChanged)
	if ev.ID != sub.ID {
		t.Errorf("event id = %q, want %q", ev.ID, sub.ID)
	}

	env.capture()
	ev = env.notification(watch.MethodCaptureMoved)
	data, _ := json.Marshal(ev.Data)
	var img gallery.Image
	json.Unmarshal(data, &img)
	if _, ok := capture.ParseCanonicalName(img.Name); !ok {
		t.Errorf("moved image %q is not canonical", img.Name)
	}

	resp := env.call("events.unsubscribe", rpc.UnsubscribeParams{ID: sub.ID})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %s", resp.Error.Message)
	}
	if env.watcher.HasSubscriptions() {
		t.Error("expected no subscriptions after unsubscribe")
	}

	resp = env.call("events.unsubscribe", rpc.UnsubscribeParams{ID: sub.ID})
	if resp.Error == nil || resp.Error.Code != jsonrpc2.CodeInvalidParams {
		t.Errorf("second unsubscribe error = %+v, want invalid params", resp.Error)
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int64
	}{
		{"missing params", errParamsRequired, jsonrpc2.CodeInvalidParams},
		{"bad params", &paramsError{os.ErrInvalid}, jsonrpc2.CodeInvalidParams},
		{"unknown image", gallery.ErrNotFound, jsonrpc2.CodeInvalidParams},
		{"duplicate trainee", trainee.ErrExists, jsonrpc2.CodeInvalidParams},
		{"already active", training.ErrAlreadyActive, CodeConflict},
		{"no gallery", service.ErrNoGallery, CodeConflict},
		{"debrief inactive", gallery.ErrDebriefInactive, CodeConflict},
		{"other", os.ErrPermission, jsonrpc2.CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := errorCode(tt.err); got != tt.want {
				t.Errorf("errorCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
