// Package ws serves the JSON-RPC 2.0 control surface over WebSocket.
package ws

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/traineemgr/server/logger"
	"github.com/traineemgr/server/rpc"
	"github.com/traineemgr/server/service"
	"github.com/traineemgr/server/watch"
)

const writeTimeout = 10 * time.Second

type Config struct {
	Token       string
	Version     string
	DevMode     bool
	TraineeRoot string
	Remote      bool
}

// RPCHandler handles JSON-RPC 2.0 over WebSocket.
type RPCHandler struct {
	cfg     Config
	svc     *service.Service
	watcher *watch.EventWatcher
}

func NewRPCHandler(cfg Config, svc *service.Service, watcher *watch.EventWatcher) *RPCHandler {
	return &RPCHandler{cfg: cfg, svc: svc, watcher: watcher}
}

func (h *RPCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: h.cfg.DevMode,
	})
	if err != nil {
		slog.Error("failed to accept websocket", "error", err)
		return
	}

	h.handleConnection(r.Context(), conn)
}

func (h *RPCHandler) handleConnection(ctx context.Context, wsConn *websocket.Conn) {
	stream := newWebSocketStream(wsConn)
	connID := uuid.Must(uuid.NewV7()).String()
	h.HandleStream(ctx, stream, connID)
}

// HandleStream serves one JSON-RPC connection until it disconnects.
func (h *RPCHandler) HandleStream(ctx context.Context, stream jsonrpc2.ObjectStream, connID string) {
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r, "websocket connection crashed", "connId", connID)
		}
	}()

	log := slog.With("connId", connID)
	log.Info("new connection")

	state := &rpcConnState{connID: connID, subscriptions: make(map[string]struct{})}
	handler := &rpcMethodHandler{RPCHandler: h, state: state, log: log}

	rpcConn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.AsyncHandler(handler))
	state.setConn(rpcConn)

	<-rpcConn.DisconnectNotify()

	state.cleanup(h.watcher)
	log.Info("connection closed")
}

// rpcConnState tracks per-connection state.
type rpcConnState struct {
	mu            sync.Mutex
	connID        string
	notifier      *JSONRPCNotifier
	subscriptions map[string]struct{}
}

func (s *rpcConnState) setConn(conn *jsonrpc2.Conn) {
	s.mu.Lock()
	s.notifier = &JSONRPCNotifier{conn: conn}
	s.mu.Unlock()
}

func (s *rpcConnState) getNotifier() watch.Notifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifier
}

func (s *rpcConnState) trackSubscription(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[id] = struct{}{}
}

func (s *rpcConnState) untrackSubscription(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscriptions[id]; !ok {
		return false
	}
	delete(s.subscriptions, id)
	return true
}

func (s *rpcConnState) cleanup(watcher *watch.EventWatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.subscriptions {
		watcher.Unsubscribe(id)
	}
	s.subscriptions = nil
}

type rpcMethodHandler struct {
	*RPCHandler
	state         *rpcConnState
	log           *slog.Logger
	authenticated bool
	authMu        sync.Mutex
}

type methodFunc func(h *rpcMethodHandler, ctx context.Context, req *jsonrpc2.Request) (any, error)

var methods = map[string]methodFunc{
	"trainee.list":         (*rpcMethodHandler).handleTraineeList,
	"trainee.add":          (*rpcMethodHandler).handleTraineeAdd,
	"training.start":       (*rpcMethodHandler).handleTrainingStart,
	"training.stop":        (*rpcMethodHandler).handleTrainingStop,
	"training.status":      (*rpcMethodHandler).handleTrainingStatus,
	"gallery.list":         (*rpcMethodHandler).handleGalleryList,
	"gallery.refresh":      (*rpcMethodHandler).handleGalleryRefresh,
	"gallery.comment":      (*rpcMethodHandler).handleGalleryComment,
	"gallery.comment_last": (*rpcMethodHandler).handleGalleryCommentLast,
	"gallery.delete":       (*rpcMethodHandler).handleGalleryDelete,
	"gallery.click":        (*rpcMethodHandler).handleGalleryClick,
	"gallery.double_click": (*rpcMethodHandler).handleGalleryDoubleClick,
	"gallery.close":        (*rpcMethodHandler).handleGalleryClose,
	"debrief.start":        (*rpcMethodHandler).handleDebriefStart,
	"debrief.end":          (*rpcMethodHandler).handleDebriefEnd,
	"debrief.upload":       (*rpcMethodHandler).handleDebriefUpload,
	"debrief.live":         (*rpcMethodHandler).handleDebriefLive,
	"events.subscribe":     (*rpcMethodHandler).handleEventsSubscribe,
	"events.unsubscribe":   (*rpcMethodHandler).handleEventsUnsubscribe,
}

func (h *rpcMethodHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r, "rpc handler panic", "method", req.Method, "connId", h.state.connID)
			h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInternalError, "internal error")
		}
	}()

	h.log.Debug("received request", "method", req.Method, "id", req.ID)

	// Auth must be the first request
	if !h.isAuthenticated() {
		if req.Method != "auth" {
			h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidRequest, "first request must be auth")
			conn.Close()
			return
		}
		h.handleAuth(ctx, conn, req)
		return
	}

	fn, ok := methods[req.Method]
	if !ok {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeMethodNotFound, "method not found: "+req.Method)
		return
	}

	result, err := fn(h, ctx, req)
	if err != nil {
		code, message := errorCode(err)
		if code == jsonrpc2.CodeInternalError {
			h.log.Error("request failed", "method", req.Method, "error", err)
		} else {
			h.log.Debug("request rejected", "method", req.Method, "error", err)
		}
		h.replyError(ctx, conn, req.ID, code, message)
		return
	}
	if req.Notif {
		return
	}
	if result == nil {
		result = struct{}{}
	}
	if err := conn.Reply(ctx, req.ID, result); err != nil {
		h.log.Error("failed to send response", "method", req.Method, "error", err)
	}
}

func (h *rpcMethodHandler) isAuthenticated() bool {
	h.authMu.Lock()
	defer h.authMu.Unlock()
	return h.authenticated
}

func (h *rpcMethodHandler) setAuthenticated() {
	h.authMu.Lock()
	h.authenticated = true
	h.authMu.Unlock()
}

func (h *rpcMethodHandler) handleAuth(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params rpc.AuthParams
	if err := unmarshalParams(req, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		conn.Close()
		return
	}

	if subtle.ConstantTimeCompare([]byte(params.Token), []byte(h.cfg.Token)) != 1 {
		h.log.Warn("invalid auth token")
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidRequest, "invalid token")
		conn.Close()
		return
	}

	h.setAuthenticated()
	h.log.Info("authenticated")

	result := rpc.AuthResult{
		Version:     h.cfg.Version,
		TraineeRoot: h.cfg.TraineeRoot,
		Remote:      h.cfg.Remote,
	}
	if err := conn.Reply(ctx, req.ID, result); err != nil {
		h.log.Error("failed to send auth response", "error", err)
	}
}

func (h *rpcMethodHandler) replyError(ctx context.Context, conn *jsonrpc2.Conn, id jsonrpc2.ID, code int64, message string) {
	err := &jsonrpc2.Error{
		Code:    code,
		Message: message,
	}
	if replyErr := conn.ReplyWithError(ctx, id, err); replyErr != nil {
		h.log.Error("failed to send error response", "error", replyErr)
	}
}

var errParamsRequired = errors.New("params required")

func unmarshalParams(req *jsonrpc2.Request, v any) error {
	if req.Params == nil {
		return errParamsRequired
	}
	if err := json.Unmarshal(*req.Params, v); err != nil {
		return &paramsError{err}
	}
	return nil
}

// JSONRPCNotifier sends watch notifications on one connection.
type JSONRPCNotifier struct {
	conn *jsonrpc2.Conn
}

var _ watch.Notifier = (*JSONRPCNotifier)(nil)

func (n *JSONRPCNotifier) Notify(ctx context.Context, notif watch.Notification) error {
	return n.conn.Notify(ctx, notif.Method, notif.Params)
}

// webSocketStream adapts coder/websocket to jsonrpc2.ObjectStream.
type webSocketStream struct {
	conn *websocket.Conn
	mu   sync.Mutex // protects writes
}

func newWebSocketStream(conn *websocket.Conn) *webSocketStream {
	return &webSocketStream{conn: conn}
}

func (s *webSocketStream) ReadObject(v any) error {
	_, data, err := s.conn.Read(context.Background())
	if err != nil {
		// Treat normal close frames as EOF so jsonrpc2 shuts down gracefully
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return io.EOF
		}
		return err
	}
	return json.Unmarshal(data, v)
}

// WriteObject bounds each write so a stalled client cannot block event
// delivery to the other connections.
func (s *webSocketStream) WriteObject(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Write(ctx, websocket.MessageText, data)
}

func (s *webSocketStream) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}

var _ jsonrpc2.ObjectStream = (*webSocketStream)(nil)
