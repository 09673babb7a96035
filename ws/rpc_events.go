package ws

import (
	"context"
	"errors"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/traineemgr/server/rpc"
)

var errUnknownSubscription = errors.New("unknown subscription")

func (h *rpcMethodHandler) handleEventsSubscribe(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	st, err := h.svc.Status(ctx)
	if err != nil {
		return nil, err
	}
	id := h.watcher.Subscribe(h.state.getNotifier())
	h.state.trackSubscription(id)
	h.log.Debug("subscribed to events", "watchId", id)
	return rpc.SubscribeResult{ID: id, Status: st}, nil
}

func (h *rpcMethodHandler) handleEventsUnsubscribe(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params rpc.UnsubscribeParams
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}
	if !h.state.untrackSubscription(params.ID) {
		return nil, &paramsError{errUnknownSubscription}
	}
	h.watcher.Unsubscribe(params.ID)
	h.log.Debug("unsubscribed from events", "watchId", params.ID)
	return nil, nil
}
