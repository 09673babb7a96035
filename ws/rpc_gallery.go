package ws

import (
	"context"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/traineemgr/server/gallery"
	"github.com/traineemgr/server/rpc"
)

func (h *rpcMethodHandler) handleGalleryList(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	return h.svc.Gallery(ctx)
}

// handleGalleryRefresh replies with the rescanned listing. A corrupt sidecar
// still fails the request.
func (h *rpcMethodHandler) handleGalleryRefresh(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	snap, err := h.svc.RefreshGallery(ctx)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (h *rpcMethodHandler) imageName(req *jsonrpc2.Request) (string, error) {
	var params rpc.ImageParams
	if err := unmarshalParams(req, &params); err != nil {
		return "", err
	}
	if params.Name == "" {
		return "", gallery.ErrNotFound
	}
	return params.Name, nil
}

func (h *rpcMethodHandler) handleGalleryComment(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params rpc.CommentParams
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}
	img, err := h.svc.Comment(ctx, params.Name, params.Text)
	if err != nil {
		return nil, err
	}
	return rpc.ImageResult{Image: img}, nil
}

func (h *rpcMethodHandler) handleGalleryCommentLast(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params rpc.CommentLastParams
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}
	img, err := h.svc.CommentLast(ctx, params.Text)
	if err != nil {
		return nil, err
	}
	return rpc.ImageResult{Image: img}, nil
}

func (h *rpcMethodHandler) handleGalleryDelete(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	name, err := h.imageName(req)
	if err != nil {
		return nil, err
	}
	return nil, h.svc.Delete(ctx, name)
}

func (h *rpcMethodHandler) handleGalleryClick(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	name, err := h.imageName(req)
	if err != nil {
		return nil, err
	}
	return nil, h.svc.Click(ctx, name)
}

func (h *rpcMethodHandler) handleGalleryDoubleClick(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	name, err := h.imageName(req)
	if err != nil {
		return nil, err
	}
	return nil, h.svc.DoubleClick(ctx, name)
}

func (h *rpcMethodHandler) handleGalleryClose(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	return nil, h.svc.CloseGallery(ctx)
}

func (h *rpcMethodHandler) handleDebriefStart(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	res, err := h.svc.StartDebrief(ctx)
	if err != nil {
		return nil, err
	}
	return rpc.DebriefStartResult{Link: res.Link, Images: res.Images}, nil
}

func (h *rpcMethodHandler) handleDebriefEnd(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	return nil, h.svc.EndDebrief(ctx)
}

func (h *rpcMethodHandler) handleDebriefUpload(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	name, err := h.imageName(req)
	if err != nil {
		return nil, err
	}
	return nil, h.svc.Upload(ctx, name)
}

func (h *rpcMethodHandler) handleDebriefLive(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	name, err := h.imageName(req)
	if err != nil {
		return nil, err
	}
	return nil, h.svc.GoLive(ctx, name)
}
