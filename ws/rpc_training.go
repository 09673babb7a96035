package ws

import (
	"context"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/traineemgr/server/rpc"
)

func (h *rpcMethodHandler) handleTraineeList(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	trainees, err := h.svc.Trainees()
	if err != nil {
		return nil, err
	}
	if trainees == nil {
		trainees = []string{}
	}
	return rpc.TraineeListResult{Trainees: trainees}, nil
}

func (h *rpcMethodHandler) handleTraineeAdd(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params rpc.TraineeAddParams
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}
	folder, err := h.svc.AddTrainee(params.Name, params.ID)
	if err != nil {
		return nil, err
	}
	h.log.Info("trainee added", "folder", folder)
	return rpc.TraineeAddResult{Folder: folder}, nil
}

func (h *rpcMethodHandler) handleTrainingStart(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params rpc.TrainingStartParams
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}
	sess, err := h.svc.StartTraining(ctx, params.Trainee, params.Name)
	if err != nil {
		return nil, err
	}
	return rpc.TrainingStartResult{Session: sess}, nil
}

func (h *rpcMethodHandler) handleTrainingStop(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	res, err := h.svc.StopTraining(ctx)
	if err != nil {
		return nil, err
	}
	return rpc.TrainingStopResult{Seconds: res.Seconds, Display: res.Display}, nil
}

func (h *rpcMethodHandler) handleTrainingStatus(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	return h.svc.Status(ctx)
}
