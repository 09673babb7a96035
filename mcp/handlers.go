package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) handleTraineeList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	trainees, err := s.svc.Trainees()
	if err != nil {
		return errorResult(err), nil
	}
	if trainees == nil {
		trainees = []string{}
	}
	return jsonResult(trainees)
}

func (s *Server) handleTrainingStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.Status(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(st)
}

func (s *Server) handleTrainingStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	traineeName, err := req.RequireString("trainee")
	if err != nil {
		return ValidationError("trainee is required"), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return ValidationError("name is required"), nil
	}

	sess, err := s.svc.StartTraining(ctx, traineeName, name)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(sess)
}

func (s *Server) handleTrainingStop(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.StopTraining(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res)
}

func (s *Server) handleImageList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.svc.Gallery(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(snap)
}

func (s *Server) handleImageComment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return ValidationError("text is required"), nil
	}

	name := req.GetString("name", "")
	if name == "" {
		img, err := s.svc.CommentLast(ctx, text)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(img)
	}

	img, err := s.svc.Comment(ctx, name, text)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(img)
}

func (s *Server) handleDebriefStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.StartDebrief(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res)
}

func (s *Server) handleDebriefLive(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return ValidationError("name is required"), nil
	}
	if err := s.svc.GoLive(ctx, name); err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(`{"success":true}`), nil
}

func (s *Server) handleDebriefEnd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.svc.EndDebrief(ctx); err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(`{"success":true}`), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}
