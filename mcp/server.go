// Package mcp exposes training control as MCP tools, so an assistant can
// start sessions, annotate captures and drive the debrief.
package mcp

import (
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/traineemgr/server/service"
)

const serverName = "traineemgr"

type Server struct {
	svc *service.Service
	mcp *server.MCPServer
}

func NewServer(svc *service.Service, version string) *Server {
	s := &Server{
		svc: svc,
		mcp: server.NewMCPServer(serverName, version, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s
}

// Handler serves the streamable HTTP transport. Each request stands alone;
// tool state lives in the daemon, not in an MCP session.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp, server.WithStateLess(true))
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("trainee_list",
		mcp.WithDescription("List trainee folders under the trainee root. Use a returned name as the trainee of training_start."),
	), s.handleTraineeList)

	s.mcp.AddTool(mcp.NewTool("training_status",
		mcp.WithDescription("Report whether a training is active, its elapsed time and the open gallery."),
	), s.handleTrainingStatus)

	s.mcp.AddTool(mcp.NewTool("training_start",
		mcp.WithDescription("Start a training for a trainee. New screenshots are moved into <trainee>/<name>/screenshots."),
		mcp.WithString("trainee", mcp.Required(), mcp.Description("Trainee folder name, e.g. Alice-1001")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Training name, used as the session folder")),
	), s.handleTrainingStart)

	s.mcp.AddTool(mcp.NewTool("training_stop",
		mcp.WithDescription("Stop the active training and report its duration. The gallery stays open for the debrief."),
	), s.handleTrainingStop)

	s.mcp.AddTool(mcp.NewTool("image_list",
		mcp.WithDescription("List the images of the open gallery in capture order with their comments and flags."),
	), s.handleImageList)

	s.mcp.AddTool(mcp.NewTool("image_comment",
		mcp.WithDescription("Set the comment of an image. Without name, the most recent capture is annotated. An empty text removes the comment."),
		mcp.WithString("name", mcp.Description("Image file name; defaults to the latest capture")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Comment text")),
	), s.handleImageComment)

	s.mcp.AddTool(mcp.NewTool("debrief_start",
		mcp.WithDescription("Start the debrief: upload every image to the viewer and return its link. Upload results arrive as events."),
	), s.handleDebriefStart)

	s.mcp.AddTool(mcp.NewTool("debrief_live",
		mcp.WithDescription("Show an image on the viewer and mark it discussed."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Image file name")),
	), s.handleDebriefLive)

	s.mcp.AddTool(mcp.NewTool("debrief_end",
		mcp.WithDescription("End the debrief and tell the viewer it is over."),
	), s.handleDebriefEnd)
}
