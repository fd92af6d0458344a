package mcp

import (
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/interview/internal/viewer"
)

// Config contains server configuration.
type Config struct {
	Viewer     Viewer
	Auth       Authenticator
	Authorizer Authorizer
	// LocalRole is granted to every stdio caller.
	LocalRole     string
	TransportMode string // "stdio" or "http"
	Info          viewer.Info
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "interview",
		Version: cfg.Info.Version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	// Stdio callers are the local process owner; HTTP callers present API keys.
	principal := authMiddleware(cfg.Auth)
	if cfg.TransportMode == "stdio" {
		principal = localMiddleware(cfg.LocalRole)
	}
	server.AddReceivingMiddleware(requestIDMiddleware(), principal, trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, &toolset{viewer: cfg.Viewer, authz: cfg.Authorizer, info: cfg.Info})

	return server
}
