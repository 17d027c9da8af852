package mcp

import (
	"context"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docstash-cli/internal/core/ports/driving"
)

// Version is the MCP server version.
const Version = "0.1.0"

// DefaultMaxBlobSize caps served binary payloads at 10 MiB unless
// configured otherwise.
const DefaultMaxBlobSize int64 = 10 << 20

// Config holds MCP server configuration.
type Config struct {
	// Library serves the store contents (required).
	Library driving.LibraryService

	// MaxBlobSize caps served binary payloads in bytes. Zero uses
	// DefaultMaxBlobSize.
	MaxBlobSize int64
}

// Server is the MCP server for docstash.
type Server struct {
	library     driving.LibraryService
	maxBlobSize int64
	server      *mcp.Server
}

// NewServer creates a new MCP server over the given library.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Library == nil {
		return nil, ErrMissingLibrary
	}
	if cfg.MaxBlobSize <= 0 {
		cfg.MaxBlobSize = DefaultMaxBlobSize
	}

	impl := &mcp.Implementation{
		Name:    "docstash",
		Version: Version,
	}

	s := &Server{
		library:     cfg.Library,
		maxBlobSize: cfg.MaxBlobSize,
		server:      mcp.NewServer(impl, nil),
	}

	s.registerResources()

	return s, nil
}

// Run starts the MCP server over stdio.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP starts the MCP server over HTTP on the specified address.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background()) //nolint:errcheck
	}()

	err := httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
