// Package mcp exposes the cardiology calculators and worklists as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/cardio-insights-server/internal/service"
)

// Transport types accepted by Run.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Options configures the MCP server identity and transport.
type Options struct {
	Name      string
	Version   string
	Transport string
	HTTPHost  string
	HTTPPort  int
	// ExportDir receives spreadsheets written by export_worklist. Empty disables the tool.
	ExportDir string
}

// Server represents the cardiology MCP server implementation
type Server struct {
	opts        Options
	mcpServer   *mcp.Server
	calculators *service.CalculatorService
	worklists   *service.WorklistService
	logger      *logrus.Logger
	tools       []string
}

// NewServer creates a new MCP server and registers its tools.
func NewServer(opts Options, calculators *service.CalculatorService, worklists *service.WorklistService, logger *logrus.Logger) (*Server, error) {
	if calculators == nil || worklists == nil {
		return nil, errors.New("calculator and worklist services are required")
	}
	if opts.Name == "" {
		opts.Name = "cardio-insights"
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}
	if opts.Transport == "" {
		opts.Transport = TransportStdio
	}

	serverInfo := &mcp.Implementation{
		Name:    opts.Name,
		Version: opts.Version,
	}

	s := &Server{
		opts:        opts,
		mcpServer:   mcp.NewServer(serverInfo, nil),
		calculators: calculators,
		worklists:   worklists,
		logger:      logger,
	}
	s.registerTools()

	s.logger.WithField("tool_count", len(s.tools)).Info("Registered MCP tools")
	return s, nil
}

// Tools returns the registered tool names in registration order.
func (s *Server) Tools() []string {
	out := make([]string, len(s.tools))
	copy(out, s.tools)
	return out
}

// Run serves over the configured transport until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.WithFields(logrus.Fields{
		"name":      s.opts.Name,
		"version":   s.opts.Version,
		"transport": s.opts.Transport,
	}).Info("Starting MCP server")

	switch s.opts.Transport {
	case TransportStdio:
		if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP server failed: %w", err)
		}
		return nil
	case TransportHTTP:
		return s.serveHTTP(ctx)
	default:
		return fmt.Errorf("unsupported transport %q", s.opts.Transport)
	}
}

func (s *Server) serveHTTP(ctx context.Context) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)

	addr := net.JoinHostPort(s.opts.HTTPHost, strconv.Itoa(s.opts.HTTPPort))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("MCP HTTP transport listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("MCP HTTP transport failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
