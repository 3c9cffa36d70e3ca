package mcptools

import (
	"context"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewMCPServer creates an MCP server with the scan_files, diff_files and
// list_languages tools registered.
func NewMCPServer(svc *Service) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "codelens",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "scan_files",
		Description: "Analyze inline source files. Parses each file with tree-sitter, extracts classes, functions, variables and imports, runs the static analysis rules, and returns findings per file, Mermaid class and sequence diagrams, and a per-language capability report.",
	}, svc.ScanFiles)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "diff_files",
		Description: "Compare a before and an after set of source files. Returns every entity as added, removed, modified or unchanged, findings for the after files, and diagrams annotated with the changes.",
	}, svc.DiffFiles)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_languages",
		Description: "List the supported languages with grammar, extractor and rule availability, and the rule catalogue.",
	}, svc.ListLanguages)

	return server
}

// RunMCPServer starts an HTTP server exposing the MCP tools.
func RunMCPServer(ctx context.Context, svc *Service, addr string) error {
	server := NewMCPServer(svc)

	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Shutdown gracefully when context is cancelled; in-flight scans get
	// the file timeout to finish.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), svc.cfg.FileTimeout+time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			svc.logger.WithError(err).Warn("MCP server shutdown")
		}
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// RunMCPServerStdio runs the MCP server on stdio transport, blocking
// until stdin is closed or the context is cancelled.
func RunMCPServerStdio(ctx context.Context, svc *Service) error {
	return NewMCPServer(svc).Run(ctx, &mcp.StdioTransport{})
}
