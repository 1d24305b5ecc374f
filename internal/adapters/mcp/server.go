// Package mcpadapter exposes summarization as an MCP tool over stdio.
package mcpadapter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/medbrief/internal/core/domain"
	"github.com/kirillkom/medbrief/internal/core/ports"
)

const toolSummarize = "summarize"

// Handler runs one submission per tool call and returns the summary text.
type Handler struct {
	views    ports.SubmissionViewFactory
	timeout  time.Duration
	readFile func(string) ([]byte, error)
}

func NewHandler(views ports.SubmissionViewFactory, timeout time.Duration) *Handler {
	return &Handler{views: views, timeout: timeout, readFile: os.ReadFile}
}

// NewServer registers the summarize tool on a fresh MCP server.
func NewServer(name, version string, h *Handler) *server.MCPServer {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(false))
	tool := mcp.NewTool(toolSummarize,
		mcp.WithDescription("Summarize clinical text, a web page link or a local PDF file."),
		mcp.WithString("input",
			mcp.Description("Text or an http(s) link to summarize"),
		),
		mcp.WithString("file_path",
			mcp.Description("Absolute path of a PDF file to summarize instead of input"),
		),
	)
	s.AddTool(tool, h.Summarize)
	return s
}

func (h *Handler) Summarize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := h.input(req.GetString("input", ""), req.GetString("file_path", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	view := h.views.NewView(nil)
	defer view.Close()

	submitErr := view.Submit(ctx, input)
	snap, waitErr := view.Wait(ctx)
	switch {
	case snap.Phase == domain.PhaseResult:
		return mcp.NewToolResultText(snap.Result), nil
	case snap.Error != "":
		return mcp.NewToolResultError(snap.Error), nil
	case submitErr != nil:
		return mcp.NewToolResultError(domain.UserMessage(submitErr, "")), nil
	case waitErr != nil:
		return mcp.NewToolResultError(fmt.Sprintf("summary for record %s is still processing", snap.RecordID)), nil
	default:
		return mcp.NewToolResultError("submission did not complete"), nil
	}
}

func (h *Handler) input(text, path string) (domain.Input, error) {
	text, path = strings.TrimSpace(text), strings.TrimSpace(path)
	switch {
	case text != "" && path != "":
		return domain.Input{}, errors.New("pass either input or file_path, not both")
	case path != "":
		data, err := h.readFile(path)
		if err != nil {
			return domain.Input{}, fmt.Errorf("read %s: %w", path, err)
		}
		return domain.Input{
			Mode: domain.InputModeFile,
			File: &domain.FileInput{Name: filepath.Base(path), MimeType: "application/pdf", Data: data},
		}, nil
	default:
		return domain.Input{Mode: domain.InputModeText, Text: text}, nil
	}
}
