package mcpadapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/medbrief/internal/core/domain"
	"github.com/kirillkom/medbrief/internal/core/ports"
)

type viewFake struct {
	inputs []domain.Input
	final  domain.Snapshot
	closed bool
}

func (v *viewFake) Submit(_ context.Context, input domain.Input) error {
	v.inputs = append(v.inputs, input)
	return nil
}

func (v *viewFake) Snapshot() domain.Snapshot { return v.final }

func (v *viewFake) Wait(context.Context) (domain.Snapshot, error) { return v.final, nil }

func (v *viewFake) Reset() {}

func (v *viewFake) Close() { v.closed = true }

type factoryFake struct {
	view *viewFake
}

func (f *factoryFake) NewView(func(domain.Snapshot)) ports.SubmissionView { return f.view }

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = toolSummarize
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(res.Content))
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content %T", res.Content[0])
	}
	return text.Text
}

func TestSummarizeReturnsResult(t *testing.T) {
	view := &viewFake{final: domain.Snapshot{Phase: domain.PhaseResult, Result: "Key points"}}
	h := NewHandler(&factoryFake{view: view}, time.Second)

	res, err := h.Summarize(context.Background(), callRequest(map[string]any{"input": "https://example.com/guideline"}))
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if res.IsError || resultText(t, res) != "Key points" {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := view.inputs[0]; got.Mode != domain.InputModeText || got.Text != "https://example.com/guideline" {
		t.Fatalf("unexpected input %+v", got)
	}
	if !view.closed {
		t.Fatalf("expected view to be closed")
	}
}

func TestSummarizeReadsPDF(t *testing.T) {
	view := &viewFake{final: domain.Snapshot{Phase: domain.PhaseResult, Result: "ok"}}
	h := NewHandler(&factoryFake{view: view}, 0)
	h.readFile = func(string) ([]byte, error) { return []byte("%PDF"), nil }

	if _, err := h.Summarize(context.Background(), callRequest(map[string]any{"file_path": "/data/labs.pdf"})); err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	in := view.inputs[0]
	if in.Mode != domain.InputModeFile || in.File.Name != "labs.pdf" {
		t.Fatalf("unexpected input %+v", in)
	}
}

func TestSummarizeToolErrors(t *testing.T) {
	cases := []struct {
		name  string
		args  map[string]any
		final domain.Snapshot
		read  error
		want  string
	}{
		{
			name: "both inputs",
			args: map[string]any{"input": "a", "file_path": "/b.pdf"},
			want: "pass either input or file_path, not both",
		},
		{
			name: "unreadable file",
			args: map[string]any{"file_path": "/b.pdf"},
			read: errors.New("permission denied"),
			want: "read /b.pdf: permission denied",
		},
		{
			name:  "remote failure",
			args:  map[string]any{"input": "text"},
			final: domain.Snapshot{Phase: domain.PhaseError, Error: "Summary generation failed"},
			want:  "Summary generation failed",
		},
		{
			name:  "validation",
			args:  map[string]any{"input": ""},
			final: domain.Snapshot{Phase: domain.PhaseIdle, Error: "Enter some text"},
			want:  "Enter some text",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(&factoryFake{view: &viewFake{final: tc.final}}, 0)
			h.readFile = func(string) ([]byte, error) { return nil, tc.read }

			res, err := h.Summarize(context.Background(), callRequest(tc.args))
			if err != nil {
				t.Fatalf("Summarize() error = %v", err)
			}
			if !res.IsError || resultText(t, res) != tc.want {
				t.Fatalf("unexpected result %+v", res)
			}
		})
	}
}

func TestNewServerRegistersTool(t *testing.T) {
	s := NewServer("medbrief", "test", NewHandler(&factoryFake{view: &viewFake{}}, 0))
	if s == nil {
		t.Fatalf("expected server")
	}
}
