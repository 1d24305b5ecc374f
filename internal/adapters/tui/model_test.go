package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kirillkom/medbrief/internal/core/domain"
	"github.com/kirillkom/medbrief/internal/core/ports"
)

type viewFake struct {
	mu       sync.Mutex
	onChange func(domain.Snapshot)
	inputs   []domain.Input
	resets   int
	closed   bool
	err      error
}

func (v *viewFake) Submit(_ context.Context, input domain.Input) error {
	v.mu.Lock()
	v.inputs = append(v.inputs, input)
	v.mu.Unlock()
	return v.err
}

func (v *viewFake) Snapshot() domain.Snapshot { return domain.Snapshot{} }

func (v *viewFake) Wait(context.Context) (domain.Snapshot, error) { return domain.Snapshot{}, nil }

func (v *viewFake) Reset() { v.resets++ }

func (v *viewFake) Close() { v.closed = true }

type factoryFake struct {
	view *viewFake
}

func (f *factoryFake) NewView(onChange func(domain.Snapshot)) ports.SubmissionView {
	f.view.onChange = onChange
	return f.view
}

func newTestModel(t *testing.T) (*Model, *viewFake) {
	t.Helper()
	view := &viewFake{}
	m := New(&factoryFake{view: view})
	t.Cleanup(m.shutdown)
	return m, view
}

func typeText(m *Model, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func TestSubmitSendsTextInput(t *testing.T) {
	m, view := newTestModel(t)
	typeText(m, "aspirin")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if cmd == nil {
		t.Fatalf("expected submit command")
	}
	msg := cmd()
	if done, ok := msg.(submitDoneMsg); !ok || done.err != nil {
		t.Fatalf("unexpected message %#v", msg)
	}
	if len(view.inputs) != 1 {
		t.Fatalf("expected one submission, got %d", len(view.inputs))
	}
	if got := view.inputs[0]; got.Mode != domain.InputModeText || got.Text != "aspirin" {
		t.Fatalf("unexpected input %+v", got)
	}
}

func TestSubmitReadsPDFPath(t *testing.T) {
	m, view := newTestModel(t)
	m.readFile = func(path string) ([]byte, error) {
		if path != "/tmp/lab.pdf" {
			t.Fatalf("unexpected path %s", path)
		}
		return []byte("%PDF-1.4"), nil
	}
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.mode != domain.InputModeFile {
		t.Fatalf("expected file mode after tab")
	}
	typeText(m, "/tmp/lab.pdf")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	cmd()
	in := view.inputs[0]
	if in.Mode != domain.InputModeFile || in.File == nil || in.File.Name != "lab.pdf" {
		t.Fatalf("unexpected input %+v", in)
	}
}

func TestSubmitReportsUnreadableFile(t *testing.T) {
	m, view := newTestModel(t)
	m.readFile = func(string) ([]byte, error) { return nil, errors.New("no such file") }
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	typeText(m, "/missing.pdf")

	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS}); cmd != nil {
		t.Fatalf("expected no command for unreadable file")
	}
	if len(view.inputs) != 0 {
		t.Fatalf("expected no submission")
	}
	if !strings.Contains(m.View(), "cannot read /missing.pdf") {
		t.Fatalf("expected notice in view:\n%s", m.View())
	}
}

func TestSnapshotsDriveTheScreen(t *testing.T) {
	m, view := newTestModel(t)
	m.renderer = nil

	go view.onChange(domain.Snapshot{Phase: domain.PhaseSubmitting, RecordID: "rec-1"})
	msg := m.waitForSnapshot()()
	m.Update(msg)
	if out := m.View(); !strings.Contains(out, "Summarizing") || !strings.Contains(out, "rec-1") {
		t.Fatalf("expected loading screen:\n%s", out)
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS}); cmd != nil {
		t.Fatalf("submit must be ignored while loading")
	}

	go view.onChange(domain.Snapshot{Phase: domain.PhaseResult, RecordID: "rec-1", Result: "Take with food"})
	m.Update(m.waitForSnapshot()())
	if out := m.View(); !strings.Contains(out, "Take with food") {
		t.Fatalf("expected rendered result:\n%s", out)
	}

	go view.onChange(domain.Snapshot{Phase: domain.PhaseError, Error: "Processing failed"})
	m.Update(m.waitForSnapshot()())
	if out := m.View(); !strings.Contains(out, "Processing failed") {
		t.Fatalf("expected error screen:\n%s", out)
	}
}

func TestSubmitErrorWithoutSnapshotBecomesNotice(t *testing.T) {
	m, _ := newTestModel(t)
	m.Update(submitDoneMsg{err: domain.NewUserError(domain.ErrUnauthorized, "Sign in first", nil)})
	if !strings.Contains(m.View(), "Sign in first") {
		t.Fatalf("expected notice:\n%s", m.View())
	}
}

func TestResetAndQuit(t *testing.T) {
	m, view := newTestModel(t)
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	if view.resets != 1 {
		t.Fatalf("expected reset, got %d", view.resets)
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected quit message")
	}
	if !view.closed {
		t.Fatalf("expected view to be closed")
	}
	if msg := m.waitForSnapshot()(); msg != nil {
		t.Fatalf("expected nil after shutdown, got %#v", msg)
	}
}

func TestSnapshotDeliveryNeverBlocks(t *testing.T) {
	m, view := newTestModel(t)

	sent := make(chan struct{})
	go func() {
		defer close(sent)
		for i := 0; i < 3*cap(m.updates); i++ {
			view.onChange(domain.Snapshot{Phase: domain.PhaseSubmitting, RecordID: fmt.Sprintf("rec-%d", i)})
		}
		view.onChange(domain.Snapshot{Phase: domain.PhaseResult, Result: "latest"})
	}()
	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatalf("change callback blocked with nobody reading")
	}

	var last domain.Snapshot
	for len(m.updates) > 0 {
		last = domain.Snapshot(m.waitForSnapshot()().(snapshotMsg))
	}
	if last.Phase != domain.PhaseResult || last.Result != "latest" {
		t.Fatalf("expected the latest snapshot to survive, got %+v", last)
	}
}
