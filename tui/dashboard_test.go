package tui

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"google.golang.org/grpc"

	"github.com/mickamy/sql-tap-proxy/event"
	tapv1 "github.com/mickamy/sql-tap-proxy/gen/tap/v1"
)

// fakeWatchClient hands back a fixed, then exhausted, sequence of events.
type fakeWatchClient struct {
	grpc.ClientStream
	mu     sync.Mutex
	events []*tapv1.Event
}

func (f *fakeWatchClient) Recv() (*tapv1.WatchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return nil, io.EOF
	}
	ev := f.events[0]
	f.events = f.events[1:]
	return &tapv1.WatchResponse{Event: ev}, nil
}

type fakeClient struct {
	watch        *fakeWatchClient
	explainPlan  string
	explainErr   error
	explainCalls int
}

func (f *fakeClient) Watch(context.Context, *tapv1.WatchRequest, ...grpc.CallOption) (tapv1.TapService_WatchClient, error) {
	return f.watch, nil
}

func (f *fakeClient) Explain(context.Context, *tapv1.ExplainRequest, ...grpc.CallOption) (*tapv1.ExplainResponse, error) {
	f.explainCalls++
	if f.explainErr != nil {
		return nil, f.explainErr
	}
	return &tapv1.ExplainResponse{Plan: f.explainPlan}, nil
}

func TestDashboardAppendsReceivedEvents(t *testing.T) {
	t.Parallel()

	client := &fakeClient{watch: &fakeWatchClient{events: []*tapv1.Event{
		{Id: "1", Op: 0, Query: "SELECT 1"},
		{Id: "2", Op: 1, Query: "UPDATE t SET x = 1", RowsAffected: 3},
	}}}

	d := NewDashboard(client)

	msg := d.Init()()
	em, ok := msg.(eventMsg)
	if !ok {
		t.Fatalf("expected eventMsg, got %T: %v", msg, msg)
	}
	model, cmd := d.Update(em)
	d = model.(*Dashboard)

	if len(d.events) != 1 || d.events[0].ID != "1" {
		t.Fatalf("expected one event with id 1, got %+v", d.events)
	}
	if cmd == nil {
		t.Fatal("expected a follow-up receive command")
	}

	msg2 := cmd()
	em2, ok := msg2.(eventMsg)
	if !ok {
		t.Fatalf("expected second eventMsg, got %T", msg2)
	}
	model, _ = d.Update(em2)
	d = model.(*Dashboard)

	if len(d.events) != 2 || d.events[1].ID != "2" {
		t.Fatalf("expected two events, got %+v", d.events)
	}
	if d.cursor != 1 {
		t.Errorf("expected cursor to follow newest row, got %d", d.cursor)
	}
}

func TestDashboardStreamErrorIsRecorded(t *testing.T) {
	t.Parallel()

	client := &fakeClient{watch: &fakeWatchClient{}}
	d := NewDashboard(client)

	msg := d.Init()()
	if _, ok := msg.(streamErrMsg); !ok {
		t.Fatalf("expected streamErrMsg from an empty stream, got %T", msg)
	}
	model, _ := d.Update(msg)
	d = model.(*Dashboard)

	if d.err == nil {
		t.Error("expected err to be recorded")
	}
}

func TestDashboardNavigationKeys(t *testing.T) {
	t.Parallel()

	d := NewDashboard(&fakeClient{watch: &fakeWatchClient{}})
	d.events = stubEvents(3)
	d.cursor = 0

	model, _ := d.Update(tea.KeyMsg{Type: tea.KeyDown})
	d = model.(*Dashboard)
	if d.cursor != 1 {
		t.Fatalf("expected cursor 1, got %d", d.cursor)
	}

	model, _ = d.Update(tea.KeyMsg{Type: tea.KeyUp})
	d = model.(*Dashboard)
	if d.cursor != 0 {
		t.Fatalf("expected cursor 0, got %d", d.cursor)
	}
}

func TestDashboardQuitsOnQ(t *testing.T) {
	t.Parallel()

	d := NewDashboard(&fakeClient{watch: &fakeWatchClient{}})
	_, cmd := d.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if cmd() != tea.Quit() {
		t.Error("expected tea.Quit message")
	}
}

func TestDashboardExplainPopulatesDetail(t *testing.T) {
	t.Parallel()

	client := &fakeClient{explainPlan: "Seq Scan on t"}
	d := NewDashboard(client)
	d.events = stubEvents(1)
	d.cursor = 0

	_, cmd := d.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")})
	if cmd == nil {
		t.Fatal("expected explain command")
	}
	msg := cmd()
	model, _ := d.Update(msg)
	d = model.(*Dashboard)

	if client.explainCalls != 1 {
		t.Errorf("expected one Explain call, got %d", client.explainCalls)
	}
	if d.detail == "" {
		t.Error("expected detail pane to be populated")
	}
}

func TestDashboardExplainFailurePreserved(t *testing.T) {
	t.Parallel()

	client := &fakeClient{explainErr: errors.New("boom")}
	d := NewDashboard(client)
	d.events = stubEvents(1)
	d.cursor = 0

	_, cmd := d.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")})
	msg := cmd()
	model, _ := d.Update(msg)
	d = model.(*Dashboard)

	if d.detail == "" {
		t.Error("expected an error message in the detail pane")
	}
}

func TestHighlightProducesOutput(t *testing.T) {
	t.Parallel()

	out := highlight("SELECT 1")
	if out == "" {
		t.Error("expected non-empty highlighted output")
	}
}

func stubEvents(n int) []event.Event {
	out := make([]event.Event, n)
	for i := range out {
		out[i] = event.Event{
			ID:        "x",
			Query:     "SELECT 1",
			StartTime: time.Now(),
		}
	}
	return out
}
