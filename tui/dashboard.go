// Package tui implements the Bubble Tea dashboard that dials the TapService
// gRPC server and renders captured events as they arrive, with an Explain
// drill-down on the currently selected row.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/mickamy/sql-tap-proxy/event"
	tapv1 "github.com/mickamy/sql-tap-proxy/gen/tap/v1"
)

const maxRows = 500

// eventMsg wraps one Event received from the Watch stream.
type eventMsg event.Event

// streamErrMsg reports a failure reading from (or dialing) the Watch stream.
type streamErrMsg struct{ err error }

// explainResultMsg carries the result of an Explain RPC issued for the
// currently selected row.
type explainResultMsg struct {
	plan string
	err  error
}

// Dashboard is a tea.Model that displays a live, scrolling table of captured
// events with a syntax-highlighted detail pane for the selected row.
type Dashboard struct {
	client tapv1.TapServiceClient
	stream tapv1.TapService_WatchClient

	events []event.Event
	cursor int

	detail     string
	detailBusy bool

	width  int
	height int
	err    error
}

// NewDashboard builds a Dashboard driven by client. client is usually
// produced by tapv1.NewTapServiceClient wrapping a grpc.ClientConn, but
// tests may supply a fake implementing the same interface.
func NewDashboard(client tapv1.TapServiceClient) *Dashboard {
	return &Dashboard{client: client}
}

// Init dials the Watch stream.
func (d *Dashboard) Init() tea.Cmd {
	return d.connect
}

func (d *Dashboard) connect() tea.Msg {
	stream, err := d.client.Watch(context.Background(), &tapv1.WatchRequest{})
	if err != nil {
		return streamErrMsg{err: err}
	}
	d.stream = stream
	return d.recvNext()
}

func (d *Dashboard) recvNext() tea.Msg {
	resp, err := d.stream.Recv()
	if err != nil {
		return streamErrMsg{err: err}
	}
	return eventMsg(fromProto(resp.GetEvent()))
}

func (d *Dashboard) recvNextCmd() tea.Msg {
	return d.recvNext()
}

func (d *Dashboard) explainSelected() tea.Msg {
	if d.cursor < 0 || d.cursor >= len(d.events) {
		return explainResultMsg{err: fmt.Errorf("tui: no row selected")}
	}
	selected := d.events[d.cursor]

	resp, err := d.client.Explain(context.Background(), &tapv1.ExplainRequest{
		Query:   selected.Query,
		Args:    selected.Args,
		Analyze: false,
	})
	if err != nil {
		return explainResultMsg{err: err}
	}
	return explainResultMsg{plan: resp.GetPlan()}
}

// Update implements tea.Model.
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		d.width, d.height = m.Width, m.Height
		return d, nil

	case tea.KeyMsg:
		switch m.String() {
		case "ctrl+c", "q":
			return d, tea.Quit
		case "up", "k":
			if d.cursor > 0 {
				d.cursor--
			}
		case "down", "j":
			if d.cursor < len(d.events)-1 {
				d.cursor++
			}
		case "e":
			d.detailBusy = true
			return d, d.explainSelected
		}
		return d, nil

	case eventMsg:
		ev := event.Event(m)
		d.events = append(d.events, ev)
		if len(d.events) > maxRows {
			d.events = d.events[len(d.events)-maxRows:]
			if d.cursor > 0 {
				d.cursor--
			}
		}
		if d.cursor == len(d.events)-2 || len(d.events) == 1 {
			d.cursor = len(d.events) - 1
		}
		return d, d.recvNextCmd

	case streamErrMsg:
		d.err = m.err
		return d, nil

	case explainResultMsg:
		d.detailBusy = false
		if m.err != nil {
			d.detail = fmt.Sprintf("explain failed: %v", m.err)
			return d, nil
		}
		d.detail = highlight(m.plan)
		return d, nil
	}

	return d, nil
}

// View implements tea.Model.
func (d *Dashboard) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-12s %-8s %-10s %-8s %s", "TIME", "OP", "DURATION", "ROWS", "QUERY")))
	b.WriteString("\n")

	start := 0
	visible := d.height - 8
	if visible < 5 {
		visible = 5
	}
	if len(d.events) > visible {
		start = len(d.events) - visible
	}

	for i := start; i < len(d.events); i++ {
		ev := d.events[i]
		line := formatRow(ev)
		switch {
		case i == d.cursor:
			b.WriteString(selectedRowStyle.Render(line))
		case ev.Error != "":
			b.WriteString(errRowStyle.Render(line))
		default:
			b.WriteString(rowStyle.Render(line))
		}
		b.WriteString("\n")
	}

	if d.err != nil {
		b.WriteString(errRowStyle.Render(fmt.Sprintf("stream error: %v", d.err)))
		b.WriteString("\n")
	}

	if d.cursor >= 0 && d.cursor < len(d.events) {
		selected := d.events[d.cursor]
		body := highlight(selected.Query)
		if d.detailBusy {
			body = "running explain..."
		} else if d.detail != "" {
			body = d.detail
		}
		// chroma's output carries ANSI escapes, so wrap by display width
		// rather than byte length to keep the pane from bleeding past the
		// terminal edge.
		body = ansi.Wordwrap(body, d.paneWidth()-2, "")
		b.WriteString(detailBorderStyle.Width(d.paneWidth()).Render(body))
		b.WriteString("\n")
	}

	b.WriteString(statusStyle.Render(fmt.Sprintf("%d events captured", len(d.events))))
	b.WriteString("  ")
	b.WriteString(helpStyle.Render("↑/↓ select · e explain · q quit"))

	return b.String()
}

func (d *Dashboard) paneWidth() int {
	if d.width <= 4 {
		return 76
	}
	return d.width - 4
}

func formatRow(ev event.Event) string {
	query := strings.ReplaceAll(ev.Query, "\n", " ")
	if len(query) > 60 {
		query = query[:57] + "..."
	}
	return fmt.Sprintf("%-12s %-8s %-10s %-8d %s",
		ev.StartTime.Format("15:04:05.000"),
		ev.Op.String(),
		ev.Duration.Truncate(time.Microsecond).String(),
		ev.RowsAffected,
		query,
	)
}

func fromProto(e *tapv1.Event) event.Event {
	return event.Event{
		ID:           e.GetId(),
		Op:           event.Op(e.GetOp()),
		Query:        e.GetQuery(),
		Args:         e.GetArgs(),
		StartTime:    time.Unix(0, e.GetStartTimeUnixNano()),
		Duration:     time.Duration(e.GetDurationNanos()),
		RowsAffected: e.GetRowsAffected(),
		Error:        e.GetError(),
		TxID:         e.GetTxId(),
	}
}
