// Package postgres implements a proxy.Handler that observes PostgreSQL
// wire-protocol traffic and emits events describing it, without ever
// altering the bytes it sees.
package postgres

import (
	"errors"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	pgproto "github.com/jackc/pgproto3/v2"

	"github.com/mickamy/sql-tap-proxy/broker"
	"github.com/mickamy/sql-tap-proxy/event"
	"github.com/mickamy/sql-tap-proxy/proxy"
)

// maxPendingDecodeBytes bounds how much undecoded data a session's pushReader
// may accumulate before the handler gives up decoding that session; beyond
// this, something is sending bytes the decoder doesn't understand (or a
// previous decode error desynced it), and retrying forever would leak
// memory for no benefit since passthrough is never gated on decoding.
const maxPendingDecodeBytes = 1 << 20

// Handler decodes PostgreSQL wire traffic observed by the core event loop
// and publishes Events describing it to a Broker. It always returns
// []proxy.Action{proxy.CopyAsIs{}}: it is a pure observer, never a relay.
type Handler struct {
	broker *broker.Broker
	logger *log.Logger

	// sessions is only ever touched from the loop goroutine that calls
	// HandleUpstreamData/HandleDownstreamData/Closed, so it needs no lock.
	sessions map[proxy.SessionKey]*sessionState
}

// NewHandler returns a Handler that publishes every captured Event to b.
func NewHandler(b *broker.Broker, logger *log.Logger) *Handler {
	return &Handler{
		broker:   b,
		logger:   logger,
		sessions: make(map[proxy.SessionKey]*sessionState),
	}
}

// Closed releases the decode state kept for a session once the core loop
// has torn it down. Wire this up via proxy.WithSessionClosedHook.
func (h *Handler) Closed(key proxy.SessionKey) {
	delete(h.sessions, key)
}

type sessionState struct {
	clientReader   pushReader
	upstreamReader pushReader

	backend  *pgproto.Backend
	frontend *pgproto.Frontend

	startupDone   bool
	readyForQuery bool
	decodeStalled bool

	preparedStmts map[string]string
	lastParse     string
	lastBindStmt  string
	lastBindArgs  []string

	pending    *event.Event
	activeTxID string
	nextID     uint64
}

func newSessionState() *sessionState {
	st := &sessionState{preparedStmts: make(map[string]string)}
	st.backend = pgproto.NewBackend(pgproto.NewChunkReader(&st.clientReader), io.Discard)
	st.frontend = pgproto.NewFrontend(pgproto.NewChunkReader(&st.upstreamReader), io.Discard)
	return st
}

func (h *Handler) stateFor(key proxy.SessionKey) *sessionState {
	st, ok := h.sessions[key]
	if !ok {
		st = newSessionState()
		h.sessions[key] = st
	}
	return st
}

func (h *Handler) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}

// HandleDownstreamData observes bytes the client sent toward upstream.
func (h *Handler) HandleDownstreamData(sess proxy.Session, data []byte) []proxy.Action {
	st := h.stateFor(sess.Key)
	h.observe(st, &st.clientReader, data, sess.Key, func() {
		if !st.startupDone {
			h.decodeStartup(st)
			return
		}
		if st.readyForQuery {
			h.decodeClient(st, sess.Key)
		}
	})
	return []proxy.Action{proxy.CopyAsIs{}}
}

// HandleUpstreamData observes bytes upstream sent toward the client.
func (h *Handler) HandleUpstreamData(sess proxy.Session, data []byte) []proxy.Action {
	st := h.stateFor(sess.Key)
	h.observe(st, &st.upstreamReader, data, sess.Key, func() {
		h.decodeUpstream(st, sess.Key)
	})
	return []proxy.Action{proxy.CopyAsIs{}}
}

// observe pushes data into reader and invokes decode unless this session's
// decoder has already been given up on (DecodeStalled).
func (h *Handler) observe(st *sessionState, reader *pushReader, data []byte, key proxy.SessionKey, decode func()) {
	if st.decodeStalled {
		return
	}
	reader.push(data)
	if reader.pending() > maxPendingDecodeBytes {
		h.logf("postgres: session %d: %d bytes undecoded, giving up on this session's decode", key, reader.pending())
		st.decodeStalled = true
		st.clientReader.reset()
		st.upstreamReader.reset()
		return
	}
	decode()
}

// decodeStartup consumes exactly the client's StartupMessage, the one frame
// pgproto3.Backend.Receive cannot parse on its own.
func (h *Handler) decodeStartup(st *sessionState) {
	if _, err := st.backend.ReceiveStartupMessage(); err != nil {
		if errors.Is(err, io.ErrNoProgress) {
			return
		}
		// Malformed startup: nothing sensible to capture, stop trying.
		st.decodeStalled = true
		return
	}
	st.startupDone = true
}

// decodeUpstream drains as many BackendMessages as are currently buffered,
// capturing CommandComplete/ErrorResponse and watching for the first
// ReadyForQuery that marks the end of the startup/auth handshake.
func (h *Handler) decodeUpstream(st *sessionState, key proxy.SessionKey) {
	for {
		msg, err := st.frontend.Receive()
		if err != nil {
			if errors.Is(err, io.ErrNoProgress) {
				return
			}
			st.decodeStalled = true
			return
		}

		switch m := msg.(type) {
		case *pgproto.ReadyForQuery:
			st.readyForQuery = true
		case *pgproto.CommandComplete:
			h.completeEvent(st, key, parseRowsAffected(string(m.CommandTag)), "")
		case *pgproto.ErrorResponse:
			h.completeEvent(st, key, 0, m.Message)
		}
	}
}

// decodeClient drains as many FrontendMessages as are currently buffered,
// capturing Query/Parse/Bind/Execute.
func (h *Handler) decodeClient(st *sessionState, key proxy.SessionKey) {
	for {
		msg, err := st.backend.Receive()
		if err != nil {
			if errors.Is(err, io.ErrNoProgress) {
				return
			}
			st.decodeStalled = true
			return
		}

		switch m := msg.(type) {
		case *pgproto.Query:
			h.handleSimpleQuery(st, key, m)
		case *pgproto.Parse:
			h.handleParse(st, m)
		case *pgproto.Bind:
			h.handleBind(st, m)
		case *pgproto.Execute:
			h.handleExecute(st, key)
		}
	}
}

func (h *Handler) generateID(st *sessionState) string {
	st.nextID++
	return strconv.FormatUint(st.nextID, 10)
}

func (h *Handler) handleSimpleQuery(st *sessionState, key proxy.SessionKey, m *pgproto.Query) {
	op := detectTxOp(m.String)
	// BEGIN belongs to the transaction it opens; COMMIT/ROLLBACK still belong
	// to the transaction they close.
	txID := st.activeTxID
	h.detectTx(st, op)
	if op == event.OpBegin {
		txID = st.activeTxID
	}

	st.pending = &event.Event{
		ID:         h.generateID(st),
		Op:         op,
		Query:      m.String,
		StartTime:  time.Now(),
		TxID:       txID,
		SessionKey: uint64(key),
	}

	// BEGIN/COMMIT/ROLLBACK never produce a CommandComplete with a
	// meaningful row count worth waiting for; publish immediately so the
	// transaction boundary is visible the moment it's forwarded.
	if op != event.OpQuery {
		h.publish(st)
	}
}

func (h *Handler) handleParse(st *sessionState, m *pgproto.Parse) {
	st.lastParse = m.Query
	if m.Name != "" {
		st.preparedStmts[m.Name] = m.Query
	}
}

func (h *Handler) handleBind(st *sessionState, m *pgproto.Bind) {
	st.lastBindStmt = m.PreparedStatement
	st.lastBindArgs = make([]string, len(m.Parameters))
	for i, p := range m.Parameters {
		st.lastBindArgs[i] = string(p)
	}
}

func (h *Handler) handleExecute(st *sessionState, key proxy.SessionKey) {
	q := st.lastParse
	if st.lastBindStmt != "" {
		if stored, ok := st.preparedStmts[st.lastBindStmt]; ok {
			q = stored
		}
	}
	h.detectTx(st, detectTxOp(q))

	st.pending = &event.Event{
		ID:         h.generateID(st),
		Op:         event.OpExecute,
		Query:      q,
		Args:       st.lastBindArgs,
		StartTime:  time.Now(),
		TxID:       st.activeTxID,
		SessionKey: uint64(key),
	}
}

// completeEvent fills in the outcome of the query/execute currently pending
// on st and publishes it. A CommandComplete/ErrorResponse with no pending
// event (e.g. one belonging to a BEGIN that already published, or a
// notice unrelated to any capture) is simply ignored.
func (h *Handler) completeEvent(st *sessionState, key proxy.SessionKey, rowsAffected int64, errMsg string) {
	if st.pending == nil {
		return
	}
	st.pending.Duration = time.Since(st.pending.StartTime)
	st.pending.RowsAffected = rowsAffected
	st.pending.Error = errMsg
	h.publish(st)
}

func (h *Handler) publish(st *sessionState) {
	if st.pending == nil {
		return
	}
	h.broker.Publish(*st.pending)
	st.pending = nil
}

func (h *Handler) detectTx(st *sessionState, op event.Op) {
	switch op {
	case event.OpBegin:
		st.activeTxID = uuid.New().String()
	case event.OpCommit, event.OpRollback:
		st.activeTxID = ""
	}
}

func detectTxOp(query string) event.Op {
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "BEGIN"), strings.HasPrefix(upper, "START TRANSACTION"):
		return event.OpBegin
	case strings.HasPrefix(upper, "COMMIT"):
		return event.OpCommit
	case strings.HasPrefix(upper, "ROLLBACK"):
		return event.OpRollback
	default:
		return event.OpQuery
	}
}

// parseRowsAffected extracts the row count from a CommandComplete tag, e.g.
// "INSERT 0 5" -> 5, "SELECT 3" -> 3, "UPDATE 10" -> 10.
func parseRowsAffected(tag string) int64 {
	parts := strings.Split(tag, " ")
	if len(parts) == 0 {
		return 0
	}
	n, _ := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	return n
}
