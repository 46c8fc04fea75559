package proxy

import (
	"errors"
	"fmt"
	"log"

	"github.com/mickamy/sql-tap-proxy/endpoint"
	"github.com/mickamy/sql-tap-proxy/metrics"
	"github.com/mickamy/sql-tap-proxy/proxy/readiness"
)

type command uint8

const (
	cmdContinue command = iota
	cmdBreak
)

// loop is the single-threaded event loop (C5): it owns the listening
// socket, the readiness set, and the session table, and nothing outside its
// own goroutine ever touches them.
type loop struct {
	handler    Handler
	upstream   endpoint.Endpoint
	downstream endpoint.Endpoint

	listenFD   int
	readiness  *readiness.Set
	bufferSize int

	sessions map[SessionKey]*Session
	nextKey  SessionKey

	commands chan command

	onSessionClosed func(SessionKey)

	logger  *log.Logger
	metrics *metrics.Metrics

	fatal error
}

// run is the main cycle: block on Select, drain one command, dispatch every
// ready tag, repeat until BREAK.
func (l *loop) run() {
	defer l.teardown()

	for {
		ready, err := l.readiness.Select()
		if err != nil {
			l.fatal = fmt.Errorf("proxy: select: %w", err)
			return
		}

		select {
		case cmd := <-l.commands:
			if cmd == cmdBreak {
				return
			}
		default:
		}

		for _, r := range ready {
			l.dispatch(r)
		}
	}
}

func (l *loop) dispatch(r readiness.Ready) {
	tag, ok := r.Tag.(intentTag)
	if !ok {
		return
	}

	switch tag.kind {
	case intentAcceptDownstream:
		if r.Readable {
			l.handleAccept()
		}
	case intentReadUpstream:
		if r.Readable {
			l.handleReadSide(tag.key, Upstream)
		}
	case intentReadDownstream:
		if r.Readable {
			l.handleReadSide(tag.key, Downstream)
		}
	case intentWriteUpstream:
		if r.Writable {
			l.handleWriteSide(tag.key, Upstream)
		}
	case intentWriteDownstream:
		if r.Writable {
			l.handleWriteSide(tag.key, Downstream)
		}
	}
}

func (l *loop) teardown() {
	_ = l.readiness.Unregister(l.listenFD)
	closeSocket(l.listenFD)
	_ = l.readiness.Close()
}

func (l *loop) logf(format string, args ...any) {
	if l.logger != nil {
		l.logger.Printf(format, args...)
	}
}

// handleAccept implements the AcceptFromDownstream case: accept one
// downstream connection, open a non-blocking upstream socket and start (but
// do not wait for) its connect, allocate a key, and register both sides for
// READ.
func (l *loop) handleAccept() {
	downFD, err := acceptSocket(l.listenFD)
	if err != nil {
		l.logf("accept: %v", err)
		return
	}

	upFD, err := dialSocket(l.upstream)
	if err != nil {
		l.logf("dial upstream %s: %v", l.upstream, err)
		closeSocket(downFD)
		return
	}

	key := l.nextKey
	l.nextKey++

	sess := &Session{Key: key, upstreamFD: upFD, downstreamFD: downFD}
	l.sessions[key] = sess
	if l.metrics != nil {
		l.metrics.SessionsOpenedTotal.Inc()
	}

	if err := l.readiness.Register(upFD, readiness.Read, intentTag{kind: intentReadUpstream, key: key}); err != nil {
		l.logf("register upstream: %v", err)
	}
	if err := l.readiness.Register(downFD, readiness.Read, intentTag{kind: intentReadDownstream, key: key}); err != nil {
		l.logf("register downstream: %v", err)
	}
}

// handleReadSide implements the ReadFrom{Upstream,Downstream}(key) case.
func (l *loop) handleReadSide(key SessionKey, side Side) {
	sess, ok := l.sessions[key]
	if !ok {
		return
	}

	buf := make([]byte, l.bufferSize)
	n, err := readSocket(sess.fd(side), buf)
	if err != nil || n == 0 {
		l.closeSideOnEOF(sess, side)
		return
	}

	data := append([]byte(nil), buf[:n]...)

	actions, aborted := l.invokeHandler(*sess, side, data)
	if aborted {
		l.logf("handler panic on session %d (%s side): aborting session", key, side)
		l.abortSession(key)
		return
	}

	l.interpret(key, side, data, actions)
	l.maybeRemoveSession(key)
}

// invokeHandler calls the Handler callback matching side, recovering from a
// panic so one misbehaving Handler cannot take down the loop (HandlerError
// policy: abort the session, loop continues).
func (l *loop) invokeHandler(sess Session, side Side, data []byte) (actions []Action, aborted bool) {
	defer func() {
		if r := recover(); r != nil {
			aborted = true
		}
	}()
	if side == Upstream {
		return l.handler.HandleUpstreamData(sess, data), false
	}
	return l.handler.HandleDownstreamData(sess, data), false
}

// closeSideOnEOF implements the recv()==0 half-close rule: side will never
// produce more inbound data, so its read interest is retired, but its fd
// stays open in case a reply already queued for it is still draining. The
// opposite side only needs to hear about the half-close once its own
// queued bytes are flushed — tearing it down outright here would discard a
// reply still in flight.
func (l *loop) closeSideOnEOF(sess *Session, side Side) {
	if *sess.eofFlag(side) {
		return
	}
	*sess.eofFlag(side) = true
	if err := l.readiness.Modify(sess.fd(side), 0, intentTag{kind: readIntent(side), key: sess.Key}); err != nil {
		l.logf("modify %s session %d after eof: %v", side, sess.Key, err)
	}

	opp := side.opposite()
	if !*sess.closedFlag(opp) {
		if len(*sess.bufFor(opp)) == 0 {
			l.retireWrite(sess, opp)
		} else {
			l.requestWrite(sess, opp)
		}
	}

	// If opp just ended up fully closed — either it already was, or
	// retireWrite tore it down because it too had already seen its own EOF
	// — and nothing is left queued for side, side will never hear from
	// anyone again either.
	if *sess.closedFlag(opp) && len(*sess.bufFor(side)) == 0 {
		l.closeSide(sess, side)
	}

	l.maybeRemoveSession(sess.Key)
}

// retireWrite marks that side has nothing more to receive right now. A side
// that has already seen its own read EOF can do nothing further in either
// direction and is torn down outright; otherwise only its write half is
// shut, so it keeps reporting whatever it still sends us.
func (l *loop) retireWrite(sess *Session, side Side) {
	if *sess.closedFlag(side) {
		return
	}
	if *sess.eofFlag(side) {
		l.closeSide(sess, side)
		return
	}
	shutdownWrite(sess.fd(side))
}

// handleWriteSide implements the WriteTo{Upstream,Downstream}(key) case.
func (l *loop) handleWriteSide(key SessionKey, side Side) {
	sess, ok := l.sessions[key]
	if !ok {
		return
	}

	buf := sess.bufFor(side)
	if len(*buf) == 0 {
		l.finishDrain(sess, side)
		return
	}

	n, err := writeSocket(sess.fd(side), *buf)
	if err != nil {
		if errors.Is(err, ErrBrokenPipe) {
			// send() failed: the side we were writing to is gone. Close the
			// *opposite* side (the peer that will never see its bytes
			// delivered) and drop what we couldn't send; finishDrain then
			// notices the opposite is closed and closes this side too.
			l.closeSide(sess, side.opposite())
			*buf = nil
			l.finishDrain(sess, side)
			return
		}
		l.logf("write %s session %d: %v", side, key, err)
		l.closeSideOnEOF(sess, side)
		return
	}

	*buf = (*buf)[n:]
	l.finishDrain(sess, side)
}

func (l *loop) finishDrain(sess *Session, side Side) {
	buf := sess.bufFor(side)
	if len(*buf) != 0 {
		l.requestWrite(sess, side)
		l.maybeRemoveSession(sess.Key)
		return
	}

	switch {
	case *sess.closedFlag(side.opposite()):
		// Nothing will ever feed side again: tear it down.
		l.closeSide(sess, side)
	case *sess.eofFlag(side.opposite()):
		// side's source just finished sending everything it had queued —
		// this is the deferred half of the EOF rule for whichever side's
		// buffer wasn't already empty when its source hit EOF. Propagate
		// the half-close now, or close side outright if it's spent too.
		l.retireWrite(sess, side)
	case *sess.eofFlag(side):
		// side already told us it's done sending; we're done sending it
		// for now too. Drop the registration rather than leave WRITE
		// armed on an idle, always-writable socket — a later WriteTo*
		// action re-arms it.
		if err := l.readiness.Modify(sess.fd(side), 0, intentTag{kind: writeIntent(side), key: sess.Key}); err != nil {
			l.logf("modify %s session %d idle after eof: %v", side, sess.Key, err)
		}
	default:
		l.requestRead(sess, side)
	}
	l.maybeRemoveSession(sess.Key)
}

// abortSession implements the HandlerError policy: close both sides
// unconditionally.
func (l *loop) abortSession(key SessionKey) {
	sess, ok := l.sessions[key]
	if !ok {
		return
	}
	l.closeSide(sess, Upstream)
	l.closeSide(sess, Downstream)
	l.maybeRemoveSession(key)
}

func (l *loop) closeSide(sess *Session, side Side) {
	if *sess.closedFlag(side) {
		return
	}
	fd := sess.fd(side)
	_ = l.readiness.Unregister(fd)
	closeSocket(fd)
	*sess.closedFlag(side) = true
}

// maybeRemoveSession drops the session from the table once both sides are
// closed (invariant 1) and fires the close hook, if any.
func (l *loop) maybeRemoveSession(key SessionKey) {
	sess, ok := l.sessions[key]
	if !ok {
		return
	}
	if !sess.Live() {
		delete(l.sessions, key)
		if l.metrics != nil {
			l.metrics.SessionsClosedTotal.Inc()
		}
		if l.onSessionClosed != nil {
			l.onSessionClosed(key)
		}
	}
}

// recordForwarded credits n bytes written toward side to bytes_forwarded_total.
func (l *loop) recordForwarded(side Side, n int) {
	if l.metrics == nil || n == 0 {
		return
	}
	l.metrics.BytesForwardedTotal.WithLabelValues(side.String()).Add(float64(n))
}

func (l *loop) requestWrite(sess *Session, side Side) {
	if err := l.readiness.Modify(sess.fd(side), readiness.Write, intentTag{kind: writeIntent(side), key: sess.Key}); err != nil {
		l.logf("modify %s session %d to WRITE: %v", side, sess.Key, err)
	}
}

func (l *loop) requestRead(sess *Session, side Side) {
	if err := l.readiness.Modify(sess.fd(side), readiness.Read, intentTag{kind: readIntent(side), key: sess.Key}); err != nil {
		l.logf("modify %s session %d to READ: %v", side, sess.Key, err)
	}
}
