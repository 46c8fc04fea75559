// Package proxy implements the reusable core of a TCP intercepting proxy:
// a single-threaded, readiness-driven event loop that accepts downstream
// connections, dials a fixed upstream for each one, and shuttles bytes
// between them through a pluggable Handler that may observe, rewrite,
// inject, or redirect them.
package proxy

import (
	"fmt"
	"log"
	"sync"

	"github.com/mickamy/sql-tap-proxy/endpoint"
	"github.com/mickamy/sql-tap-proxy/metrics"
	"github.com/mickamy/sql-tap-proxy/proxy/readiness"
)

const defaultBufferSize = 4096

// Proxy is the scoped facade over the event loop (C6): construct it with
// New, Start it to bind the downstream listener and spin up the loop on its
// own goroutine, and Stop it to request a clean shutdown.
type Proxy struct {
	upstream   endpoint.Endpoint
	downstream endpoint.Endpoint
	handler    Handler
	bufferSize int
	logger     *log.Logger
	metrics    *metrics.Metrics

	onSessionClosed func(SessionKey)

	mu       sync.Mutex
	loop     *loop
	started  bool
	stopOnce sync.Once
	done     chan struct{}
}

// Option customizes a Proxy at construction time.
type Option func(*Proxy)

// WithBufferSize overrides the per-read chunk size (default 4096 bytes).
func WithBufferSize(n int) Option {
	return func(p *Proxy) { p.bufferSize = n }
}

// WithLogger routes the loop's AcceptFailed/handler-panic/etc. diagnostics
// through logger instead of discarding them.
func WithLogger(logger *log.Logger) Option {
	return func(p *Proxy) { p.logger = logger }
}

// WithMetrics records sessions_opened_total, sessions_closed_total, and
// bytes_forwarded_total against m as the loop processes traffic.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Proxy) { p.metrics = m }
}

// WithSessionClosedHook registers a callback invoked once a session is
// fully torn down (both sides closed and removed from the table). It runs
// synchronously on the loop goroutine and must not block.
func WithSessionClosedHook(fn func(SessionKey)) Option {
	return func(p *Proxy) { p.onSessionClosed = fn }
}

// New constructs a Proxy. upstream is the server the proxy connects to for
// each accepted connection; downstream is the local address clients dial.
// A nil handler defaults to Passthrough.
func New(upstream, downstream endpoint.Endpoint, handler Handler, opts ...Option) *Proxy {
	if handler == nil {
		handler = Passthrough()
	}
	p := &Proxy{
		upstream:   upstream,
		downstream: downstream,
		handler:    handler,
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start binds the downstream listener and starts the loop on its own
// goroutine, returning once the listener is bound and ready to accept.
// A bind/listen failure is reported wrapped in ErrBindFailed.
func (p *Proxy) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("proxy: already started")
	}

	listenFD, err := listenSocket(p.downstream)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBindFailed, err)
	}

	rs, err := readiness.New()
	if err != nil {
		closeSocket(listenFD)
		return fmt.Errorf("%w: %v", ErrBindFailed, err)
	}

	if err := rs.Register(listenFD, readiness.Read, intentTag{kind: intentAcceptDownstream}); err != nil {
		_ = rs.Close()
		closeSocket(listenFD)
		return fmt.Errorf("%w: %v", ErrBindFailed, err)
	}

	l := &loop{
		handler:         p.handler,
		upstream:        p.upstream,
		downstream:      p.downstream,
		listenFD:        listenFD,
		readiness:       rs,
		sessions:        make(map[SessionKey]*Session),
		bufferSize:      p.bufferSize,
		commands:        make(chan command, 1),
		onSessionClosed: p.onSessionClosed,
		logger:          p.logger,
		metrics:         p.metrics,
	}

	p.loop = l
	p.started = true
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		l.run()
	}()

	return nil
}

// Stop enqueues BREAK and performs the dummy self-connect that unblocks a
// pending Select. When wait is true it also blocks until the loop has fully
// exited and re-raises any stored fatal loop error.
func (p *Proxy) Stop(wait bool) error {
	p.mu.Lock()
	l := p.loop
	started := p.started
	downstream := p.downstream
	p.mu.Unlock()
	if !started {
		return nil
	}

	p.stopOnce.Do(func() {
		select {
		case l.commands <- cmdBreak:
		default:
		}
		dummyConnect(downstream)
	})

	if wait {
		return p.Wait()
	}
	return nil
}

// Wait blocks until the loop thread exits, re-raising a stored fatal error.
// Per-session errors never reach here; only a multiplexer failure does.
func (p *Proxy) Wait() error {
	p.mu.Lock()
	l := p.loop
	done := p.done
	p.mu.Unlock()
	if l == nil {
		return nil
	}
	<-done
	return l.fatal
}

// SessionCount reports the number of live sessions. It is racy with respect
// to the loop goroutine by design — it's meant for metrics/diagnostics, not
// correctness-sensitive control flow.
func (p *Proxy) SessionCount() int {
	p.mu.Lock()
	l := p.loop
	p.mu.Unlock()
	if l == nil {
		return 0
	}
	return len(l.sessions)
}

func dummyConnect(e endpoint.Endpoint) {
	fd, err := dialSocket(e)
	if err != nil {
		return
	}
	closeSocket(fd)
}
