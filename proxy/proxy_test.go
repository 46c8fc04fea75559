package proxy_test

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/mickamy/sql-tap-proxy/endpoint"
	"github.com/mickamy/sql-tap-proxy/proxy"
)

// freePort asks the OS for a free TCP port by binding and immediately
// releasing it, the same trick the teacher's own tests use.
func freePort(t *testing.T) uint16 {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = lis.Close() }()
	return uint16(lis.Addr().(*net.TCPAddr).Port)
}

// echoUpstream starts a bare TCP server that echoes whatever it reads back
// to the same connection, standing in for a real upstream.
func echoUpstream(t *testing.T) endpoint.Endpoint {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = lis.Close() })

	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			go func() {
				defer func() { _ = conn.Close() }()
				_, _ = io.Copy(conn, conn)
			}()
		}
	}()

	addr := lis.Addr().(*net.TCPAddr)
	return endpoint.New(addr.IP.String(), uint16(addr.Port))
}

func dialWithRetry(t *testing.T, addr endpoint.Endpoint) net.Conn {
	t.Helper()
	var lastErr error
	for i := 0; i < 50; i++ {
		conn, err := net.DialTimeout("tcp", addr.String(), 100*time.Millisecond)
		if err == nil {
			return conn
		}
		lastErr = err
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("dial %s: %v", addr, lastErr)
	return nil
}

func TestPassthroughEcho(t *testing.T) {
	upstream := echoUpstream(t)
	downstream := endpoint.New("127.0.0.1", freePort(t))

	p := proxy.New(upstream, downstream, proxy.Passthrough())
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = p.Stop(true) })

	conn := dialWithRetry(t, downstream)
	defer func() { _ = conn.Close() }()

	if _, err := conn.Write([]byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 4)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != "ping" {
		t.Errorf("expected echo %q, got %q", "ping", buf)
	}
}

func TestAlterDownstream(t *testing.T) {
	upstream := echoUpstream(t)
	downstream := endpoint.New("127.0.0.1", freePort(t))

	handler := proxy.AlterDownstream(func(data []byte) []byte {
		out := make([]byte, len(data))
		for i, b := range data {
			if b >= 'a' && b <= 'z' {
				out[i] = b - ('a' - 'A')
			} else {
				out[i] = b
			}
		}
		return out
	})

	p := proxy.New(upstream, downstream, handler)
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = p.Stop(true) })

	conn := dialWithRetry(t, downstream)
	defer func() { _ = conn.Close() }()

	if _, err := conn.Write([]byte("shout")); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 5)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != "SHOUT" {
		t.Errorf("expected uppercased echo %q, got %q", "SHOUT", buf)
	}
}

func TestStopClosesListener(t *testing.T) {
	upstream := echoUpstream(t)
	downstream := endpoint.New("127.0.0.1", freePort(t))

	p := proxy.New(upstream, downstream, proxy.Passthrough())
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	conn := dialWithRetry(t, downstream)
	_ = conn.Close()

	if err := p.Stop(true); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if _, err := net.DialTimeout("tcp", downstream.String(), 200*time.Millisecond); err == nil {
		t.Error("expected dial to fail after Stop, listener should be closed")
	}
}

// TestHalfCloseDrain covers spec scenario 3: a client that writes data then
// half-closes its write side must still receive whatever the upstream sends
// back before the downstream socket is fully torn down.
func TestHalfCloseDrain(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen upstream: %v", err)
	}
	t.Cleanup(func() { _ = lis.Close() })

	reply := []byte("bye")
	go func() {
		conn, err := lis.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		got, err := io.ReadAll(conn)
		if err != nil || string(got) != "abc" {
			return
		}
		_, _ = conn.Write(reply)
	}()

	addr := lis.Addr().(*net.TCPAddr)
	upstream := endpoint.New(addr.IP.String(), uint16(addr.Port))
	downstream := endpoint.New("127.0.0.1", freePort(t))

	p := proxy.New(upstream, downstream, proxy.Passthrough())
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = p.Stop(true) })

	conn := dialWithRetry(t, downstream)
	defer func() { _ = conn.Close() }()

	if _, err := conn.Write([]byte("abc")); err != nil {
		t.Fatalf("write: %v", err)
	}
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		t.Fatalf("expected *net.TCPConn, got %T", conn)
	}
	if err := tcpConn.CloseWrite(); err != nil {
		t.Fatalf("close write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	got, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read reply after half-close: %v", err)
	}
	if string(got) != string(reply) {
		t.Errorf("expected reply %q after half-close, got %q", reply, got)
	}
}

// TestBrokenUpstreamRefused covers spec scenario 4: a refused upstream must
// surface as a clean downstream close, not a panic or a hang.
func TestBrokenUpstreamRefused(t *testing.T) {
	upstream := endpoint.New("127.0.0.1", freePort(t)) // nothing listening here
	downstream := endpoint.New("127.0.0.1", freePort(t))

	p := proxy.New(upstream, downstream, proxy.Passthrough())
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = p.Stop(true) })

	conn := dialWithRetry(t, downstream)
	defer func() { _ = conn.Close() }()

	if _, err := conn.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 1)
	if n, err := conn.Read(buf); n != 0 || err != io.EOF {
		t.Errorf("expected clean EOF after broken upstream, got n=%d err=%v", n, err)
	}
}

// TestConcurrentSessionsNoCrossTalk covers spec scenario 5: ten simultaneous
// sessions against a passthrough upstream must never mix bytes across
// sessions.
func TestConcurrentSessionsNoCrossTalk(t *testing.T) {
	upstream := echoUpstream(t)
	downstream := endpoint.New("127.0.0.1", freePort(t))

	p := proxy.New(upstream, downstream, proxy.Passthrough())
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = p.Stop(true) })

	probe := dialWithRetry(t, downstream)
	_ = probe.Close()

	const clients = 10
	const size = 1024

	var wg sync.WaitGroup
	errs := make(chan error, clients)

	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			payload := make([]byte, size)
			for j := range payload {
				payload[j] = byte((i*31 + j) % 256)
			}

			conn, err := net.Dial("tcp", downstream.String())
			if err != nil {
				errs <- fmt.Errorf("client %d: dial: %w", i, err)
				return
			}
			defer func() { _ = conn.Close() }()

			if _, err := conn.Write(payload); err != nil {
				errs <- fmt.Errorf("client %d: write: %w", i, err)
				return
			}

			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			got := make([]byte, size)
			if _, err := io.ReadFull(conn, got); err != nil {
				errs <- fmt.Errorf("client %d: read: %w", i, err)
				return
			}
			if !bytes.Equal(got, payload) {
				errs <- fmt.Errorf("client %d: payload mismatch", i)
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestSessionClosedHookFires(t *testing.T) {
	upstream := echoUpstream(t)
	downstream := endpoint.New("127.0.0.1", freePort(t))

	closed := make(chan proxy.SessionKey, 1)
	p := proxy.New(upstream, downstream, proxy.Passthrough(),
		proxy.WithSessionClosedHook(func(key proxy.SessionKey) {
			closed <- key
		}),
	)
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = p.Stop(true) })

	conn := dialWithRetry(t, downstream)
	_ = conn.Close()

	select {
	case <-closed:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for session closed hook")
	}
}
