package proxy

import "testing"

func TestSideOpposite(t *testing.T) {
	if Upstream.opposite() != Downstream {
		t.Errorf("expected Downstream, got %v", Upstream.opposite())
	}
	if Downstream.opposite() != Upstream {
		t.Errorf("expected Upstream, got %v", Downstream.opposite())
	}
}

func TestSideString(t *testing.T) {
	if Upstream.String() != "upstream" {
		t.Errorf("unexpected string: %q", Upstream.String())
	}
	if Downstream.String() != "downstream" {
		t.Errorf("unexpected string: %q", Downstream.String())
	}
}

func TestSessionLive(t *testing.T) {
	s := Session{}
	if !s.Live() {
		t.Fatal("fresh session should be live")
	}

	s.UpstreamClosed = true
	if !s.Live() {
		t.Fatal("session with one side closed should still be live")
	}

	s.DownstreamClosed = true
	if s.Live() {
		t.Fatal("session with both sides closed should not be live")
	}
}

func TestSessionBufFor(t *testing.T) {
	s := Session{}
	*s.bufFor(Upstream) = []byte("up")
	*s.bufFor(Downstream) = []byte("down")

	if string(s.ToUpstreamBuf) != "up" {
		t.Errorf("unexpected ToUpstreamBuf: %q", s.ToUpstreamBuf)
	}
	if string(s.ToDownstreamBuf) != "down" {
		t.Errorf("unexpected ToDownstreamBuf: %q", s.ToDownstreamBuf)
	}
}

func TestSessionClosedFlag(t *testing.T) {
	s := Session{}
	*s.closedFlag(Upstream) = true
	if !s.UpstreamClosed {
		t.Error("expected UpstreamClosed to be set")
	}
	if s.DownstreamClosed {
		t.Error("expected DownstreamClosed to remain unset")
	}
}

func TestSessionEOFFlag(t *testing.T) {
	s := Session{}
	*s.eofFlag(Downstream) = true
	if !s.DownstreamEOF {
		t.Error("expected DownstreamEOF to be set")
	}
	if s.UpstreamEOF {
		t.Error("expected UpstreamEOF to remain unset")
	}
}

func TestSessionFD(t *testing.T) {
	s := Session{upstreamFD: 3, downstreamFD: 4}
	if s.fd(Upstream) != 3 {
		t.Errorf("expected fd 3, got %d", s.fd(Upstream))
	}
	if s.fd(Downstream) != 4 {
		t.Errorf("expected fd 4, got %d", s.fd(Downstream))
	}
}
