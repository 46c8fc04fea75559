package proxy

// SessionKey uniquely identifies a Session within one Proxy's lifetime. Keys
// are assigned in accept order, starting at zero, and are never reused.
type SessionKey uint64

// Side names one of the two sockets a Session pairs together.
type Side uint8

const (
	Upstream Side = iota
	Downstream
)

func (s Side) String() string {
	if s == Upstream {
		return "upstream"
	}
	return "downstream"
}

func (s Side) opposite() Side {
	if s == Upstream {
		return Downstream
	}
	return Upstream
}

// Session is the per-connection state the loop threads through the Action
// interpreter: two file descriptors and the bytes still queued to go out
// each of them. It is mutated only by the loop thread.
type Session struct {
	Key SessionKey

	upstreamFD   int
	downstreamFD int

	// ToUpstreamBuf and ToDownstreamBuf are the bytes queued for write,
	// consumed from the head as the kernel accepts them and appended to the
	// tail by the interpreter or a WriteTo* action. Exported so a Handler
	// can inspect them (AlterSession hands back a whole Session value).
	ToUpstreamBuf   []byte
	ToDownstreamBuf []byte

	UpstreamClosed   bool
	DownstreamClosed bool

	// UpstreamEOF and DownstreamEOF record that a 0-byte read already came
	// back on that side: it will never produce more inbound data, but its
	// fd stays open so a reply still queued for it can finish draining.
	UpstreamEOF   bool
	DownstreamEOF bool
}

// Live reports whether the session still has at least one open side. Once
// both sides are closed the loop removes the session from its table.
func (s Session) Live() bool {
	return !s.UpstreamClosed || !s.DownstreamClosed
}

// bufFor returns a pointer to the write buffer belonging to side, so callers
// can append to or drain it in place.
func (s *Session) bufFor(side Side) *[]byte {
	if side == Upstream {
		return &s.ToUpstreamBuf
	}
	return &s.ToDownstreamBuf
}

func (s *Session) closedFlag(side Side) *bool {
	if side == Upstream {
		return &s.UpstreamClosed
	}
	return &s.DownstreamClosed
}

func (s *Session) eofFlag(side Side) *bool {
	if side == Upstream {
		return &s.UpstreamEOF
	}
	return &s.DownstreamEOF
}

func (s *Session) fd(side Side) int {
	if side == Upstream {
		return s.upstreamFD
	}
	return s.downstreamFD
}
