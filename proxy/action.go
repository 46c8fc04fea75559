package proxy

// Action is a directive a Handler emits in response to observed bytes. The
// Action interpreter (see interpreter.go) applies an ordered list of these
// against a Session.
type Action interface {
	isAction()
}

// CopyAsIs forwards the observed bytes unchanged toward the opposite side.
type CopyAsIs struct{}

func (CopyAsIs) isAction() {}

// AlterData forwards Data instead of the observed bytes toward the opposite
// side. If several AlterData/CopyAsIs actions are emitted with no WriteTo*
// redirect, only the last one's data is forwarded.
type AlterData struct {
	Data []byte
}

func (AlterData) isAction() {}

// AlterSession replaces the Session value the interpreter is operating on.
// Use this when a Handler wants to adjust Session fields directly; it is
// sugar for "set every field at once".
type AlterSession struct {
	Session Session
}

func (AlterSession) isAction() {}

// WriteToUpstream appends Data to the session's upstream write buffer,
// independent of whatever CopyAsIs/AlterData value was chosen.
type WriteToUpstream struct {
	Data []byte
}

func (WriteToUpstream) isAction() {}

// WriteToDownstream appends Data to the session's downstream write buffer,
// independent of whatever CopyAsIs/AlterData value was chosen.
type WriteToDownstream struct {
	Data []byte
}

func (WriteToDownstream) isAction() {}

// Handler observes bytes flowing through a Session and decides what the
// Action interpreter should do with them. Both callbacks are pure with
// respect to sockets: a Handler never touches a net.Conn directly, and must
// not block for more than microseconds, since the event loop is
// single-threaded and every session waits on it.
type Handler interface {
	// HandleUpstreamData is called with bytes that just arrived FROM
	// upstream, before the loop decides what (if anything) to send
	// downstream.
	HandleUpstreamData(session Session, data []byte) []Action

	// HandleDownstreamData is called with bytes that just arrived FROM the
	// downstream client; they are observed on their way toward upstream.
	HandleDownstreamData(session Session, data []byte) []Action
}

// passthroughHandler always forwards bytes unchanged in both directions.
type passthroughHandler struct{}

// Passthrough returns a Handler that never alters the byte stream.
func Passthrough() Handler {
	return passthroughHandler{}
}

func (passthroughHandler) HandleUpstreamData(Session, []byte) []Action {
	return []Action{CopyAsIs{}}
}

func (passthroughHandler) HandleDownstreamData(Session, []byte) []Action {
	return []Action{CopyAsIs{}}
}

// alterDownstreamHandler rewrites client->upstream bytes through alter and
// leaves upstream->client bytes untouched.
type alterDownstreamHandler struct {
	alter func([]byte) []byte
}

// AlterDownstream returns a Handler that rewrites downstream (client->
// upstream) bytes through alter, and passes upstream bytes through as-is.
func AlterDownstream(alter func([]byte) []byte) Handler {
	return alterDownstreamHandler{alter: alter}
}

func (alterDownstreamHandler) HandleUpstreamData(Session, []byte) []Action {
	return []Action{CopyAsIs{}}
}

func (h alterDownstreamHandler) HandleDownstreamData(_ Session, data []byte) []Action {
	return []Action{AlterData{Data: h.alter(data)}}
}
