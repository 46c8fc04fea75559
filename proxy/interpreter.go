package proxy

// interpret runs the Action interpreter (spec §4.4) for bytes observed on
// side `observed` of the session identified by key.
//
// Ordering guarantee: bytes appended to a write buffer appear on the wire in
// the order they were appended, since both the interpreter and the
// WriteTo{Upstream,Downstream} loop cases only ever append to the tail and
// consume from the head.
func (l *loop) interpret(key SessionKey, observed Side, data []byte, actions []Action) {
	sess, ok := l.sessions[key]
	if !ok {
		return
	}

	opposite := observed.opposite()
	chosen := data
	explicitWrite := false

	for _, action := range actions {
		switch act := action.(type) {
		case CopyAsIs:
			chosen = data

		case AlterData:
			chosen = act.Data

		case AlterSession:
			key := sess.Key
			upFD, downFD := sess.upstreamFD, sess.downstreamFD
			*sess = act.Session
			// Preserve the identity fields a Handler has no business
			// reassigning through a full-value swap.
			sess.Key = key
			sess.upstreamFD = upFD
			sess.downstreamFD = downFD

		case WriteToUpstream:
			buf := sess.bufFor(Upstream)
			*buf = append(*buf, act.Data...)
			l.requestWrite(sess, Upstream)
			l.recordForwarded(Upstream, len(act.Data))
			if observed == Downstream {
				explicitWrite = true
			}

		case WriteToDownstream:
			buf := sess.bufFor(Downstream)
			*buf = append(*buf, act.Data...)
			l.requestWrite(sess, Downstream)
			l.recordForwarded(Downstream, len(act.Data))
			if observed == Upstream {
				explicitWrite = true
			}
		}
	}

	if !explicitWrite {
		buf := sess.bufFor(opposite)
		*buf = append(*buf, chosen...)
		l.requestWrite(sess, opposite)
		l.recordForwarded(opposite, len(chosen))
	}

	if !*sess.closedFlag(observed) {
		l.requestRead(sess, observed)
	}
}
