package signaling

import "github.com/npezzotti/go-callsignal/internal/stats"

// relay forwards one negotiation payload from c to s.TargetId. It is delivered
// only when both connections are members of the named room; otherwise it is
// dropped without telling the sender.
func (cs *SignalingServer) relay(c *Client, event string, s *Signal) {
	l := cs.log.With().
		Str("conn_id", c.id).
		Str("target_id", s.TargetId).
		Str("event", event).
		Logger()

	var delivered bool
	if code := CanonicalCode(s.RoomCode); code != "" {
		l = l.With().Str("room_code", code).Logger()
		if r, ok := cs.registry.Get(code); ok {
			delivered = cs.relayInRoom(r, c.id, event, s)
		}
	} else {
		// no room named: authorize against any room holding both ends
		for _, r := range cs.registry.snapshot() {
			if delivered = cs.relayInRoom(r, c.id, event, s); delivered {
				break
			}
		}
	}

	if !delivered {
		cs.stats.Incr(stats.NumSignalsDropped)
		l.Warn().Msg("dropped relay")
		return
	}

	cs.stats.Incr(stats.NumSignalsRelayed)
	l.Debug().Msg("relayed signal")
}

// relayInRoom delivers the payload if source and target are both current
// members of r. Membership is checked and the message queued under r.mu so a
// concurrent leave cannot interleave.
func (cs *SignalingServer) relayInRoom(r *Room, sourceId, event string, s *Signal) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || !r.has(sourceId) || !r.has(s.TargetId) {
		return false
	}

	return cs.deliver(s.TargetId, NewRelayedSignal(event, s, sourceId))
}
