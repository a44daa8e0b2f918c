package signaling

import "github.com/npezzotti/go-callsignal/internal/stats"

func (cs *SignalingServer) join(c *Client, code string, wantsHost bool) {
	code = CanonicalCode(code)
	l := cs.log.With().Str("conn_id", c.id).Str("room_code", code).Logger()

	for {
		r, created := cs.registry.GetOrCreate(code)
		if created {
			cs.stats.Incr(stats.NumActiveRooms)
			l.Info().Msg("created room")
		}

		r.mu.Lock()
		if r.closed {
			// lost a race with deletion; the next lookup creates a fresh room
			r.mu.Unlock()
			continue
		}

		p, added := r.addParticipant(c.id, c.identity, wantsHost, cs.registry.now())
		if !added {
			r.mu.Unlock()
			l.Debug().Msg("already in room")
			return
		}

		cs.broadcast(r, NewUserJoined(p.info()), c.id)
		cs.deliver(c.id, NewRoomJoined(r.code, r.listOthers(c.id)))

		l.Info().Bool("host", p.IsHost).Int("participants", r.size()).Msg("joined room")
		r.mu.Unlock()
		return
	}
}

func (cs *SignalingServer) leave(c *Client, code string) {
	code = CanonicalCode(code)

	r, ok := cs.registry.Get(code)
	if !ok {
		cs.log.Warn().Str("conn_id", c.id).Str("room_code", code).Msg("leave for unknown room")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || !cs.removeFromRoom(r, c.id) {
		cs.log.Warn().Str("conn_id", c.id).Str("room_code", code).Msg("leave from room not joined")
	}
}

// disconnect removes c from every room the registry lists it in.
func (cs *SignalingServer) disconnect(c *Client) {
	for _, r := range cs.registry.snapshot() {
		r.mu.Lock()
		if !r.closed && r.has(c.id) {
			cs.removeFromRoom(r, c.id)
		}
		r.mu.Unlock()
	}
}

// removeFromRoom performs departure, host migration and eager deletion as
// one critical section. The caller holds r.mu.
func (cs *SignalingServer) removeFromRoom(r *Room, connId string) bool {
	l := cs.log.With().Str("conn_id", connId).Str("room_code", r.code).Logger()

	departed, ok := r.removeParticipant(connId, cs.registry.now())
	if !ok {
		return false
	}

	cs.broadcast(r, NewUserLeft(departed.ConnectionId, departed.IsHost), "")
	l.Info().Bool("host", departed.IsHost).Int("participants", r.size()).Msg("left room")

	if departed.IsHost {
		if newHost, elected := r.electNewHost(); elected {
			cs.deliver(newHost.ConnectionId, NewHostAssigned(r.code))
			cs.broadcast(r, NewHostChanged(newHost.info()), newHost.ConnectionId)
			l.Info().Str("new_host", newHost.ConnectionId).Msg("assigned new host")
		}
	}

	if r.size() == 0 {
		r.closed = true
		if cs.registry.deleteRoom(r) {
			cs.stats.Decr(stats.NumActiveRooms)
			l.Info().Msg("deleted empty room")
		}
	}

	return true
}
