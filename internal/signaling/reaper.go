package signaling

import "github.com/npezzotti/go-callsignal/internal/stats"

// reap deletes rooms that have stayed empty past the grace period. Rooms are
// normally deleted when their last participant leaves; this catches the rest.
func (cs *SignalingServer) reap() {
	reaped := cs.registry.SweepStale(cs.registry.now(), cs.roomGrace)
	for _, code := range reaped {
		cs.stats.Decr(stats.NumActiveRooms)
		cs.stats.Incr(stats.NumRoomsReaped)
		cs.log.Info().Str("room_code", code).Msg("reaped empty room")
	}

	if e := cs.log.Debug(); e.Enabled() {
		e.Interface("rooms", cs.Snapshot()).Msg("active rooms")
	}
}

// Snapshot maps each live room code to its participant count.
func (cs *SignalingServer) Snapshot() map[string]int {
	rooms := cs.registry.snapshot()
	counts := make(map[string]int, len(rooms))
	for _, r := range rooms {
		counts[r.code] = r.Size()
	}
	return counts
}
