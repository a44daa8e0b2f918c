package signaling

import (
	"sort"
	"sync"
	"time"

	"github.com/npezzotti/go-callsignal/internal/auth"
)

// Participant is one connection's membership in one room.
type Participant struct {
	ConnectionId string
	UserId       int
	Email        string
	IsHost       bool
	JoinedAt     time.Time
}

func (p *Participant) info() ParticipantInfo {
	return ParticipantInfo{
		ConnectionId: p.ConnectionId,
		IsHost:       p.IsHost,
		Email:        p.Email,
	}
}

// before orders participants for host succession: earliest join first,
// connection id breaks ties.
func (p *Participant) before(o *Participant) bool {
	if !p.JoinedAt.Equal(o.JoinedAt) {
		return p.JoinedAt.Before(o.JoinedAt)
	}
	return p.ConnectionId < o.ConnectionId
}

// Room is a call session. Lowercase methods require mu to be held.
type Room struct {
	mu           sync.Mutex
	code         string
	createdAt    time.Time
	emptySince   time.Time
	hostId       string
	participants map[string]*Participant
	// closed is set once the room has been removed from the registry;
	// a closed room never accepts participants again.
	closed bool
}

func newRoom(code string, now time.Time) *Room {
	return &Room{
		code:         code,
		createdAt:    now,
		emptySince:   now,
		participants: make(map[string]*Participant),
	}
}

// addParticipant records a connection in the room. It returns false when the
// connection is already present.
func (r *Room) addParticipant(connId string, identity *auth.Identity, wantsHost bool, now time.Time) (*Participant, bool) {
	if _, ok := r.participants[connId]; ok {
		return nil, false
	}

	p := &Participant{
		ConnectionId: connId,
		JoinedAt:     now,
	}
	if identity != nil {
		p.UserId = identity.UserId
		p.Email = identity.Email
	}

	if wantsHost && r.hostId == "" {
		p.IsHost = true
		r.hostId = connId
	}

	r.participants[connId] = p
	return p, true
}

// removeParticipant removes a connection and returns its state prior to removal.
func (r *Room) removeParticipant(connId string, now time.Time) (Participant, bool) {
	p, ok := r.participants[connId]
	if !ok {
		return Participant{}, false
	}

	delete(r.participants, connId)
	if r.hostId == connId {
		r.hostId = ""
	}
	if len(r.participants) == 0 {
		r.emptySince = now
	}

	return *p, true
}

// electNewHost promotes the longest-present participant when the room has no host.
func (r *Room) electNewHost() (Participant, bool) {
	if r.hostId != "" || len(r.participants) == 0 {
		return Participant{}, false
	}

	var next *Participant
	for _, p := range r.participants {
		if next == nil || p.before(next) {
			next = p
		}
	}

	next.IsHost = true
	r.hostId = next.ConnectionId
	return *next, true
}

// listOthers returns every participant except connId, in join order.
func (r *Room) listOthers(connId string) []ParticipantInfo {
	others := make([]*Participant, 0, len(r.participants))
	for id, p := range r.participants {
		if id == connId {
			continue
		}
		others = append(others, p)
	}

	sort.Slice(others, func(i, j int) bool { return others[i].before(others[j]) })

	infos := make([]ParticipantInfo, len(others))
	for i, p := range others {
		infos[i] = p.info()
	}
	return infos
}

func (r *Room) has(connId string) bool {
	_, ok := r.participants[connId]
	return ok
}

func (r *Room) size() int {
	return len(r.participants)
}

func (r *Room) isStale(now time.Time, grace time.Duration) bool {
	return len(r.participants) == 0 && now.Sub(r.emptySince) > grace
}

func (r *Room) Code() string {
	return r.code
}

func (r *Room) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size()
}

// Host returns the connection id of the current host, if any.
func (r *Room) Host() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostId, r.hostId != ""
}

// Participant returns a copy of the participant with connId.
func (r *Room) Participant(connId string) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[connId]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}
