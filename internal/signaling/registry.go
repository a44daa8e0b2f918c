package signaling

import (
	"strings"
	"sync"
	"time"
)

// CanonicalCode normalizes a client-supplied room code.
func CanonicalCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Registry is the authoritative map from room code to room.
//
// Lock order: a room's mu may be held while acquiring the registry's mu,
// never the reverse.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		now:   time.Now,
	}
}

// GetOrCreate returns the room for code, creating it if needed. The boolean
// reports whether the room was created by this call.
func (reg *Registry) GetOrCreate(code string) (*Room, bool) {
	code = CanonicalCode(code)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if r, ok := reg.rooms[code]; ok {
		return r, false
	}

	r := newRoom(code, reg.now())
	reg.rooms[code] = r
	return r, true
}

func (reg *Registry) Get(code string) (*Room, bool) {
	code = CanonicalCode(code)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[code]
	return r, ok
}

// Delete removes the room for code. Deleting an absent room is a no-op.
func (reg *Registry) Delete(code string) bool {
	r, ok := reg.Get(code)
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	return reg.deleteRoom(r)
}

// deleteRoom removes r only if it is still the room registered under its
// code. The caller holds r.mu.
func (reg *Registry) deleteRoom(r *Room) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if cur, ok := reg.rooms[r.code]; ok && cur == r {
		delete(reg.rooms, r.code)
		return true
	}
	return false
}

func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

func (reg *Registry) snapshot() []*Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// SweepStale deletes every room that has been empty for longer than grace
// and returns the deleted codes. The registry lock is only held while
// enumerating, so joins proceed during a sweep.
func (reg *Registry) SweepStale(now time.Time, grace time.Duration) []string {
	var reaped []string
	for _, r := range reg.snapshot() {
		r.mu.Lock()
		if !r.closed && r.isStale(now, grace) {
			r.closed = true
			if reg.deleteRoom(r) {
				reaped = append(reaped, r.code)
			}
		}
		r.mu.Unlock()
	}
	return reaped
}

// Clear closes and removes every room and returns the removed codes.
func (reg *Registry) Clear() []string {
	var cleared []string
	for _, r := range reg.snapshot() {
		r.mu.Lock()
		if !r.closed {
			r.closed = true
			if reg.deleteRoom(r) {
				cleared = append(cleared, r.code)
			}
		}
		r.mu.Unlock()
	}
	return cleared
}
