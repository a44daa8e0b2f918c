package signaling

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/npezzotti/go-callsignal/internal/stats"
	"github.com/rs/zerolog"
)

// SignalingServer owns the room registry and the set of live connections.
type SignalingServer struct {
	log          zerolog.Logger
	registry     *Registry
	clients      map[string]*Client
	clientsLock  sync.RWMutex
	stats        stats.StatsProvider
	reapInterval time.Duration
	roomGrace    time.Duration
	stop         chan struct{}
	stopOnce     sync.Once
	done         chan struct{}
}

func NewSignalingServer(logger zerolog.Logger, su stats.StatsProvider, reapInterval, roomGrace time.Duration) (*SignalingServer, error) {
	if reapInterval <= 0 || roomGrace <= 0 {
		return nil, errors.New("reap interval and room grace period must be positive")
	}

	su.RegisterMetric(stats.NumActiveConnections)
	su.RegisterMetric(stats.NumActiveRooms)
	su.RegisterMetric(stats.NumSignalsRelayed)
	su.RegisterMetric(stats.NumSignalsDropped)
	su.RegisterMetric(stats.NumRoomsReaped)

	return &SignalingServer{
		log:          logger,
		registry:     NewRegistry(),
		clients:      make(map[string]*Client),
		stats:        su,
		reapInterval: reapInterval,
		roomGrace:    roomGrace,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}, nil
}

// Run sweeps stale rooms until Shutdown is called.
func (cs *SignalingServer) Run() {
	ticker := time.NewTicker(cs.reapInterval)
	defer func() {
		ticker.Stop()
		close(cs.done)
	}()

	for {
		select {
		case <-ticker.C:
			cs.reap()
		case <-cs.stop:
			cs.log.Info().Msg("room reaper stopped")
			return
		}
	}
}

// Shutdown stops the reaper, disconnects every client and releases all rooms.
func (cs *SignalingServer) Shutdown(ctx context.Context) error {
	cs.log.Info().Msg("received shutdown signal")
	cs.stopOnce.Do(func() { close(cs.stop) })

	cs.clientsLock.RLock()
	for _, c := range cs.clients {
		c.stopClient()
	}
	cs.clientsLock.RUnlock()

	var err error
	select {
	case <-cs.done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	for range cs.registry.Clear() {
		cs.stats.Decr(stats.NumActiveRooms)
	}
	return err
}

func (cs *SignalingServer) RegisterClient(c *Client) {
	cs.clientsLock.Lock()
	cs.clients[c.id] = c
	cs.clientsLock.Unlock()

	cs.stats.Incr(stats.NumActiveConnections)
	cs.log.Info().Str("conn_id", c.id).Bool("guest", c.identity == nil).Msg("client connected")
	c.queueMessage(NewConnected(c))
}

func (cs *SignalingServer) DeregisterClient(c *Client) {
	cs.clientsLock.Lock()
	_, ok := cs.clients[c.id]
	delete(cs.clients, c.id)
	cs.clientsLock.Unlock()

	if ok {
		cs.stats.Decr(stats.NumActiveConnections)
		cs.log.Info().Str("conn_id", c.id).Msg("client disconnected")
	}
}

// deliver queues msg for the connection with connId without blocking.
func (cs *SignalingServer) deliver(connId string, msg *ServerMessage) bool {
	cs.clientsLock.RLock()
	c, ok := cs.clients[connId]
	cs.clientsLock.RUnlock()

	if !ok {
		cs.log.Warn().Str("conn_id", connId).Str("event", msg.Event).Msg("no connection for recipient")
		return false
	}

	return c.queueMessage(msg)
}

// broadcast delivers msg to every participant of r except skip. The caller
// holds r.mu.
func (cs *SignalingServer) broadcast(r *Room, msg *ServerMessage, skip string) {
	for id := range r.participants {
		if id == skip {
			continue
		}
		cs.deliver(id, msg)
	}
}

// Dispatch routes one inbound event from c.
func (cs *SignalingServer) Dispatch(c *Client, msg *ClientMessage) {
	switch {
	case msg.Join != nil:
		cs.join(c, msg.Join.RoomCode, msg.Join.IsHost)
	case msg.Leave != nil:
		cs.leave(c, msg.Leave.RoomCode)
	case msg.Offer != nil:
		cs.relay(c, EventOffer, msg.Offer)
	case msg.Answer != nil:
		cs.relay(c, EventAnswer, msg.Answer)
	case msg.IceCandidate != nil:
		cs.relay(c, EventIceCandidate, msg.IceCandidate)
	case msg.Disconnect != nil:
		cs.disconnect(c)
	default:
		cs.log.Warn().Str("conn_id", c.id).Msg("ignoring empty message")
	}
}

// ParticipantCount returns the number of connections currently in the room.
func (cs *SignalingServer) ParticipantCount(code string) int {
	r, ok := cs.registry.Get(code)
	if !ok {
		return 0
	}
	return r.Size()
}
