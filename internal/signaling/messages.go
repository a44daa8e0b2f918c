package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Inbound events.
const (
	EventJoinRoom     = "join-room"
	EventLeaveRoom    = "leave-room"
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventIceCandidate = "ice-candidate"
)

// Outbound events.
const (
	EventConnected    = "connected"
	EventRoomJoined   = "room-joined"
	EventUserJoined   = "user-joined"
	EventUserLeft     = "user-left"
	EventHostAssigned = "host-assigned"
	EventHostChanged  = "host-changed"
)

var (
	ErrUnknownEvent    = errors.New("unknown event")
	ErrMissingData     = errors.New("missing event data")
	ErrMissingRoomCode = errors.New("missing room code")
	ErrMissingTarget   = errors.New("missing target id")
	ErrMissingPayload  = errors.New("missing signal payload")
)

// ClientMessage is an inbound event. Exactly one variant is set.
type ClientMessage struct {
	Event        string
	Join         *JoinRoom
	Leave        *LeaveRoom
	Offer        *Signal
	Answer       *Signal
	IceCandidate *Signal
	// Disconnect is produced locally when the transport closes.
	Disconnect *Disconnect
}

type JoinRoom struct {
	RoomCode string `json:"roomCode"`
	IsHost   bool   `json:"isHost"`
}

type LeaveRoom struct {
	RoomCode string `json:"roomCode"`
}

// Signal carries one opaque negotiation payload to TargetId. The field
// matching the event must be set; the others are ignored.
type Signal struct {
	RoomCode  string          `json:"roomCode"`
	TargetId  string          `json:"targetId"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type Disconnect struct{}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (m *ClientMessage) UnmarshalJSON(b []byte) error {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}

	var target any
	switch env.Event {
	case EventJoinRoom:
		m.Join = &JoinRoom{}
		target = m.Join
	case EventLeaveRoom:
		m.Leave = &LeaveRoom{}
		target = m.Leave
	case EventOffer:
		m.Offer = &Signal{}
		target = m.Offer
	case EventAnswer:
		m.Answer = &Signal{}
		target = m.Answer
	case EventIceCandidate:
		m.IceCandidate = &Signal{}
		target = m.IceCandidate
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	m.Event = env.Event

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return ErrMissingData
	}

	return json.Unmarshal(env.Data, target)
}

// validate checks the structured envelope fields. Payloads are never inspected.
func (m *ClientMessage) validate() error {
	switch {
	case m.Join != nil:
		if strings.TrimSpace(m.Join.RoomCode) == "" {
			return ErrMissingRoomCode
		}
	case m.Leave != nil:
		if strings.TrimSpace(m.Leave.RoomCode) == "" {
			return ErrMissingRoomCode
		}
	case m.Offer != nil:
		return m.Offer.validate(true, m.Offer.Offer)
	case m.Answer != nil:
		return m.Answer.validate(true, m.Answer.Answer)
	case m.IceCandidate != nil:
		// candidates may be sent before the client knows which room it is in
		return m.IceCandidate.validate(false, m.IceCandidate.Candidate)
	}
	return nil
}

func (s *Signal) validate(requireRoom bool, payload json.RawMessage) error {
	if requireRoom && strings.TrimSpace(s.RoomCode) == "" {
		return ErrMissingRoomCode
	}
	if s.TargetId == "" {
		return ErrMissingTarget
	}
	if len(payload) == 0 || string(payload) == "null" {
		return ErrMissingPayload
	}
	return nil
}

type ServerMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type ParticipantInfo struct {
	ConnectionId string `json:"connectionId"`
	IsHost       bool   `json:"isHost"`
	Email        string `json:"email,omitempty"`
}

type Connected struct {
	ConnectionId string `json:"connectionId"`
	Email        string `json:"email,omitempty"`
}

type RoomJoined struct {
	RoomCode     string            `json:"roomCode"`
	Participants []ParticipantInfo `json:"participants"`
}

type UserLeft struct {
	ConnectionId string `json:"connectionId"`
	IsHost       bool   `json:"isHost"`
}

type HostAssigned struct {
	RoomCode string `json:"roomCode"`
	IsHost   bool   `json:"isHost"`
}

type HostChanged struct {
	NewHostConnectionId string `json:"newHostConnectionId"`
	NewHostEmail        string `json:"newHostEmail,omitempty"`
}

// RelayedSignal is what the target of an offer, answer or candidate receives.
type RelayedSignal struct {
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	FromId    string          `json:"fromId"`
}

func NewConnected(c *Client) *ServerMessage {
	msg := Connected{ConnectionId: c.id}
	if c.identity != nil {
		msg.Email = c.identity.Email
	}
	return &ServerMessage{Event: EventConnected, Data: msg}
}

func NewRoomJoined(code string, participants []ParticipantInfo) *ServerMessage {
	return &ServerMessage{
		Event: EventRoomJoined,
		Data:  RoomJoined{RoomCode: code, Participants: participants},
	}
}

func NewUserJoined(p ParticipantInfo) *ServerMessage {
	return &ServerMessage{Event: EventUserJoined, Data: p}
}

func NewUserLeft(connectionId string, isHost bool) *ServerMessage {
	return &ServerMessage{
		Event: EventUserLeft,
		Data:  UserLeft{ConnectionId: connectionId, IsHost: isHost},
	}
}

func NewHostAssigned(code string) *ServerMessage {
	return &ServerMessage{
		Event: EventHostAssigned,
		Data:  HostAssigned{RoomCode: code, IsHost: true},
	}
}

func NewHostChanged(p ParticipantInfo) *ServerMessage {
	return &ServerMessage{
		Event: EventHostChanged,
		Data: HostChanged{
			NewHostConnectionId: p.ConnectionId,
			NewHostEmail:        p.Email,
		},
	}
}

// NewRelayedSignal builds the event delivered to the target of a relay. The
// source is identified only by its connection id.
func NewRelayedSignal(event string, s *Signal, fromId string) *ServerMessage {
	relayed := RelayedSignal{FromId: fromId}
	switch event {
	case EventOffer:
		relayed.Offer = s.Offer
	case EventAnswer:
		relayed.Answer = s.Answer
	case EventIceCandidate:
		relayed.Candidate = s.Candidate
	}
	return &ServerMessage{Event: event, Data: relayed}
}
