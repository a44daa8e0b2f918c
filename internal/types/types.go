package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	EmailAddress string    `json:"email"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
}

type Room struct {
	Code      string     `json:"code"`
	Title     string     `json:"title"`
	HostEmail string     `json:"hostEmail"`
	IsActive  bool       `json:"isActive"`
	CreatedAt time.Time  `json:"createdAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	// Participants is the number of connections currently in the live room.
	Participants int `json:"participants"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
