package database

import "time"

type User struct {
	Id           int
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Room is a scheduled call. Its Code is the key clients join with over the
// signaling socket.
type Room struct {
	Id        int
	Code      string
	Title     string
	HostId    int
	HostEmail string
	IsActive  bool
	CreatedAt time.Time
	EndedAt   *time.Time
}

type CreateAccountParams struct {
	EmailAddress string
	PasswordHash string
}

type CreateRoomParams struct {
	Code   string
	Title  string
	HostId int
}
