package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const uniqueViolationCode = "23505"

const roomColumns = "r.id, r.code, r.title, r.host_id, a.email, r.is_active, r.created_at, r.ended_at"

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func conflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
		return fmt.Errorf("%w: %s", ErrConflict, pqErr.Constraint)
	}
	return err
}

func (db *PgCallRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (email, password_hash, created_at) "+
			"VALUES ($1, $2, $3) RETURNING id, email, created_at",
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.EmailAddress,
		&u.CreatedAt,
	)

	return u, conflict(err)
}

func (db *PgCallRepository) GetAccountById(id int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, email, created_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.EmailAddress,
		&user.CreatedAt,
	)

	return user, notFound(err)
}

func (db *PgCallRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, email, password_hash, created_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.EmailAddress,
		&user.PasswordHash,
		&user.CreatedAt,
	)

	return user, notFound(err)
}

func (db *PgCallRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	row := db.conn.QueryRow(
		"WITH r AS ("+
			"INSERT INTO rooms (code, title, host_id, created_at) VALUES ($1, $2, $3, $4) "+
			"RETURNING id, code, title, host_id, is_active, created_at, ended_at) "+
			"SELECT "+roomColumns+" FROM r JOIN accounts a ON a.id = r.host_id",
		params.Code,
		params.Title,
		params.HostId,
		time.Now().UTC(),
	)

	room, err := scanRoom(row)
	if err != nil {
		return Room{}, fmt.Errorf("create room: %w", conflict(err))
	}

	return room, nil
}

func (db *PgCallRepository) GetRoomByCode(code string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT "+roomColumns+" FROM rooms r "+
			"JOIN accounts a ON a.id = r.host_id "+
			"WHERE r.code = $1 LIMIT 1",
		code,
	)

	room, err := scanRoom(row)
	return room, notFound(err)
}

func (db *PgCallRepository) ListRoomsByHost(hostId int) ([]Room, error) {
	rows, err := db.conn.Query(
		"SELECT "+roomColumns+" FROM rooms r "+
			"JOIN accounts a ON a.id = r.host_id "+
			"WHERE r.host_id = $1 ORDER BY r.created_at, r.id",
		hostId,
	)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	rooms := []Room{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

// EndRoom marks a room inactive. Ending an already ended room is a no-op.
func (db *PgCallRepository) EndRoom(roomId int) error {
	res, err := db.conn.Exec(
		"UPDATE rooms SET is_active = FALSE, ended_at = COALESCE(ended_at, $2) "+
			"WHERE id = $1",
		roomId,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("end room: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(s scanner) (Room, error) {
	var (
		room    Room
		endedAt sql.NullTime
	)
	err := s.Scan(
		&room.Id,
		&room.Code,
		&room.Title,
		&room.HostId,
		&room.HostEmail,
		&room.IsActive,
		&room.CreatedAt,
		&endedAt,
	)
	if err != nil {
		return Room{}, err
	}

	if endedAt.Valid {
		room.EndedAt = &endedAt.Time
	}

	return room, nil
}
