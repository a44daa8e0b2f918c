package database

import (
	"database/sql"
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationSource(t *testing.T) {
	src, err := migrationSource()
	require.NoError(t, err, "expected embedded migrations to load")
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	next, err := src.Next(first)
	require.NoError(t, err)
	assert.Equal(t, uint(2), next)

	_, err = src.Next(next)
	assert.ErrorIs(t, err, fs.ErrNotExist, "expected no migrations after rooms")
}

func TestMigrationsHaveDown(t *testing.T) {
	ups, err := fs.Glob(migrations, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrations, "migrations/*.down.sql")
	require.NoError(t, err)

	assert.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups), "every migration needs a down step")
}

func TestNotFound(t *testing.T) {
	assert.ErrorIs(t, notFound(sql.ErrNoRows), ErrNotFound)
	assert.NoError(t, notFound(nil))

	other := errors.New("connection refused")
	assert.Equal(t, other, notFound(other))
}

type fakeRow struct {
	values []any
	err    error
}

func (f fakeRow) Scan(dest ...any) error {
	if f.err != nil {
		return f.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int:
			*p = f.values[i].(int)
		case *string:
			*p = f.values[i].(string)
		case *bool:
			*p = f.values[i].(bool)
		case *time.Time:
			*p = f.values[i].(time.Time)
		case *sql.NullTime:
			if v, ok := f.values[i].(time.Time); ok {
				*p = sql.NullTime{Time: v, Valid: true}
			} else {
				*p = sql.NullTime{}
			}
		}
	}
	return nil
}

func TestScanRoom(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ended := created.Add(time.Hour)

	t.Run("active room", func(t *testing.T) {
		room, err := scanRoom(fakeRow{values: []any{1, "ABC123", "standup", 7, "host@example.com", true, created, nil}})
		require.NoError(t, err)
		assert.Equal(t, Room{
			Id:        1,
			Code:      "ABC123",
			Title:     "standup",
			HostId:    7,
			HostEmail: "host@example.com",
			IsActive:  true,
			CreatedAt: created,
		}, room)
	})

	t.Run("ended room", func(t *testing.T) {
		room, err := scanRoom(fakeRow{values: []any{1, "ABC123", "standup", 7, "host@example.com", false, created, ended}})
		require.NoError(t, err)
		require.NotNil(t, room.EndedAt)
		assert.Equal(t, ended, *room.EndedAt)
		assert.False(t, room.IsActive)
	})

	t.Run("scan error", func(t *testing.T) {
		_, err := scanRoom(fakeRow{err: sql.ErrNoRows})
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}

func TestConflict(t *testing.T) {
	err := conflict(&pq.Error{Code: uniqueViolationCode, Constraint: "accounts_email_key"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "accounts_email_key")

	other := &pq.Error{Code: "23503"}
	assert.Equal(t, error(other), conflict(other), "other postgres errors pass through")
	assert.NoError(t, conflict(nil))
}
