package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/npezzotti/go-callsignal/internal/database"
	"github.com/npezzotti/go-callsignal/internal/signaling"
	"github.com/npezzotti/go-callsignal/internal/types"
)

const maxRoomCodeAttempts = 3

type CreateRoomRequest struct {
	Title string `json:"title" validate:"required,max=255"`
}

func (a *App) toRoom(r database.Room) types.Room {
	return types.Room{
		Code:         r.Code,
		Title:        r.Title,
		HostEmail:    r.HostEmail,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt,
		EndedAt:      r.EndedAt,
		Participants: a.cs.ParticipantCount(r.Code),
	}
}

func (a *App) createRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		a.writeError(w, NewUnauthorizedError())
		return
	}

	var req CreateRoomRequest
	if errResp := a.decodeAndValidate(r, &req); errResp != nil {
		a.writeError(w, errResp)
		return
	}

	var (
		room database.Room
		err  error
	)
	for attempt := 0; attempt < maxRoomCodeAttempts; attempt++ {
		var code string
		code, err = a.newRoomCode()
		if err != nil {
			break
		}

		room, err = a.db.CreateRoom(database.CreateRoomParams{
			Code:   code,
			Title:  req.Title,
			HostId: id.UserId,
		})
		if !errors.Is(err, database.ErrConflict) {
			break
		}
		a.log.Warn().Str("room_code", code).Msg("room code collision, retrying")
	}
	if err != nil {
		a.writeError(w, NewInternalServerError(err))
		return
	}

	a.log.Info().Str("room_code", room.Code).Int("host_id", id.UserId).Msg("created room record")
	a.writeJson(w, http.StatusCreated, a.toRoom(room))
}

func (a *App) listRooms(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		a.writeError(w, NewUnauthorizedError())
		return
	}

	rooms, err := a.db.ListRoomsByHost(id.UserId)
	if err != nil {
		a.writeError(w, NewInternalServerError(err))
		return
	}

	resp := make([]types.Room, 0, len(rooms))
	for _, room := range rooms {
		resp = append(resp, a.toRoom(room))
	}

	a.writeJson(w, http.StatusOK, resp)
}

// lookupRoom fetches the record named by the roomCode path parameter.
func (a *App) lookupRoom(r *http.Request) (database.Room, *ApiError) {
	code := signaling.CanonicalCode(chi.URLParam(r, "roomCode"))
	if code == "" {
		return database.Room{}, NewBadRequestError()
	}

	room, err := a.db.GetRoomByCode(code)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return database.Room{}, NewNotFoundError()
		}
		return database.Room{}, NewInternalServerError(err)
	}

	return room, nil
}

func (a *App) getRoom(w http.ResponseWriter, r *http.Request) {
	room, errResp := a.lookupRoom(r)
	if errResp != nil {
		a.writeError(w, errResp)
		return
	}

	if !room.IsActive {
		a.writeError(w, NewGoneError())
		return
	}

	a.writeJson(w, http.StatusOK, a.toRoom(room))
}

func (a *App) endRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		a.writeError(w, NewUnauthorizedError())
		return
	}

	room, errResp := a.lookupRoom(r)
	if errResp != nil {
		a.writeError(w, errResp)
		return
	}

	if room.HostId != id.UserId {
		a.writeError(w, NewForbiddenError())
		return
	}

	if err := a.db.EndRoom(room.Id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			a.writeError(w, NewNotFoundError())
			return
		}
		a.writeError(w, NewInternalServerError(err))
		return
	}

	a.log.Info().Str("room_code", room.Code).Msg("ended room record")
	w.WriteHeader(http.StatusNoContent)
}
