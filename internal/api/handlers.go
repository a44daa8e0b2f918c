package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-callsignal/internal/auth"
	"github.com/npezzotti/go-callsignal/internal/signaling"
)

func (a *App) writeJson(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Error().Err(err).Msg("json encode")
	}
}

func (a *App) writeError(w http.ResponseWriter, errResp *ApiError) {
	if errResp.Err != nil {
		a.log.Error().Err(errResp.Err).Int("status", errResp.StatusCode).Msg("request failed")
	}
	a.writeJson(w, errResp.StatusCode, errResp)
}

func (a *App) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := a.db.Ping(); err != nil {
		a.writeError(w, NewInternalServerError(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (a *App) iceServers(w http.ResponseWriter, r *http.Request) {
	var label string
	if id, ok := IdentityFrom(r.Context()); ok {
		label = strconv.Itoa(id.UserId)
	}

	servers, err := a.turn.ICEServers(label)
	if err != nil {
		a.writeError(w, NewInternalServerError(err))
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	a.writeJson(w, http.StatusOK, servers)
}

func (a *App) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// non-browser clients send no origin
		return true
	}

	return slices.Contains(a.allowedOrigins, origin) || slices.Contains(a.allowedOrigins, "*")
}

// serveWs upgrades the request into a signaling connection. A missing
// credential connects a guest; an invalid one is refused before the upgrade.
func (a *App) serveWs(w http.ResponseWriter, r *http.Request) {
	identity, err := a.auth.Authenticate(auth.CredentialFromRequest(r))
	if err != nil {
		a.log.Warn().Err(err).Msg("rejected websocket credential")
		a.writeError(w, NewUnauthorizedError())
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: a.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Error().Err(err).Msg("error upgrading connection")
		return
	}

	client := signaling.NewClient(identity, conn, a.cs, a.log)
	a.cs.RegisterClient(client)
	go client.Write()
	go client.Read()
}
