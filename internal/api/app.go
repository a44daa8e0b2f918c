package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-callsignal/internal/auth"
	"github.com/npezzotti/go-callsignal/internal/config"
	"github.com/npezzotti/go-callsignal/internal/database"
	"github.com/npezzotti/go-callsignal/internal/signaling"
	"github.com/npezzotti/go-callsignal/internal/turn"
	"github.com/npezzotti/go-callsignal/internal/validator"
	"github.com/rs/zerolog"
	"github.com/teris-io/shortid"
)

// App is the HTTP surface: the signaling websocket plus the account, room
// record and ICE server endpoints around it.
type App struct {
	log            zerolog.Logger
	db             database.CallRepository
	srv            *http.Server
	cs             *signaling.SignalingServer
	auth           *auth.Authenticator
	turn           *turn.Provider
	validate       *validator.Validator
	allowedOrigins []string
	newRoomCode    func() (string, error)
}

// NewApp wires the router. metrics, when non-nil, is served at /debug/vars.
func NewApp(logger zerolog.Logger, cs *signaling.SignalingServer, db database.CallRepository, tp *turn.Provider, metrics http.Handler, cfg *config.Config) *App {
	a := &App{
		log:            logger,
		db:             db,
		cs:             cs,
		auth:           auth.NewAuthenticator(cfg.SigningKey),
		turn:           tp,
		validate:       validator.New(),
		allowedOrigins: cfg.AllowedOrigins,
		newRoomCode:    generateRoomCode,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.logRequests)

	r.Get("/healthz", a.healthCheck)
	r.Get("/ws", a.serveWs)
	r.With(a.optionalAuth).Get("/api/ice-servers", a.iceServers)

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/", a.createAccount)
		r.Post("/login", a.login)
		r.Post("/logout", a.logout)
		r.With(a.requireAuth).Get("/session", a.session)
	})

	r.Route("/api/rooms", func(r chi.Router) {
		r.Get("/{roomCode}", a.getRoom)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)
			r.Post("/", a.createRoom)
			r.Get("/", a.listRooms)
			r.Delete("/{roomCode}", a.endRoom)
		})
	})

	if metrics != nil {
		r.Method(http.MethodGet, "/debug/vars", metrics)
	}

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(r)

	h = a.errorHandler(h)

	a.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return a
}

func (a *App) Start() error {
	a.log.Info().Str("addr", a.srv.Addr).Msg("starting server")
	return a.srv.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info().Msg("shutting down HTTP server")
	if err := a.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

// generateRoomCode returns a short code that survives the upper-casing every
// client-supplied code goes through.
func generateRoomCode() (string, error) {
	code, err := shortid.Generate()
	if err != nil {
		return "", err
	}
	return strings.ToUpper(code), nil
}
