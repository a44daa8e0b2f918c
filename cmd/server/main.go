package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/npezzotti/go-callsignal/internal/api"
	"github.com/npezzotti/go-callsignal/internal/config"
	"github.com/npezzotti/go-callsignal/internal/database"
	"github.com/npezzotti/go-callsignal/internal/signaling"
	"github.com/npezzotti/go-callsignal/internal/stats"
	"github.com/npezzotti/go-callsignal/internal/turn"
	"github.com/rs/zerolog"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*s = append(*s, v)
		}
	}
	return nil
}

var (
	addr           string
	dsn            string
	signingKey     string
	allowedOrigins stringSliceFlag
	reapInterval   time.Duration
	roomGrace      time.Duration
	stunURLs       stringSliceFlag
	turnURLs       stringSliceFlag
	turnSecret     string
	turnTTL        time.Duration
	debug          bool
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.DurationVar(&reapInterval, "reap-interval", config.DefaultReapInterval, "how often empty rooms are swept")
	flag.DurationVar(&roomGrace, "room-grace", config.DefaultRoomGracePeriod, "how long a room may stay empty before it is swept")
	flag.Var(&stunURLs, "stun-urls", "comma-separated STUN server urls")
	flag.Var(&turnURLs, "turn-urls", "comma-separated TURN server urls")
	flag.StringVar(&turnSecret, "turn-secret", "", "shared secret for TURN REST credentials")
	flag.DurationVar(&turnTTL, "turn-ttl", config.DefaultTurnTTL, "lifetime of issued TURN credentials")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Str("service", "callsignal").
		Logger()

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins)
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}
	cfg.ReapInterval = reapInterval
	cfg.RoomGracePeriod = roomGrace
	cfg.StunURLs = stunURLs
	cfg.TurnURLs = turnURLs
	cfg.TurnSecret = turnSecret
	cfg.TurnTTL = turnTTL
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	dbConn, err := database.NewPgCallRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("db open")
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error().Err(err).Msg("db close")
		}
	}()

	applied, err := dbConn.Migrate()
	if err != nil {
		logger.Fatal().Err(err).Msg("db migrate")
	}
	logger.Info().Bool("applied", applied).Msg("database schema up to date")

	tp, err := turn.NewProvider(turn.Config{
		StunURLs: cfg.StunURLs,
		TurnURLs: cfg.TurnURLs,
		Secret:   cfg.TurnSecret,
		TTL:      cfg.TurnTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("turn provider")
	}
	logger.Info().Bool("turn", cfg.TurnEnabled()).Int("stun_urls", len(cfg.StunURLs)).Msg("ice servers configured")

	statsUpdater := stats.NewStatsUpdater()

	signalingServer, err := signaling.NewSignalingServer(logger, statsUpdater, cfg.ReapInterval, cfg.RoomGracePeriod)
	if err != nil {
		logger.Fatal().Err(err).Msg("new signaling server")
	}

	srv := api.NewApp(logger, signalingServer, dbConn, tp, statsUpdater.Handler(), cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go signalingServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info().Str("signal", sig.String()).Msg("received signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server")
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown")
	}

	logger.Info().Msg("shutting down signaling server")
	if err := signalingServer.Shutdown(shutDownCtx); err != nil {
		logger.Error().Err(err).Msg("signaling server shutdown")
	}

	logger.Info().Msg("shutdown complete")
}
