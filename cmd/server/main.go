package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/adapters/broadcast"
	"github.com/dkeye/Pulse/internal/adapters/directory"
	router "github.com/dkeye/Pulse/internal/adapters/http"
	"github.com/dkeye/Pulse/internal/adapters/ws"
	"github.com/dkeye/Pulse/internal/app"
	"github.com/dkeye/Pulse/internal/config"
	"github.com/dkeye/Pulse/internal/core"
	"github.com/dkeye/Pulse/internal/metrics"
	"github.com/dkeye/Pulse/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	st := buildStore(cfg)
	broadcaster := buildBroadcaster(cfg)
	dir := directory.NewMemory()
	mx := metrics.New()

	presence := app.NewPresenceTracker(st, broadcaster, dir, mx, cfg.Store.SessionTTL, cfg.Presence.IdleAfter)
	voice := app.NewVoiceRoomRegistry()
	relay := app.NewSignalingRelay(broadcaster, mx)
	sessions := app.NewSessionTable()
	coordinator := &app.DisconnectCoordinator{
		Sessions:    sessions,
		Presence:    presence,
		Voice:       voice,
		Broadcaster: broadcaster,
	}

	sweeper := &app.Sweeper{
		Presence:       presence,
		IdleInterval:   cfg.Presence.IdleSweepInterval,
		ExpiryInterval: cfg.Presence.ExpirySweepInterval,
	}
	go sweeper.Run(ctx)

	ctl := &ws.Controller{
		Presence:    presence,
		Voice:       voice,
		Relay:       relay,
		Sessions:    sessions,
		Coordinator: coordinator,
		Directory:   dir,
		Broadcaster: broadcaster,
		Mx:          mx,
		ReadLimit:   cfg.ReadLimit,
		PingPeriod:  cfg.PingPeriod,
	}

	r := router.SetupRouter(ctx, cfg, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Pulse server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

// buildStore selects the StateStore backend. When the shared backend is
// configured but unreachable the server degrades to the local backend
// instead of refusing to boot; a reachable shared backend is still wrapped
// in the failover so later outages degrade the same way.
func buildStore(cfg *config.Config) store.Store {
	local := store.NewLocal()
	if cfg.Store.Backend != "nats" {
		log.Info().Str("module", "main").Msg("using local state store")
		return local
	}
	shared, err := store.DialNATS(cfg.Store.NatsURL, cfg.Store.Bucket, cfg.Store.SessionTTL)
	if err != nil {
		log.Warn().Str("module", "main").Err(err).Msg("shared state store unreachable, degrading to local")
		return local
	}
	return store.NewFailover(shared, local)
}

func buildBroadcaster(cfg *config.Config) core.Broadcaster {
	switch cfg.Broker.Kind {
	case "nats":
		b, err := broadcast.DialNATS(cfg.Broker.NatsURL)
		if err != nil {
			log.Warn().Str("module", "main").Err(err).Msg("nats broker unreachable, events will only be logged")
			return broadcast.NewLogPublisher()
		}
		return b
	case "amqp":
		b, err := broadcast.DialAMQP(cfg.Broker.AmqpURL, cfg.Broker.Exchange)
		if err != nil {
			log.Warn().Str("module", "main").Err(err).Msg("amqp broker unreachable, events will only be logged")
			return broadcast.NewLogPublisher()
		}
		return b
	default:
		return broadcast.NewLogPublisher()
	}
}
