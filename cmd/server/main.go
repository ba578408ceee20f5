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

	router "github.com/maloy23073-dotcom/PP1-telegram-bot/internal/adapters/http"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/adapters/notify"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/adapters/rtc"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/adapters/scheduler"
	sig "github.com/maloy23073-dotcom/PP1-telegram-bot/internal/adapters/signal"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/adapters/store"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/app"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/app/orch"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/config"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/core"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/metrics"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, v, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(cfg.Level())
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	config.Watch(v, func(next *config.Config) {
		zerolog.SetGlobalLevel(next.Level())
	})

	iceServers, err := rtc.ICEServers(cfg.ICEServers)
	if err != nil {
		return err
	}

	calls, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer calls.Close()

	clock := core.RealClock{}
	m := metrics.New()

	jobs, err := scheduler.NewGocron(clock)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	defer func() {
		if err := jobs.Shutdown(); err != nil {
			log.Error().Err(err).Msg("scheduler shutdown")
		}
	}()

	var notifier core.Notifier = notify.LogNotifier{}
	if cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.APIURL, cfg.Telegram.Token)
		if err != nil {
			return err
		}
		notifier = tg
	}

	policy, err := app.PolicyByName(cfg.Backpressure)
	if err != nil {
		return err
	}

	reg := app.NewRegistry(calls, jobs, clock, app.RegistryConfig{
		CodeAttempts: cfg.Calls.CodeAttempts,
		WarnBefore:   cfg.Calls.WarnBefore,
	}, m)

	o := &orch.Orchestrator{
		Registry:    reg,
		Rooms:       app.NewRoomManager(reg, policy, clock, m),
		Notifier:    notifier,
		Metrics:     m,
		AdminSecret: cfg.AdminSecret,
		PruneAfter:  cfg.Calls.PruneAfter,
	}
	// catch up on calls that ended while the process was down, then queue
	// the jobs of the rest: the scheduler does not persist them
	o.Sweep(ctx)
	if _, err := reg.Reschedule(ctx); err != nil {
		return err
	}
	jobs.Start(ctx, o.HandleJob)
	go o.RunSweeper(ctx, cfg.Calls.SweepInterval)

	ctl := sig.NewSignalWSController(o, sig.Options{
		ReadLimit:         cfg.ReadLimit,
		PingPeriod:        cfg.PingPeriod,
		WriteWait:         cfg.WriteWait,
		SendBuffer:        cfg.SendBuffer,
		ValidateSDP:       cfg.ValidateSDP,
		MessagesPerSecond: cfg.Limits.MessagesPerSecond,
		MessageBurst:      cfg.Limits.MessageBurst,
		JoinsPerMinute:    cfg.Limits.JoinsPerMinute,
	}, m)

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Orch:       o,
		Signal:     ctl,
		Metrics:    m,
		ICEServers: iceServers,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("call server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
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
	return nil
}
