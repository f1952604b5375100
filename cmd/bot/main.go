// Package main is the entry point for the community game bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"community-game-bot/internal/api"
	"community-game-bot/internal/bot"
	"community-game-bot/internal/config"
	"community-game-bot/internal/game/rps"
	"community-game-bot/internal/pkg/db"
	"community-game-bot/internal/pkg/ratelimit"
	"community-game-bot/internal/repository"
	"community-game-bot/internal/service"
	"community-game-bot/internal/worker"
)

const settleRetries = 3

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Log.Level).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Str("platform", cfg.Bot.Platform).Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := db.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories and services
	profileRepo := repository.NewProfileRepository(dbPool.Pool)
	matchRepo := repository.NewMatchRepository(dbPool.Pool)
	ledger := service.NewLedgerService(profileRepo, settleRetries)

	var opts []rps.Option
	redisClient, err := ratelimit.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to redis")
	}
	if redisClient != nil {
		defer redisClient.Close()
		opts = append(opts, rps.WithLimiter(
			ratelimit.NewChallengeLimiter(redisClient, cfg.RPS.ChallengeLimit, cfg.RPS.ChallengeWindow),
		))
		log.Info().Int("limit", cfg.RPS.ChallengeLimit).Dur("window", cfg.RPS.ChallengeWindow).Msg("Challenge rate limiting enabled")
	}

	platform, err := bot.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	ctrl := rps.NewController(engineConfig(cfg.RPS), ledger, matchRepo, platform.Presenter(), opts...)
	platform.Register(ctrl)

	sweeper := worker.NewSweeper(matchRepo, ctrl.Matches(), cfg.Sweeper.Interval, cfg.Sweeper.StaleAfter)
	if err := sweeper.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start sweeper")
	}
	defer sweeper.Stop()

	var ops *api.Server
	if cfg.HTTP.Addr != "" {
		ops = api.NewServer(cfg.HTTP.Addr, dbPool, matchRepo, repository.NewTransactionRepository(dbPool.Pool), ctrl.Matches())
		ops.Start()
	}

	if err := platform.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start bot")
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Int("live_matches", ctrl.Matches().Len()).Msg("Received shutdown signal")

	// Graceful shutdown
	platform.Stop()
	if ops != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		if err := ops.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Ops server forced to shutdown")
		}
		done()
	}
	log.Info().Msg("Bot stopped gracefully")
}

func engineConfig(c config.RPSConfig) rps.Config {
	return rps.Config{
		ChallengeTTL:      c.ChallengeTTL,
		TurnTimeout:       c.TurnTimeout,
		AIInitialTimeout:  c.AIInitialTimeout,
		AIRoundTimeout:    c.AIRoundTimeout,
		TurnPromptDelay:   c.TurnPromptDelay,
		RoundDelay:        c.RoundDelay,
		AnimationInterval: c.AnimationInterval,
		HistoryWindow:     c.HistoryWindow,
		MaxWager:          c.MaxWager,
		LockWait:          c.LockWait,
	}
}
