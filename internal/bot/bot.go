package bot

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"community-game-bot/internal/config"
	"community-game-bot/internal/game/rps"
	"community-game-bot/internal/handler"
)

// Platform is a chat platform connection the engine renders through.
type Platform interface {
	Presenter() rps.Presenter
	Register(ctrl *rps.Controller)
	Start() error
	Stop()
}

// New creates the connection for the configured platform.
func New(cfg *config.Config) (Platform, error) {
	switch cfg.Bot.Platform {
	case config.PlatformDiscord:
		return NewDiscord(cfg)
	case config.PlatformTelegram:
		return NewTelegram(cfg)
	default:
		return nil, fmt.Errorf("unsupported bot platform %q", cfg.Bot.Platform)
	}
}

// Telegram wraps the telebot instance.
type Telegram struct {
	bot *tele.Bot
	cfg *config.Config
}

// NewTelegram creates a long-polling Telegram bot.
func NewTelegram(cfg *config.Config) (*Telegram, error) {
	if cfg.Telegram.Token == "" {
		return nil, errors.New("telegram token is required")
	}

	pref := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Telegram{bot: teleBot, cfg: cfg}, nil
}

// Presenter returns a presenter sending through this bot.
func (t *Telegram) Presenter() rps.Presenter {
	return handler.NewTelegramPresenter(t.bot, t.cfg.RPS.ChallengeTTL)
}

// Register installs middleware and the rps commands.
func (t *Telegram) Register(ctrl *rps.Controller) {
	t.bot.Use(RecoveryMiddleware())
	t.bot.Use(WhitelistMiddleware(t.cfg))
	t.bot.Use(LoggingMiddleware())

	h := handler.NewTelegramHandler(ctrl)
	t.bot.Handle("/rps", h.HandleChallenge)
	t.bot.Handle("/rps_ai", h.HandleAI)
	t.bot.Handle("/rps_list", h.HandleList)
	t.bot.Handle(tele.OnCallback, h.HandleCallback)
}

// Start polls in the background.
func (t *Telegram) Start() error {
	log.Info().Msg("Starting telegram bot...")
	go t.bot.Start()
	return nil
}

// Stop stops the bot gracefully.
func (t *Telegram) Stop() {
	log.Info().Msg("Stopping telegram bot...")
	t.bot.Stop()
}
