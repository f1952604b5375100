package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"community-game-bot/internal/config"
	"community-game-bot/internal/game/rps"
	"community-game-bot/internal/handler"
)

// Discord wraps the discordgo gateway session.
type Discord struct {
	session *discordgo.Session
	cfg     *config.Config
}

// NewDiscord creates a gateway session. It connects in Start.
func NewDiscord(cfg *config.Config) (*Discord, error) {
	if cfg.Discord.Token == "" {
		return nil, errors.New("discord token is required")
	}
	if cfg.Discord.AppID == "" {
		return nil, errors.New("discord app id is required")
	}

	s, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds

	return &Discord{session: s, cfg: cfg}, nil
}

// Presenter returns a presenter sending through this session.
func (d *Discord) Presenter() rps.Presenter {
	return handler.NewDiscordPresenter(handler.NewSessionAPI(d.session), d.cfg.RPS.ChallengeTTL)
}

// Register routes interactions through the middleware chain to the rps handler.
func (d *Discord) Register(ctrl *rps.Controller) {
	h := handler.NewDiscordHandler(ctrl, handler.NewSessionAPI(d.session))
	next := Chain(h.Handle,
		RecoverInteractions(),
		GuildWhitelist(d.cfg),
		LogInteractions(),
	)
	d.session.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		next(context.Background(), i)
	})
	d.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("Discord session ready")
	})
}

// Start opens the gateway and registers the slash commands.
func (d *Discord) Start() error {
	log.Info().Msg("Starting discord bot...")
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	cmds, err := d.session.ApplicationCommandBulkOverwrite(d.cfg.Discord.AppID, d.cfg.Discord.GuildID, handler.Commands())
	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}
	log.Info().Int("commands", len(cmds)).Str("guild_id", d.cfg.Discord.GuildID).Msg("Registered slash commands")
	return nil
}

// Stop closes the gateway.
func (d *Discord) Stop() {
	log.Info().Msg("Stopping discord bot...")
	if err := d.session.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close discord session")
	}
}
