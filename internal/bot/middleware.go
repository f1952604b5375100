// Package bot wires the chat platform sessions to the handlers and provides
// their middleware.
package bot

import (
	"context"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"community-game-bot/internal/config"
)

// InteractionFunc handles one Discord interaction.
type InteractionFunc func(ctx context.Context, i *discordgo.InteractionCreate)

// InteractionMiddleware wraps an InteractionFunc.
type InteractionMiddleware func(next InteractionFunc) InteractionFunc

// Chain applies middleware so the first one listed runs outermost.
func Chain(h InteractionFunc, mws ...InteractionMiddleware) InteractionFunc {
	for n := len(mws) - 1; n >= 0; n-- {
		h = mws[n](h)
	}
	return h
}

// GuildWhitelist drops interactions from communities outside the whitelist.
// Direct-message interactions pass through; the handler answers them.
func GuildWhitelist(cfg *config.Config) InteractionMiddleware {
	return func(next InteractionFunc) InteractionFunc {
		return func(ctx context.Context, i *discordgo.InteractionCreate) {
			if i.GuildID != "" && !cfg.IsGuildAllowed(i.GuildID) {
				log.Debug().
					Str("guild_id", i.GuildID).
					Msg("Ignoring interaction from non-whitelisted guild")
				return
			}
			next(ctx, i)
		}
	}
}

// LogInteractions logs every incoming interaction.
func LogInteractions() InteractionMiddleware {
	return func(next InteractionFunc) InteractionFunc {
		return func(ctx context.Context, i *discordgo.InteractionCreate) {
			ev := log.Debug().
				Str("interaction_id", i.ID).
				Str("type", i.Type.String()).
				Str("guild_id", i.GuildID).
				Str("channel_id", i.ChannelID)
			if i.Member != nil && i.Member.User != nil {
				ev = ev.Str("user_id", i.Member.User.ID)
			} else if i.User != nil {
				ev = ev.Str("user_id", i.User.ID)
			}
			ev.Msg("Received interaction")
			next(ctx, i)
		}
	}
}

// RecoverInteractions keeps a panicking handler from taking the gateway down.
func RecoverInteractions() InteractionMiddleware {
	return func(next InteractionFunc) InteractionFunc {
		return func(ctx context.Context, i *discordgo.InteractionCreate) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Str("interaction_id", i.ID).
						Msg("Recovered from panic in interaction handler")
				}
			}()
			next(ctx, i)
		}
	}
}

// WhitelistMiddleware ignores group chats outside the whitelist. Group chat
// ids are the community ids on Telegram.
func WhitelistMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat := c.Chat()
			if chat == nil || c.Sender() == nil {
				return nil
			}
			if chat.Type == tele.ChatPrivate {
				return next(c)
			}
			if !cfg.IsGuildAllowed(strconv.FormatInt(chat.ID, 10)) {
				log.Debug().
					Int64("chat_id", chat.ID).
					Msg("Ignoring command from non-whitelisted chat")
				return nil
			}
			return next(c)
		}
	}
}

// LoggingMiddleware creates a middleware that logs all incoming messages.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			chat := c.Chat()

			logEvent := log.Debug()
			if sender != nil {
				logEvent = logEvent.
					Int64("user_id", sender.ID).
					Str("username", sender.Username)
			}
			if chat != nil {
				logEvent = logEvent.
					Int64("chat_id", chat.ID).
					Str("chat_type", string(chat.Type))
			}
			logEvent.
				Str("text", c.Text()).
				Msg("Received message")

			return next(c)
		}
	}
}

// RecoveryMiddleware creates a middleware that recovers from panics.
func RecoveryMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Msg("Recovered from panic in handler")
					err = c.Reply("❌ An internal error occurred, please try again later.")
				}
			}()
			return next(c)
		}
	}
}
