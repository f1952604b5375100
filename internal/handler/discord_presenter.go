package handler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"community-game-bot/internal/game/rps"
)

const (
	colorInfo = 0x5865F2
	colorWin  = 0x57F287
	colorTie  = 0xFEE75C
	colorLoss = 0xED4245
)

// promptMessage is the last prompt posted for a match; the waiting indicator
// edits it in place.
type promptMessage struct {
	channelID string
	messageID string
	embed     discordgo.MessageEmbed
}

// DiscordPresenter renders engine events into Discord channels and DMs.
type DiscordPresenter struct {
	api          DiscordAPI
	challengeTTL time.Duration

	mu      sync.Mutex
	prompts map[string]promptMessage
}

// NewDiscordPresenter creates a presenter posting through api.
func NewDiscordPresenter(api DiscordAPI, challengeTTL time.Duration) *DiscordPresenter {
	return &DiscordPresenter{
		api:          api,
		challengeTTL: challengeTTL,
		prompts:      make(map[string]promptMessage),
	}
}

func mention(userID string) string {
	return "<@" + userID + ">"
}

func (p *DiscordPresenter) ChallengeSent(_ context.Context, c rps.Challenge) error {
	_, err := p.api.ChannelMessageSendComplex(c.ChannelID, &discordgo.MessageSend{
		Content: mention(c.OpponentID),
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "🎮 Rock, Paper, Scissors Challenge!",
			Description: challengeText(c, p.challengeTTL),
			Color:       colorInfo,
		}},
		Components: challengeButtons(c),
	})
	return err
}

func (p *DiscordPresenter) ChallengeDeclined(_ context.Context, c rps.Challenge) error {
	_, err := p.api.ChannelMessageSendComplex(c.ChannelID, &discordgo.MessageSend{
		Content: mention(c.ChallengerID),
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "❌ Challenge Declined",
			Description: fmt.Sprintf("%s declined your challenge for %d coins.", c.OpponentName, c.Wager),
			Color:       colorLoss,
		}},
	})
	return err
}

func (p *DiscordPresenter) MatchPrompt(_ context.Context, v rps.MatchView) error {
	p.retire(v.ID)

	title := "🎮 Rock, Paper, Scissors"
	if v.Kind == rps.KindAI {
		title += " vs AI"
	}
	embed := discordgo.MessageEmbed{
		Title:       title,
		Description: fmt.Sprintf("%s\n\n⏰ Time runs out <t:%d:R>", promptText(v), v.Deadline.Unix()),
		Color:       colorInfo,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Game " + v.ID},
	}
	msg, err := p.api.ChannelMessageSendComplex(v.ChannelID, &discordgo.MessageSend{
		Content:    mention(v.TurnUserID),
		Embeds:     []*discordgo.MessageEmbed{&embed},
		Components: moveButtons(v.ID),
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.prompts[v.ID] = promptMessage{channelID: v.ChannelID, messageID: msg.ID, embed: embed}
	p.mu.Unlock()
	return nil
}

func (p *DiscordPresenter) Choosing(_ context.Context, v rps.MatchView, frame int) error {
	p.mu.Lock()
	pm, ok := p.prompts[v.ID]
	p.mu.Unlock()
	if !ok {
		return nil
	}

	embed := pm.embed
	embed.Description = pm.embed.Description + "\n\n" + choosingText(v.Turn().Name, frame)
	_, err := p.api.ChannelMessageEditComplex(discordgo.NewMessageEdit(pm.channelID, pm.messageID).SetEmbed(&embed))
	return err
}

func (p *DiscordPresenter) RoundResult(_ context.Context, r rps.RoundView) error {
	p.retire(r.Match.ID)

	color := colorWin
	title := fmt.Sprintf("🎮 Round %d Results", r.Round)
	if r.Outcome == rps.Tie {
		color = colorTie
		title = fmt.Sprintf("🎮 Round %d Results - Tie!", r.Round)
	}
	_, err := p.api.ChannelMessageSendComplex(r.Match.ChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       title,
			Description: roundText(r),
			Color:       color,
		}},
	})
	return err
}

func (p *DiscordPresenter) MatchOver(_ context.Context, r rps.ResultView) error {
	p.retire(r.Match.ID)

	color := colorWin
	if r.Winner.IsAI || r.SettlementFailed {
		color = colorLoss
	}
	_, err := p.api.ChannelMessageSendComplex(r.Match.ChannelID, &discordgo.MessageSend{
		Content: mention(r.Winner.UserID) + " " + mention(r.Loser.UserID),
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "🎮 Rock, Paper, Scissors - Game Over",
			Description: resultText(r),
			Color:       color,
			Footer:      &discordgo.MessageEmbedFooter{Text: "Game " + r.Match.ID},
		}},
	})
	return err
}

func (p *DiscordPresenter) SendDirectMessage(_ context.Context, userID string, dm rps.DirectMessage) error {
	ch, err := p.api.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("failed to open DM channel: %w", err)
	}
	_, err = p.api.ChannelMessageSendComplex(ch.ID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "🎮 Rock, Paper, Scissors",
			Description: dmText(dm),
			Color:       colorInfo,
		}},
	})
	return err
}

// retire strips the move buttons off the match's last prompt.
func (p *DiscordPresenter) retire(matchID string) {
	p.mu.Lock()
	pm, ok := p.prompts[matchID]
	delete(p.prompts, matchID)
	p.mu.Unlock()
	if !ok {
		return
	}

	edit := discordgo.NewMessageEdit(pm.channelID, pm.messageID)
	none := []discordgo.MessageComponent{}
	edit.Components = &none
	if _, err := p.api.ChannelMessageEditComplex(edit); err != nil {
		log.Debug().Err(err).Str("match_id", matchID).Msg("Failed to retire prompt buttons")
	}
}
