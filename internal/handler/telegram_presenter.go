package handler

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"community-game-bot/internal/game/rps"
)

// TelegramAPI is the part of *tele.Bot the presenter needs.
type TelegramAPI interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type telePrompt struct {
	msg  *tele.Message
	text string
}

// TelegramPresenter renders engine events into Telegram chats.
type TelegramPresenter struct {
	api          TelegramAPI
	challengeTTL time.Duration

	mu      sync.Mutex
	prompts map[string]telePrompt
}

// NewTelegramPresenter creates a presenter sending through api.
func NewTelegramPresenter(api TelegramAPI, challengeTTL time.Duration) *TelegramPresenter {
	return &TelegramPresenter{
		api:          api,
		challengeTTL: challengeTTL,
		prompts:      make(map[string]telePrompt),
	}
}

func recipient(id string) (tele.Recipient, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat id %q: %w", id, err)
	}
	return tele.ChatID(n), nil
}

func (p *TelegramPresenter) send(chatID, text string, opts ...interface{}) (*tele.Message, error) {
	to, err := recipient(chatID)
	if err != nil {
		return nil, err
	}
	return p.api.Send(to, text, opts...)
}

func (p *TelegramPresenter) ChallengeSent(_ context.Context, c rps.Challenge) error {
	markup := &tele.ReplyMarkup{}
	markup.Inline(challengeRow(markup, c))
	text := fmt.Sprintf("⚔️ %s\n\nOnly %s can accept or decline.", challengeText(c, p.challengeTTL), c.OpponentName)
	_, err := p.send(c.ChannelID, text, markup)
	return err
}

func (p *TelegramPresenter) ChallengeDeclined(_ context.Context, c rps.Challenge) error {
	_, err := p.send(c.ChannelID, fmt.Sprintf("❌ %s declined %s's challenge.", c.OpponentName, c.ChallengerName))
	return err
}

func (p *TelegramPresenter) MatchPrompt(_ context.Context, v rps.MatchView) error {
	p.retire(v.ID)

	text := fmt.Sprintf("🎮 Game %s\n%s\n\n⏰ %s left", v.ID, promptText(v), formatDuration(v.TimeLeft))
	msg, err := p.send(v.ChannelID, text, moveMarkup(v.ID))
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.prompts[v.ID] = telePrompt{msg: msg, text: text}
	p.mu.Unlock()
	return nil
}

func (p *TelegramPresenter) Choosing(_ context.Context, v rps.MatchView, frame int) error {
	p.mu.Lock()
	pr, ok := p.prompts[v.ID]
	p.mu.Unlock()
	if !ok {
		return nil
	}
	_, err := p.api.Edit(pr.msg, pr.text+"\n\n"+choosingText(v.Turn().Name, frame), moveMarkup(v.ID))
	return err
}

func (p *TelegramPresenter) RoundResult(_ context.Context, r rps.RoundView) error {
	p.retire(r.Match.ID)
	_, err := p.send(r.Match.ChannelID, "🎮 "+roundText(r))
	return err
}

func (p *TelegramPresenter) MatchOver(_ context.Context, r rps.ResultView) error {
	p.retire(r.Match.ID)
	_, err := p.send(r.Match.ChannelID, fmt.Sprintf("🎮 Game %s over\n\n%s", r.Match.ID, resultText(r)))
	return err
}

// SendDirectMessage writes to the user's private chat, which only works once
// the user has started the bot.
func (p *TelegramPresenter) SendDirectMessage(_ context.Context, userID string, dm rps.DirectMessage) error {
	_, err := p.send(userID, dmText(dm))
	return err
}

// retire removes the buttons from the match's last prompt.
func (p *TelegramPresenter) retire(matchID string) {
	p.mu.Lock()
	pr, ok := p.prompts[matchID]
	delete(p.prompts, matchID)
	p.mu.Unlock()
	if !ok {
		return
	}
	if _, err := p.api.Edit(pr.msg, pr.text, &tele.ReplyMarkup{}); err != nil {
		log.Debug().Err(err).Str("match_id", matchID).Msg("Failed to retire prompt buttons")
	}
}
