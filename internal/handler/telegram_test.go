package handler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"community-game-bot/internal/game/rps"
)

type teleCall struct {
	to   tele.Recipient
	text string
	opts []interface{}
}

type fakeTelegram struct {
	mu    sync.Mutex
	sends []teleCall
	edits []teleCall
}

func (f *fakeTelegram) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, teleCall{to: to, text: what.(string), opts: opts})
	return &tele.Message{ID: len(f.sends), Chat: &tele.Chat{ID: -100}}, nil
}

func (f *fakeTelegram) Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, teleCall{text: what.(string), opts: opts})
	return msg.(*tele.Message), nil
}

func teleMatch() rps.MatchView {
	return rps.MatchView{
		ID: "XYZ789", ChannelID: "-100", Round: 2, Wager: 30, TurnUserID: "2",
		Prompt:   rps.PromptSecondMover,
		Deadline: time.Date(2024, 1, 1, 12, 0, 45, 0, time.UTC),
		TimeLeft: 45 * time.Second,
		Sides:    [2]rps.SideView{{UserID: "1", Name: "alice", Wins: 1}, {UserID: "2", Name: "bob"}},
	}
}

func TestTelegramPresenter_PromptAndChoosing(t *testing.T) {
	api := &fakeTelegram{}
	p := NewTelegramPresenter(api, 3*time.Minute)
	ctx := context.Background()
	v := teleMatch()

	require.NoError(t, p.MatchPrompt(ctx, v))
	require.Len(t, api.sends, 1)
	assert.Equal(t, tele.ChatID(-100), api.sends[0].to)
	assert.Contains(t, api.sends[0].text, "alice has chosen. bob, it's your turn!")
	assert.Contains(t, api.sends[0].text, "Round 2/3")
	assert.Contains(t, api.sends[0].text, "⏰ 45s left")

	markup := api.sends[0].opts[0].(*tele.ReplyMarkup)
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Len(t, markup.InlineKeyboard[0], 3)

	require.NoError(t, p.Choosing(ctx, v, 1))
	require.Len(t, api.edits, 1)
	assert.Contains(t, api.edits[0].text, "bob is choosing.")

	require.NoError(t, p.RoundResult(ctx, rps.RoundView{Match: v, Round: 2, Moves: [2]rps.Move{rps.Rock, rps.Paper}, Outcome: rps.SideB}))
	require.Len(t, api.edits, 2, "round result retires the prompt")
	assert.Contains(t, api.sends[1].text, "bob wins round 2!")
}

func TestTelegramPresenter_ChallengeAndDM(t *testing.T) {
	api := &fakeTelegram{}
	p := NewTelegramPresenter(api, 3*time.Minute)
	ctx := context.Background()

	c := rps.Challenge{ID: "c-1", ChannelID: "-100", ChallengerName: "alice", OpponentName: "bob", Wager: 40}
	require.NoError(t, p.ChallengeSent(ctx, c))
	assert.Contains(t, api.sends[0].text, "Only bob can accept")
	assert.Contains(t, api.sends[0].text, "Expires in 3m0s")

	require.NoError(t, p.SendDirectMessage(ctx, "42", rps.DirectMessage{Kind: rps.DMTimeoutNotice, Won: true, OpponentName: "alice", Coins: 40}))
	assert.Equal(t, tele.ChatID(42), api.sends[1].to)

	assert.Error(t, p.SendDirectMessage(ctx, "not-a-number", rps.DirectMessage{}))
}
