package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"community-game-bot/internal/game/rps"
)

var _ rps.Presenter = (*TelegramPresenter)(nil)

// Callback uniques. Telebot encodes button data as "\f<unique>|<arg>|<arg>".
const (
	cbAccept  = "rps_accept"
	cbDecline = "rps_decline"
	cbMove    = "rps_move"
	cbForfeit = "rps_forfeit"
)

// TelegramHandler handles rock-paper-scissors commands and buttons.
type TelegramHandler struct {
	ctrl *rps.Controller
}

// NewTelegramHandler creates a new TelegramHandler.
func NewTelegramHandler(ctrl *rps.Controller) *TelegramHandler {
	return &TelegramHandler{ctrl: ctrl}
}

func telePlayer(u *tele.User) rps.Player {
	name := u.Username
	if name == "" {
		name = u.FirstName
	}
	return rps.Player{ID: strconv.FormatInt(u.ID, 10), Name: name, IsBot: u.IsBot}
}

func chatKey(chat *tele.Chat) string {
	return strconv.FormatInt(chat.ID, 10)
}

// HandleChallenge handles /rps <bet> sent as a reply to the opponent.
func (h *TelegramHandler) HandleChallenge(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	chat := c.Chat()
	if sender == nil || chat == nil {
		return nil
	}
	if chat.Type == tele.ChatPrivate {
		return c.Reply("❌ This command can only be used in groups!")
	}

	msg := c.Message()
	if msg == nil || msg.ReplyTo == nil || msg.ReplyTo.Sender == nil {
		return c.Reply("❌ Usage: reply to your opponent's message with /rps <bet>")
	}
	if len(c.Args()) == 0 {
		return c.Reply("❌ Usage: reply to your opponent's message with /rps <bet>")
	}
	wager, err := parseWager(c.Args()[0])
	if err != nil {
		return c.Reply(notice(err))
	}

	_, err = h.ctrl.IssueChallenge(ctx, rps.ChallengeRequest{
		GuildID:    chatKey(chat),
		ChannelID:  chatKey(chat),
		Challenger: telePlayer(sender),
		Opponent:   telePlayer(msg.ReplyTo.Sender),
		Wager:      wager,
	})
	if err != nil {
		return h.replyError(c, err)
	}
	return nil
}

// HandleAI handles /rps_ai <bet>.
func (h *TelegramHandler) HandleAI(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	chat := c.Chat()
	if sender == nil || chat == nil {
		return nil
	}
	if len(c.Args()) == 0 {
		return c.Reply("❌ Usage: /rps_ai <bet>")
	}
	wager, err := parseWager(c.Args()[0])
	if err != nil {
		return c.Reply(notice(err))
	}

	_, err = h.ctrl.StartAIMatch(ctx, rps.AIMatchRequest{
		GuildID:   chatKey(chat),
		ChannelID: chatKey(chat),
		Player:    telePlayer(sender),
		Wager:     wager,
	})
	if err != nil {
		return h.replyError(c, err)
	}
	return nil
}

// HandleList handles /rps_list, showing the sender's pending challenges.
func (h *TelegramHandler) HandleList(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	pending := h.ctrl.ListChallenges(strconv.FormatInt(sender.ID, 10))
	if len(pending) == 0 {
		return c.Reply("You have no pending challenges.")
	}

	markup := &tele.ReplyMarkup{}
	var rows []tele.Row
	var b strings.Builder
	b.WriteString("📋 Your pending challenges:\n\n")
	for n, ch := range pending {
		if n == maxListedChallenges {
			break
		}
		fmt.Fprintf(&b, "%s - %d coins\n", ch.ChallengerName, ch.Wager)
		rows = append(rows, challengeRow(markup, ch))
	}
	markup.Inline(rows...)
	return c.Reply(b.String(), markup)
}

// HandleCallback handles rps inline button presses.
func (h *TelegramHandler) HandleCallback(c tele.Context) error {
	ctx := context.Background()
	callback := c.Callback()
	sender := c.Sender()
	if callback == nil || sender == nil {
		return nil
	}

	parts := strings.Split(strings.TrimPrefix(callback.Data, "\f"), "|")
	if len(parts) < 2 {
		return c.Respond(&tele.CallbackResponse{Text: "❌ Invalid action"})
	}
	userID := strconv.FormatInt(sender.ID, 10)

	var err error
	text := ""
	switch parts[0] {
	case cbAccept:
		_, err = h.ctrl.AcceptChallenge(ctx, userID, parts[1])
		text = "✅ Challenge accepted!"
	case cbDecline:
		_, err = h.ctrl.DeclineChallenge(ctx, userID, parts[1])
		text = "Challenge declined."
	case cbMove:
		if len(parts) < 3 {
			return c.Respond(&tele.CallbackResponse{Text: "❌ Invalid action"})
		}
		var mv rps.Move
		if mv, err = rps.ParseMove(parts[2]); err == nil {
			var res rps.MoveResult
			res, err = h.ctrl.SubmitMove(ctx, userID, parts[1], mv)
			text = "You chose " + moveLabel(mv)
			if res.AwaitingOpponent {
				text += ". Waiting for your opponent..."
			}
		}
	case cbForfeit:
		_, err = h.ctrl.Forfeit(ctx, userID, parts[1])
		text = "🏳️ You forfeited the game."
	default:
		return c.Respond(&tele.CallbackResponse{Text: "❌ Invalid action"})
	}

	if err != nil {
		if !isUserError(err) {
			log.Error().Err(err).Str("user_id", userID).Str("action", parts[0]).Msg("RPS callback failed")
		}
		text = notice(err)
		if errors.Is(err, rps.ErrNotYourTurn) && parts[0] == cbForfeit {
			text = "❌ You can only forfeit on your turn!"
		}
		return c.Respond(&tele.CallbackResponse{Text: text, ShowAlert: true})
	}
	return c.Respond(&tele.CallbackResponse{Text: text})
}

func (h *TelegramHandler) replyError(c tele.Context, err error) error {
	if !isUserError(err) {
		log.Error().Err(err).Int64("user_id", c.Sender().ID).Msg("RPS command failed")
	}
	return c.Reply(notice(err))
}

func challengeRow(markup *tele.ReplyMarkup, ch rps.Challenge) tele.Row {
	return markup.Row(
		markup.Data(fmt.Sprintf("✅ Accept %s (%d)", ch.ChallengerName, ch.Wager), cbAccept, ch.ID),
		markup.Data("❌ Decline", cbDecline, ch.ID),
	)
}

func moveMarkup(matchID string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	var btns []tele.Btn
	for _, mv := range rps.Moves {
		btns = append(btns, markup.Data(moveLabel(mv), cbMove, matchID, mv.String()))
	}
	markup.Inline(
		markup.Row(btns...),
		markup.Row(markup.Data("🏳️ Forfeit", cbForfeit, matchID)),
	)
	return markup
}
