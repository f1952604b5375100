package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"community-game-bot/internal/game/rps"
)

var _ rps.Presenter = (*DiscordPresenter)(nil)

// Custom ids carried by components and modals. Arguments follow the prefix,
// separated by underscores.
const (
	CommandName = "rps"

	idMenuChallenge = "rps_menu_challenge"
	idMenuList      = "rps_menu_list"
	idMenuAI        = "rps_menu_ai"
	idSelectTarget  = "rps_select_opponent"
	idAIWagerModal  = "rps_aiwager"
	idWagerInput    = "amount"

	prefixWagerModal = "rps_wager_"
	prefixAccept     = "rps_accept_"
	prefixDecline    = "rps_decline_"
	prefixChoice     = "rps_choice_"
	prefixForfeit    = "rps_forfeit_"

	maxListedChallenges = 5
)

// Commands returns the application commands to register.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{{
		Name:        CommandName,
		Description: "Play Rock, Paper, Scissors - Best of 3 with betting!",
	}}
}

// DiscordHandler routes Discord interactions to the rps controller.
type DiscordHandler struct {
	ctrl *rps.Controller
	api  DiscordAPI
}

// NewDiscordHandler creates a new DiscordHandler.
func NewDiscordHandler(ctrl *rps.Controller, api DiscordAPI) *DiscordHandler {
	return &DiscordHandler{ctrl: ctrl, api: api}
}

// Handle dispatches one interaction.
func (h *DiscordHandler) Handle(ctx context.Context, i *discordgo.InteractionCreate) {
	if i.GuildID == "" {
		h.reply(i, "❌ This command can only be used in servers!")
		return
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if i.ApplicationCommandData().Name == CommandName {
			h.handleMenu(i)
		}
	case discordgo.InteractionMessageComponent:
		h.handleComponent(ctx, i)
	case discordgo.InteractionModalSubmit:
		h.handleModal(ctx, i)
	}
}

func (h *DiscordHandler) handleMenu(i *discordgo.InteractionCreate) {
	h.respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
			Embeds: []*discordgo.MessageEmbed{{
				Title: "🎮 Rock, Paper, Scissors",
				Description: "Best of 3 rounds, winner takes the bet!\n\n" +
					"⚔️ **Challenge Someone** to a wagered match\n" +
					"📋 **View Challenges** sent to you\n" +
					"🤖 **Play vs AI** for a quick game",
				Color: colorInfo,
			}},
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.Button{Label: "⚔️ Challenge Someone", Style: discordgo.PrimaryButton, CustomID: idMenuChallenge},
					discordgo.Button{Label: "📋 View Challenges", Style: discordgo.SecondaryButton, CustomID: idMenuList},
					discordgo.Button{Label: "🤖 Play vs AI", Style: discordgo.SuccessButton, CustomID: idMenuAI},
				}},
			},
		},
	})
}

func (h *DiscordHandler) handleComponent(ctx context.Context, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	id := data.CustomID

	switch {
	case id == idMenuChallenge:
		h.respond(i, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Flags:   discordgo.MessageFlagsEphemeral,
				Content: "👥 Choose a user to challenge to Rock, Paper, Scissors!",
				Components: []discordgo.MessageComponent{
					discordgo.ActionsRow{Components: []discordgo.MessageComponent{
						discordgo.SelectMenu{
							MenuType:    discordgo.UserSelectMenu,
							CustomID:    idSelectTarget,
							Placeholder: "Select an opponent",
						},
					}},
				},
			},
		})

	case id == idSelectTarget:
		if len(data.Values) == 0 {
			return
		}
		target := data.Values[0]
		if u, ok := data.Resolved.Users[target]; ok && u.Bot {
			h.reply(i, notice(rps.ErrBotOpponent))
			return
		}
		h.respond(i, wagerModal(prefixWagerModal+target, "Place your bet"))

	case id == idMenuAI:
		h.respond(i, wagerModal(idAIWagerModal, "Bet against the AI"))

	case id == idMenuList:
		h.handleList(i)

	case strings.HasPrefix(id, prefixAccept):
		h.deferred(i, func() string {
			if _, err := h.ctrl.AcceptChallenge(ctx, actor(i).ID, strings.TrimPrefix(id, prefixAccept)); err != nil {
				return h.failure(err, i)
			}
			return "✅ Challenge accepted! The game has started."
		})

	case strings.HasPrefix(id, prefixDecline):
		h.deferred(i, func() string {
			if _, err := h.ctrl.DeclineChallenge(ctx, actor(i).ID, strings.TrimPrefix(id, prefixDecline)); err != nil {
				return h.failure(err, i)
			}
			return "Challenge declined."
		})

	case strings.HasPrefix(id, prefixChoice):
		matchID, mv, err := parseChoiceID(id)
		if err != nil {
			h.reply(i, notice(err))
			return
		}
		h.deferred(i, func() string {
			res, err := h.ctrl.SubmitMove(ctx, actor(i).ID, matchID, mv)
			if err != nil {
				return h.failure(err, i)
			}
			if res.AwaitingOpponent {
				return fmt.Sprintf("You chose %s. Waiting for your opponent...", moveLabel(mv))
			}
			return fmt.Sprintf("You chose %s!", moveLabel(mv))
		})

	case strings.HasPrefix(id, prefixForfeit):
		h.deferred(i, func() string {
			if _, err := h.ctrl.Forfeit(ctx, actor(i).ID, strings.TrimPrefix(id, prefixForfeit)); err != nil {
				if errors.Is(err, rps.ErrNotYourTurn) {
					return "❌ You can only forfeit on your turn!"
				}
				return h.failure(err, i)
			}
			return "🏳️ You forfeited the game."
		})
	}
}

func (h *DiscordHandler) handleList(i *discordgo.InteractionCreate) {
	pending := h.ctrl.ListChallenges(actor(i).ID)
	if len(pending) == 0 {
		h.reply(i, "You have no pending challenges.")
		return
	}

	var b strings.Builder
	var rows []discordgo.MessageComponent
	for n, c := range pending {
		if n == maxListedChallenges {
			break
		}
		fmt.Fprintf(&b, "**%s** - %d coins\n", c.ChallengerName, c.Wager)
		rows = append(rows, challengeButtons(c)...)
	}
	h.respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
			Embeds: []*discordgo.MessageEmbed{{
				Title:       "📋 Your Pending Challenges",
				Description: b.String(),
				Color:       colorInfo,
			}},
			Components: rows,
		},
	})
}

func (h *DiscordHandler) handleModal(ctx context.Context, i *discordgo.InteractionCreate) {
	data := i.ModalSubmitData()
	wager, err := parseWager(modalValue(data, idWagerInput))
	if err != nil {
		h.reply(i, notice(err))
		return
	}
	me := actor(i)

	switch {
	case data.CustomID == idAIWagerModal:
		h.deferred(i, func() string {
			_, err := h.ctrl.StartAIMatch(ctx, rps.AIMatchRequest{
				GuildID:   i.GuildID,
				ChannelID: i.ChannelID,
				Player:    me,
				Wager:     wager,
			})
			if err != nil {
				return h.failure(err, i)
			}
			return "🤖 Game against the AI started!"
		})

	case strings.HasPrefix(data.CustomID, prefixWagerModal):
		targetID := strings.TrimPrefix(data.CustomID, prefixWagerModal)
		h.deferred(i, func() string {
			target, err := h.lookupPlayer(targetID)
			if err != nil {
				log.Warn().Err(err).Str("user_id", targetID).Msg("Failed to look up opponent")
				return notice(err)
			}
			c, err := h.ctrl.IssueChallenge(ctx, rps.ChallengeRequest{
				GuildID:    i.GuildID,
				ChannelID:  i.ChannelID,
				Challenger: me,
				Opponent:   target,
				Wager:      wager,
			})
			if err != nil {
				return h.failure(err, i)
			}
			return fmt.Sprintf("✅ Challenge sent to %s for %d coins!", c.OpponentName, c.Wager)
		})
	}
}

func (h *DiscordHandler) lookupPlayer(userID string) (rps.Player, error) {
	u, err := h.api.User(userID)
	if err != nil {
		return rps.Player{}, err
	}
	return playerOf(u), nil
}

// deferred acknowledges the interaction ephemerally, runs fn and posts its
// text as the follow-up. Engine calls may render several messages first.
func (h *DiscordHandler) deferred(i *discordgo.InteractionCreate, fn func() string) {
	err := h.api.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		log.Warn().Err(err).Str("interaction_id", i.ID).Msg("Failed to defer interaction")
		return
	}

	text := fn()
	if _, err := h.api.FollowupMessageCreate(i.Interaction, false, &discordgo.WebhookParams{
		Content: text,
		Flags:   discordgo.MessageFlagsEphemeral,
	}); err != nil {
		log.Warn().Err(err).Str("interaction_id", i.ID).Msg("Failed to send follow-up")
	}
}

func (h *DiscordHandler) failure(err error, i *discordgo.InteractionCreate) string {
	if !isUserError(err) {
		log.Error().Err(err).Str("guild_id", i.GuildID).Str("user_id", actor(i).ID).Msg("RPS action failed")
	}
	return notice(err)
}

func (h *DiscordHandler) reply(i *discordgo.InteractionCreate, text string) {
	h.respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: text, Flags: discordgo.MessageFlagsEphemeral},
	})
}

func (h *DiscordHandler) respond(i *discordgo.InteractionCreate, resp *discordgo.InteractionResponse) {
	if err := h.api.InteractionRespond(i.Interaction, resp); err != nil {
		log.Warn().Err(err).Str("interaction_id", i.ID).Msg("Failed to respond to interaction")
	}
}

func actor(i *discordgo.InteractionCreate) rps.Player {
	if i.Member != nil && i.Member.User != nil {
		return playerOf(i.Member.User)
	}
	if i.User != nil {
		return playerOf(i.User)
	}
	return rps.Player{}
}

func playerOf(u *discordgo.User) rps.Player {
	name := u.GlobalName
	if name == "" {
		name = u.Username
	}
	return rps.Player{ID: u.ID, Name: name, IsBot: u.Bot}
}

func wagerModal(customID, title string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: customID,
			Title:    title,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:    idWagerInput,
						Label:       "Bet amount (coins)",
						Style:       discordgo.TextInputShort,
						Placeholder: "100",
						MinLength:   1,
						MaxLength:   12,
					},
				}},
			},
		},
	}
}

func modalValue(data discordgo.ModalSubmitInteractionData, inputID string) string {
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if in, ok := inner.(*discordgo.TextInput); ok && in.CustomID == inputID {
				return in.Value
			}
		}
	}
	return ""
}

func challengeButtons(c rps.Challenge) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    fmt.Sprintf("✅ Accept %s (%d)", c.ChallengerName, c.Wager),
				Style:    discordgo.SuccessButton,
				CustomID: prefixAccept + c.ID,
			},
			discordgo.Button{Label: "❌ Decline", Style: discordgo.DangerButton, CustomID: prefixDecline + c.ID},
		}},
	}
}

func moveButtons(matchID string) []discordgo.MessageComponent {
	row := discordgo.ActionsRow{}
	for _, mv := range rps.Moves {
		row.Components = append(row.Components, discordgo.Button{
			Label:    moveLabel(mv),
			Style:    discordgo.PrimaryButton,
			CustomID: choiceID(matchID, mv),
		})
	}
	row.Components = append(row.Components, discordgo.Button{
		Label:    "🏳️ Forfeit",
		Style:    discordgo.DangerButton,
		CustomID: prefixForfeit + matchID,
	})
	return []discordgo.MessageComponent{row}
}

func choiceID(matchID string, mv rps.Move) string {
	return prefixChoice + matchID + "_" + mv.String()
}

// parseChoiceID splits rps_choice_<match>_<move>.
func parseChoiceID(id string) (string, rps.Move, error) {
	rest := strings.TrimPrefix(id, prefixChoice)
	matchID, move, ok := strings.Cut(rest, "_")
	if !ok || matchID == "" {
		return "", 0, rps.ErrMatchNotFound
	}
	mv, err := rps.ParseMove(move)
	if err != nil {
		return "", 0, err
	}
	return matchID, mv, nil
}
