package handler

import "github.com/bwmarrin/discordgo"

// DiscordAPI is the subset of the Discord REST surface the adapters use.
type DiscordAPI interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend) (*discordgo.Message, error)
	ChannelMessageEditComplex(edit *discordgo.MessageEdit) (*discordgo.Message, error)
	UserChannelCreate(userID string) (*discordgo.Channel, error)
	User(userID string) (*discordgo.User, error)
	InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse) error
	FollowupMessageCreate(i *discordgo.Interaction, wait bool, params *discordgo.WebhookParams) (*discordgo.Message, error)
}

type sessionAPI struct {
	s *discordgo.Session
}

// NewSessionAPI exposes a gateway session as a DiscordAPI.
func NewSessionAPI(s *discordgo.Session) DiscordAPI {
	return sessionAPI{s: s}
}

func (a sessionAPI) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend) (*discordgo.Message, error) {
	return a.s.ChannelMessageSendComplex(channelID, data)
}

func (a sessionAPI) ChannelMessageEditComplex(edit *discordgo.MessageEdit) (*discordgo.Message, error) {
	return a.s.ChannelMessageEditComplex(edit)
}

func (a sessionAPI) UserChannelCreate(userID string) (*discordgo.Channel, error) {
	return a.s.UserChannelCreate(userID)
}

func (a sessionAPI) User(userID string) (*discordgo.User, error) {
	return a.s.User(userID)
}

func (a sessionAPI) InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	return a.s.InteractionRespond(i, resp)
}

func (a sessionAPI) FollowupMessageCreate(i *discordgo.Interaction, wait bool, params *discordgo.WebhookParams) (*discordgo.Message, error) {
	return a.s.FollowupMessageCreate(i, wait, params)
}
