package platform

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
)

const muteRoleColor = 0x808080

// DiscordClient adapts a discordgo session to the Client interface.
type DiscordClient struct {
	session *discordgo.Session
}

func NewDiscordClient(session *discordgo.Session) *DiscordClient {
	return &DiscordClient{session: session}
}

func (c *DiscordClient) HasCapability(guildID, channelID, userID string, capability Capability) bool {
	permissions, err := c.session.UserChannelPermissions(userID, channelID)
	if err != nil {
		return false
	}
	if permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	var required int64
	switch capability {
	case CapabilityManageMessages:
		required = discordgo.PermissionManageMessages
	case CapabilityKickMembers:
		required = discordgo.PermissionKickMembers
	case CapabilityBanMembers:
		required = discordgo.PermissionBanMembers
	case CapabilityMuteMembers:
		required = discordgo.PermissionManageRoles
	case CapabilityManageChannels:
		required = discordgo.PermissionManageChannels
	default:
		return true
	}
	return permissions&required != 0
}

func (c *DiscordClient) SendMessage(_ context.Context, channelID, content string) (string, error) {
	message, err := c.session.ChannelMessageSend(channelID, content)
	if err != nil {
		return "", err
	}
	return message.ID, nil
}

// DeleteMessage treats an already-deleted message as success.
func (c *DiscordClient) DeleteMessage(_ context.Context, channelID, messageID string) error {
	err := c.session.ChannelMessageDelete(channelID, messageID)
	if isUnknownMessage(err) {
		return nil
	}
	return err
}

// BulkDelete removes up to amount recent messages from a channel and
// returns how many it targeted.
func (c *DiscordClient) BulkDelete(_ context.Context, channelID string, amount int) (int, error) {
	messages, err := c.session.ChannelMessages(channelID, amount, "", "", "")
	if err != nil {
		return 0, err
	}
	if len(messages) == 0 {
		return 0, nil
	}
	if len(messages) == 1 {
		err := c.session.ChannelMessageDelete(channelID, messages[0].ID)
		if err != nil && !isUnknownMessage(err) {
			return 0, err
		}
		return 1, nil
	}
	ids := make([]string, 0, len(messages))
	for _, message := range messages {
		ids = append(ids, message.ID)
	}
	if err := c.session.ChannelMessagesBulkDelete(channelID, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (c *DiscordClient) RecentMessages(_ context.Context, channelID string, limit int) ([]Message, error) {
	messages, err := c.session.ChannelMessages(channelID, limit, "", "", "")
	if err != nil {
		return nil, err
	}
	result := make([]Message, 0, len(messages))
	for _, message := range messages {
		result = append(result, Message{
			ID:        message.ID,
			ChannelID: message.ChannelID,
			AuthorID:  message.Author.ID,
			Content:   message.Content,
		})
	}
	return result, nil
}

func (c *DiscordClient) React(_ context.Context, channelID, messageID, emoji string) error {
	return c.session.MessageReactionAdd(channelID, messageID, emoji)
}

func (c *DiscordClient) KickMember(_ context.Context, guildID, userID, reason string) error {
	return c.session.GuildMemberDeleteWithReason(guildID, userID, reason)
}

func (c *DiscordClient) BanMember(_ context.Context, guildID, userID, reason string) error {
	return c.session.GuildBanCreateWithReason(guildID, userID, reason, 0)
}

func (c *DiscordClient) AddRole(_ context.Context, guildID, userID, roleID string) error {
	return c.session.GuildMemberRoleAdd(guildID, userID, roleID)
}

func (c *DiscordClient) RemoveRole(_ context.Context, guildID, userID, roleID string) error {
	return c.session.GuildMemberRoleRemove(guildID, userID, roleID)
}

func (c *DiscordClient) SetSlowmode(_ context.Context, channelID string, seconds int) error {
	_, err := c.session.ChannelEditComplex(channelID, &discordgo.ChannelEdit{
		RateLimitPerUser: &seconds,
	})
	return err
}

func (c *DiscordClient) CreateRole(_ context.Context, guildID, name string) (Role, error) {
	color := muteRoleColor
	role, err := c.session.GuildRoleCreate(guildID, &discordgo.RoleParams{
		Name:  name,
		Color: &color,
	})
	if err != nil {
		return Role{}, err
	}
	return Role{ID: role.ID, Name: role.Name}, nil
}

// GuildRoles lists a guild's roles without the implicit @everyone role.
func (c *DiscordClient) GuildRoles(_ context.Context, guildID string) ([]Role, error) {
	roles, err := c.session.GuildRoles(guildID)
	if err != nil {
		return nil, err
	}
	result := make([]Role, 0, len(roles))
	for _, role := range roles {
		if role.ID == guildID {
			continue
		}
		result = append(result, Role{ID: role.ID, Name: role.Name})
	}
	return result, nil
}

func (c *DiscordClient) TextChannels(_ context.Context, guildID string) ([]Channel, error) {
	channels, err := c.session.GuildChannels(guildID)
	if err != nil {
		return nil, err
	}
	var result []Channel
	for _, channel := range channels {
		if channel.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		result = append(result, Channel{ID: channel.ID, Name: channel.Name})
	}
	return result, nil
}

func (c *DiscordClient) GuildInfo(_ context.Context, guildID string) (GuildInfo, error) {
	guild, err := c.session.State.Guild(guildID)
	if err != nil {
		guild, err = c.session.Guild(guildID)
		if err != nil {
			return GuildInfo{}, err
		}
	}
	online := 0
	for _, presence := range guild.Presences {
		switch presence.Status {
		case discordgo.StatusOnline, discordgo.StatusIdle, discordgo.StatusDoNotDisturb:
			online++
		}
	}
	textChannels := 0
	for _, channel := range guild.Channels {
		if channel.Type == discordgo.ChannelTypeGuildText {
			textChannels++
		}
	}
	return GuildInfo{
		ID:       guild.ID,
		Name:     guild.Name,
		Members:  guild.MemberCount,
		Online:   online,
		Channels: textChannels,
	}, nil
}

func (c *DiscordClient) Member(_ context.Context, guildID, userID string) (Member, error) {
	member, err := c.session.State.Member(guildID, userID)
	if err != nil {
		member, err = c.session.GuildMember(guildID, userID)
		if err != nil {
			return Member{}, err
		}
	}
	display := member.Nick
	if display == "" && member.User != nil {
		display = member.User.Username
	}
	result := Member{ID: userID, DisplayName: display, Roles: member.Roles}
	if member.User != nil {
		result.Username = member.User.Username
	}
	return result, nil
}

func isUnknownMessage(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		return restErr.Message.Code == discordgo.ErrCodeUnknownMessage
	}
	return false
}
