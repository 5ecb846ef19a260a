// Package platform abstracts the chat platform behind a small client
// interface so moderation logic never inspects Discord permission bits or
// session state directly.
package platform

import "context"

type Capability int

const (
	CapabilityNone Capability = iota
	CapabilityManageMessages
	CapabilityKickMembers
	CapabilityBanMembers
	CapabilityMuteMembers
	CapabilityManageChannels
)

func (c Capability) String() string {
	switch c {
	case CapabilityManageMessages:
		return "manage_messages"
	case CapabilityKickMembers:
		return "kick_members"
	case CapabilityBanMembers:
		return "ban_members"
	case CapabilityMuteMembers:
		return "mute_members"
	case CapabilityManageChannels:
		return "manage_channels"
	default:
		return "none"
	}
}

type Member struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles"`
}

type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Message struct {
	ID        string
	ChannelID string
	AuthorID  string
	Content   string
}

type GuildInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Members  int    `json:"members"`
	Online   int    `json:"online"`
	Channels int    `json:"channels"`
}

// Client is the platform surface the bot depends on. Every method returns
// an error for transport failures; permission denials surface the same way.
type Client interface {
	HasCapability(guildID, channelID, userID string, capability Capability) bool

	SendMessage(ctx context.Context, channelID, content string) (string, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	BulkDelete(ctx context.Context, channelID string, amount int) (int, error)
	RecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error)
	React(ctx context.Context, channelID, messageID, emoji string) error

	KickMember(ctx context.Context, guildID, userID, reason string) error
	BanMember(ctx context.Context, guildID, userID, reason string) error
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
	SetSlowmode(ctx context.Context, channelID string, seconds int) error

	CreateRole(ctx context.Context, guildID, name string) (Role, error)
	GuildRoles(ctx context.Context, guildID string) ([]Role, error)
	TextChannels(ctx context.Context, guildID string) ([]Channel, error)
	GuildInfo(ctx context.Context, guildID string) (GuildInfo, error)
	Member(ctx context.Context, guildID, userID string) (Member, error)
}
