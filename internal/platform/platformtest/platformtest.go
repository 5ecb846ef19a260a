// Package platformtest provides an in-memory Client for exercising
// moderation logic without a live gateway connection.
package platformtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"plugbot/internal/platform"
)

type SentMessage struct {
	ChannelID string
	Content   string
}

type RoleChange struct {
	GuildID string
	UserID  string
	RoleID  string
}

// Fake records every call so tests can assert on side effects. The zero
// value grants all capabilities and succeeds on every operation.
type Fake struct {
	mu sync.Mutex

	DeniedCapabilities map[platform.Capability]bool
	FailSend           error
	FailDelete         error
	FailDeleteFor      map[string]error
	FailCreateRole     error
	FailKick           error
	FailBan            error
	FailAddRole        error
	FailRemoveRole     error

	Roles    map[string][]platform.Role
	Info     platform.GuildInfo
	Members  map[string]platform.Member
	Channels []platform.Channel
	Recent   []platform.Message

	Sent         []SentMessage
	Deleted      []string
	BulkDeletes  []int
	Reactions    []string
	Kicked       []string
	Banned       []string
	RolesAdded   []RoleChange
	RolesRemoved []RoleChange
	Slowmodes    map[string]int
	CreatedRoles []platform.Role

	nextID int
}

var _ platform.Client = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		Roles:     make(map[string][]platform.Role),
		Members:   make(map[string]platform.Member),
		Slowmodes: make(map[string]int),
	}
}

func (f *Fake) HasCapability(_, _, _ string, capability platform.Capability) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.DeniedCapabilities[capability]
}

func (f *Fake) SendMessage(_ context.Context, channelID, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSend != nil {
		return "", f.FailSend
	}
	f.nextID++
	f.Sent = append(f.Sent, SentMessage{ChannelID: channelID, Content: content})
	return fmt.Sprintf("msg-%d", f.nextID), nil
}

func (f *Fake) DeleteMessage(_ context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailDelete != nil {
		return f.FailDelete
	}
	if err, ok := f.FailDeleteFor[messageID]; ok {
		return err
	}
	f.Deleted = append(f.Deleted, channelID+"/"+messageID)
	return nil
}

func (f *Fake) BulkDelete(_ context.Context, _ string, amount int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BulkDeletes = append(f.BulkDeletes, amount)
	return amount, nil
}

func (f *Fake) RecentMessages(_ context.Context, _ string, limit int) ([]platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	messages := f.Recent
	if len(messages) > limit {
		messages = messages[:limit]
	}
	return append([]platform.Message(nil), messages...), nil
}

func (f *Fake) React(_ context.Context, _, messageID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reactions = append(f.Reactions, messageID+":"+emoji)
	return nil
}

func (f *Fake) KickMember(_ context.Context, _, userID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailKick != nil {
		return f.FailKick
	}
	f.Kicked = append(f.Kicked, userID)
	return nil
}

func (f *Fake) BanMember(_ context.Context, _, userID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailBan != nil {
		return f.FailBan
	}
	f.Banned = append(f.Banned, userID)
	return nil
}

func (f *Fake) AddRole(_ context.Context, guildID, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailAddRole != nil {
		return f.FailAddRole
	}
	f.RolesAdded = append(f.RolesAdded, RoleChange{GuildID: guildID, UserID: userID, RoleID: roleID})
	return nil
}

func (f *Fake) RemoveRole(_ context.Context, guildID, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailRemoveRole != nil {
		return f.FailRemoveRole
	}
	f.RolesRemoved = append(f.RolesRemoved, RoleChange{GuildID: guildID, UserID: userID, RoleID: roleID})
	return nil
}

func (f *Fake) SetSlowmode(_ context.Context, channelID string, seconds int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Slowmodes[channelID] = seconds
	return nil
}

func (f *Fake) CreateRole(_ context.Context, guildID, name string) (platform.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreateRole != nil {
		return platform.Role{}, f.FailCreateRole
	}
	f.nextID++
	role := platform.Role{ID: fmt.Sprintf("role-%d", f.nextID), Name: name}
	f.Roles[guildID] = append(f.Roles[guildID], role)
	f.CreatedRoles = append(f.CreatedRoles, role)
	return role, nil
}

func (f *Fake) GuildRoles(_ context.Context, guildID string) ([]platform.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.Role(nil), f.Roles[guildID]...), nil
}

func (f *Fake) TextChannels(_ context.Context, _ string) ([]platform.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.Channel(nil), f.Channels...), nil
}

func (f *Fake) GuildInfo(_ context.Context, _ string) (platform.GuildInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Info, nil
}

func (f *Fake) Member(_ context.Context, _, userID string) (platform.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if member, ok := f.Members[userID]; ok {
		return member, nil
	}
	return platform.Member{}, errors.New("unknown member")
}

// LastSent returns the content of the most recent message, or "" when
// nothing was sent.
func (f *Fake) LastSent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sent) == 0 {
		return ""
	}
	return f.Sent[len(f.Sent)-1].Content
}

// SentContaining reports whether any sent message contains the substring.
func (f *Fake) SentContaining(substring string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, message := range f.Sent {
		if strings.Contains(message.Content, substring) {
			return true
		}
	}
	return false
}
