// Package dispatcher turns normalized commands into moderation actions.
// Prefix and slash invocations arrive here as the same Command value, so
// every gate, clamp, and reply behaves identically for both.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"plugbot/internal/modules/audit"
	"plugbot/internal/mute"
	"plugbot/internal/platform"
	"plugbot/internal/settings"
	"plugbot/internal/storage"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindPing
	KindEcho
	KindDashboard
	KindServerInfo
	KindUserInfo
	KindClear
	KindKick
	KindBan
	KindPoll
	KindSettings
	KindWarn
	KindMute
	KindUnmute
	KindSlowmode
	KindPurgeUser
	KindAnnounce
)

var kindNames = map[string]Kind{
	"ping":       KindPing,
	"echo":       KindEcho,
	"dashboard":  KindDashboard,
	"serverinfo": KindServerInfo,
	"userinfo":   KindUserInfo,
	"clear":      KindClear,
	"kick":       KindKick,
	"ban":        KindBan,
	"poll":       KindPoll,
	"settings":   KindSettings,
	"warn":       KindWarn,
	"mute":       KindMute,
	"unmute":     KindUnmute,
	"slowmode":   KindSlowmode,
	"purgeuser":  KindPurgeUser,
	"announce":   KindAnnounce,
}

func ParseKind(name string) Kind {
	return kindNames[strings.ToLower(name)]
}

// Command is a fully parsed invocation, independent of how it arrived.
type Command struct {
	Kind      Kind
	GuildID   string
	ChannelID string
	ActorID   string
	TargetID  string
	Reason    string
	Text      string
	Amount    int
	Minutes   int
	Seconds   int
}

type Reply struct {
	Content   string
	Ephemeral bool
}

type Dispatcher struct {
	client           platform.Client
	settings         *settings.Service
	store            *storage.Store
	mutes            *mute.Manager
	audit            *audit.Sink
	logger           *zap.Logger
	dashboardURL     string
	warnForgiveAfter time.Duration

	mu       sync.Mutex
	counters map[string]int
}

func New(client platform.Client, service *settings.Service, store *storage.Store, mutes *mute.Manager, sink *audit.Sink, dashboardURL string, warnForgiveAfter time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		client:           client,
		settings:         service,
		store:            store,
		mutes:            mutes,
		audit:            sink,
		logger:           logger,
		dashboardURL:     dashboardURL,
		warnForgiveAfter: warnForgiveAfter,
		counters:         make(map[string]int),
	}
}

// CommandCount reports how many commands a guild has dispatched since the
// process started.
func (d *Dispatcher) CommandCount(guildID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counters[guildID]
}

func capabilityFor(kind Kind) platform.Capability {
	switch kind {
	case KindClear, KindPurgeUser:
		return platform.CapabilityManageMessages
	case KindKick, KindWarn:
		return platform.CapabilityKickMembers
	case KindBan:
		return platform.CapabilityBanMembers
	case KindMute, KindUnmute:
		return platform.CapabilityMuteMembers
	case KindSlowmode:
		return platform.CapabilityManageChannels
	default:
		return platform.CapabilityNone
	}
}

func needsTarget(kind Kind) bool {
	switch kind {
	case KindKick, KindBan, KindWarn, KindMute, KindUnmute, KindPurgeUser:
		return true
	default:
		return false
	}
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

// Dispatch runs one command and returns the reply for the invoker. Failed
// actions answer with a generic error and are never audit-logged.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) Reply {
	d.mu.Lock()
	d.counters[cmd.GuildID]++
	d.mu.Unlock()

	if required := capabilityFor(cmd.Kind); required != platform.CapabilityNone {
		if !d.client.HasCapability(cmd.GuildID, cmd.ChannelID, cmd.ActorID, required) {
			return Reply{Content: "You do not have permission to use this command.", Ephemeral: true}
		}
	}
	if needsTarget(cmd.Kind) && cmd.TargetID == "" {
		return Reply{Content: "A target user is required.", Ephemeral: true}
	}

	switch cmd.Kind {
	case KindPing:
		return Reply{Content: "Pong!"}
	case KindEcho:
		return d.echo(cmd)
	case KindDashboard:
		return d.dashboard()
	case KindServerInfo:
		return d.serverInfo(ctx, cmd)
	case KindUserInfo:
		return d.userInfo(ctx, cmd)
	case KindClear:
		return d.clear(ctx, cmd)
	case KindKick:
		return d.kick(ctx, cmd)
	case KindBan:
		return d.ban(ctx, cmd)
	case KindPoll:
		return d.poll(ctx, cmd)
	case KindSettings:
		return d.settingsSummary(ctx, cmd)
	case KindWarn:
		return d.warn(ctx, cmd)
	case KindMute:
		return d.muteMember(ctx, cmd)
	case KindUnmute:
		return d.unmuteMember(ctx, cmd)
	case KindSlowmode:
		return d.slowmode(ctx, cmd)
	case KindPurgeUser:
		return d.purgeUser(ctx, cmd)
	case KindAnnounce:
		return d.announce(ctx, cmd)
	default:
		return Reply{Content: "Unknown command.", Ephemeral: true}
	}
}

func (d *Dispatcher) echo(cmd Command) Reply {
	if strings.TrimSpace(cmd.Text) == "" {
		return Reply{Content: "Nothing to echo.", Ephemeral: true}
	}
	return Reply{Content: cmd.Text}
}

func (d *Dispatcher) dashboard() Reply {
	if d.dashboardURL == "" {
		return Reply{Content: "No dashboard is configured.", Ephemeral: true}
	}
	return Reply{Content: "Manage this server at " + d.dashboardURL, Ephemeral: true}
}

func (d *Dispatcher) serverInfo(ctx context.Context, cmd Command) Reply {
	info, err := d.client.GuildInfo(ctx, cmd.GuildID)
	if err != nil {
		return d.failure(cmd, err)
	}
	return Reply{Content: fmt.Sprintf("**%s**\nMembers: %d\nOnline: %d\nText channels: %d",
		info.Name, info.Members, info.Online, info.Channels)}
}

func (d *Dispatcher) userInfo(ctx context.Context, cmd Command) Reply {
	target := cmd.TargetID
	if target == "" {
		target = cmd.ActorID
	}
	member, err := d.client.Member(ctx, cmd.GuildID, target)
	if err != nil {
		return d.failure(cmd, err)
	}
	warnings, err := d.store.WarningCount(ctx, cmd.GuildID, target)
	if err != nil {
		warnings = 0
	}
	return Reply{Content: fmt.Sprintf("**%s**\nID: %s\nRoles: %d\nWarnings: %d",
		member.Username, member.ID, len(member.Roles), warnings)}
}

func (d *Dispatcher) clear(ctx context.Context, cmd Command) Reply {
	amount := clamp(cmd.Amount, 1, 100)
	deleted, err := d.client.BulkDelete(ctx, cmd.ChannelID, amount)
	if err != nil {
		return d.failure(cmd, err)
	}
	d.audit.Record(ctx, cmd.GuildID, cmd.ActorID, "clear",
		fmt.Sprintf("deleted %d messages in <#%s>", deleted, cmd.ChannelID))
	return Reply{Content: fmt.Sprintf("Deleted %d messages.", deleted), Ephemeral: true}
}

func (d *Dispatcher) kick(ctx context.Context, cmd Command) Reply {
	reason := cmd.Reason
	if reason == "" {
		reason = "No reason provided"
	}
	if err := d.client.KickMember(ctx, cmd.GuildID, cmd.TargetID, reason); err != nil {
		return d.failure(cmd, err)
	}
	d.audit.Record(ctx, cmd.GuildID, cmd.ActorID, "kick",
		fmt.Sprintf("kicked <@%s>: %s", cmd.TargetID, reason))
	return Reply{Content: fmt.Sprintf("Kicked <@%s>.", cmd.TargetID)}
}

func (d *Dispatcher) ban(ctx context.Context, cmd Command) Reply {
	reason := cmd.Reason
	if reason == "" {
		reason = "No reason provided"
	}
	if err := d.client.BanMember(ctx, cmd.GuildID, cmd.TargetID, reason); err != nil {
		return d.failure(cmd, err)
	}
	d.audit.Record(ctx, cmd.GuildID, cmd.ActorID, "ban",
		fmt.Sprintf("banned <@%s>: %s", cmd.TargetID, reason))
	return Reply{Content: fmt.Sprintf("Banned <@%s>.", cmd.TargetID)}
}

func (d *Dispatcher) poll(ctx context.Context, cmd Command) Reply {
	question := strings.TrimSpace(cmd.Text)
	if question == "" {
		return Reply{Content: "A poll needs a question.", Ephemeral: true}
	}
	messageID, err := d.client.SendMessage(ctx, cmd.ChannelID, "📊 **Poll:** "+question)
	if err != nil {
		return d.failure(cmd, err)
	}
	for _, emoji := range []string{"👍", "👎"} {
		if err := d.client.React(ctx, cmd.ChannelID, messageID, emoji); err != nil {
			d.logger.Warn("failed to seed poll reaction", zap.String("message_id", messageID), zap.Error(err))
		}
	}
	return Reply{Content: "Poll created.", Ephemeral: true}
}

func (d *Dispatcher) settingsSummary(ctx context.Context, cmd Command) Reply {
	current := d.settings.Get(ctx, cmd.GuildID)
	return Reply{
		Content: fmt.Sprintf("Welcome: %s\nModeration: %s\nAuto-mod: %s",
			onOff(current.Welcome.Enabled),
			onOff(current.Moderation.Enabled),
			onOff(current.Moderation.AutoMod)),
		Ephemeral: true,
	}
}

func (d *Dispatcher) warn(ctx context.Context, cmd Command) Reply {
	reason := cmd.Reason
	if reason == "" {
		reason = "No reason provided"
	}
	count, err := d.store.IncrementWarning(ctx, cmd.GuildID, cmd.TargetID, reason, d.warnForgiveAfter)
	if err != nil {
		return d.failure(cmd, err)
	}
	d.audit.Record(ctx, cmd.GuildID, cmd.ActorID, "warn",
		fmt.Sprintf("warned <@%s> (warning #%d): %s", cmd.TargetID, count, reason))
	return Reply{Content: fmt.Sprintf("Warned <@%s>. They now have %d warning(s).", cmd.TargetID, count)}
}

func (d *Dispatcher) muteMember(ctx context.Context, cmd Command) Reply {
	minutes := cmd.Minutes
	if minutes < 0 {
		minutes = 0
	}
	err := d.mutes.Mute(ctx, cmd.GuildID, cmd.TargetID, time.Duration(minutes)*time.Minute)
	if errors.Is(err, mute.ErrRoleUnavailable) {
		return Reply{Content: "Cannot create mute role.", Ephemeral: true}
	}
	if err != nil {
		return d.failure(cmd, err)
	}
	details := fmt.Sprintf("muted <@%s> indefinitely", cmd.TargetID)
	content := fmt.Sprintf("Muted <@%s>.", cmd.TargetID)
	if minutes > 0 {
		details = fmt.Sprintf("muted <@%s> for %d minutes", cmd.TargetID, minutes)
		content = fmt.Sprintf("Muted <@%s> for %d minutes.", cmd.TargetID, minutes)
	}
	d.audit.Record(ctx, cmd.GuildID, cmd.ActorID, "mute", details)
	return Reply{Content: content}
}

func (d *Dispatcher) unmuteMember(ctx context.Context, cmd Command) Reply {
	if err := d.mutes.Unmute(ctx, cmd.GuildID, cmd.TargetID); err != nil {
		return d.failure(cmd, err)
	}
	d.audit.Record(ctx, cmd.GuildID, cmd.ActorID, "unmute",
		fmt.Sprintf("unmuted <@%s>", cmd.TargetID))
	return Reply{Content: fmt.Sprintf("Unmuted <@%s>.", cmd.TargetID)}
}

func (d *Dispatcher) slowmode(ctx context.Context, cmd Command) Reply {
	seconds := clamp(cmd.Seconds, 0, 21600)
	if err := d.client.SetSlowmode(ctx, cmd.ChannelID, seconds); err != nil {
		return d.failure(cmd, err)
	}
	if seconds == 0 {
		d.audit.Record(ctx, cmd.GuildID, cmd.ActorID, "slowmode",
			fmt.Sprintf("disabled slowmode in <#%s>", cmd.ChannelID))
		return Reply{Content: "Slowmode disabled."}
	}
	d.audit.Record(ctx, cmd.GuildID, cmd.ActorID, "slowmode",
		fmt.Sprintf("set slowmode to %ds in <#%s>", seconds, cmd.ChannelID))
	return Reply{Content: fmt.Sprintf("Slowmode set to %d seconds.", seconds)}
}

func (d *Dispatcher) purgeUser(ctx context.Context, cmd Command) Reply {
	amount := clamp(cmd.Amount, 1, 100)
	messages, err := d.client.RecentMessages(ctx, cmd.ChannelID, 100)
	if err != nil {
		return d.failure(cmd, err)
	}
	deleted := 0
	for _, message := range messages {
		if deleted >= amount {
			break
		}
		if message.AuthorID != cmd.TargetID {
			continue
		}
		if err := d.client.DeleteMessage(ctx, cmd.ChannelID, message.ID); err != nil {
			d.logger.Warn("failed to purge message",
				zap.String("channel_id", cmd.ChannelID),
				zap.String("message_id", message.ID),
				zap.Error(err),
			)
			continue
		}
		deleted++
	}
	d.audit.Record(ctx, cmd.GuildID, cmd.ActorID, "purge_user",
		fmt.Sprintf("purged %d messages from <@%s> in <#%s>", deleted, cmd.TargetID, cmd.ChannelID))
	return Reply{Content: fmt.Sprintf("Deleted %d messages from <@%s>.", deleted, cmd.TargetID), Ephemeral: true}
}

func (d *Dispatcher) announce(ctx context.Context, cmd Command) Reply {
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		return Reply{Content: "An announcement needs a message.", Ephemeral: true}
	}
	if _, err := d.client.SendMessage(ctx, cmd.ChannelID, "📢 "+text); err != nil {
		return d.failure(cmd, err)
	}
	return Reply{Content: "Announcement posted.", Ephemeral: true}
}

func (d *Dispatcher) failure(cmd Command, err error) Reply {
	d.logger.Warn("command failed",
		zap.String("guild_id", cmd.GuildID),
		zap.String("actor_id", cmd.ActorID),
		zap.Error(err),
	)
	return Reply{Content: "Something went wrong while running that command.", Ephemeral: true}
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}
