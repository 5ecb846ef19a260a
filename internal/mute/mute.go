// Package mute manages the guild mute role and timed unmutes. Mutes are
// role-based; timed removals live in memory and do not survive a restart.
package mute

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"plugbot/internal/modules/audit"
	"plugbot/internal/platform"
	"plugbot/internal/settings"
)

const muteRoleName = "Muted"

var ErrRoleUnavailable = errors.New("mute role unavailable")

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (t realTimer) Stop() bool { return t.t.Stop() }

type Manager struct {
	client   platform.Client
	settings *settings.Service
	audit    *audit.Sink
	logger   *zap.Logger
	clock    Clock

	mu     sync.Mutex
	timers map[string]Timer
}

func New(client platform.Client, settings *settings.Service, sink *audit.Sink, logger *zap.Logger) *Manager {
	return &Manager{
		client:   client,
		settings: settings,
		audit:    sink,
		logger:   logger,
		clock:    realClock{},
		timers:   make(map[string]Timer),
	}
}

func (m *Manager) WithClock(clock Clock) {
	m.clock = clock
}

// EnsureMuteRole resolves the guild's mute role, in order: the stored role
// id if it still exists, any existing role named "muted", or a freshly
// created one. The resolved id is persisted before returning.
func (m *Manager) EnsureMuteRole(ctx context.Context, guildID string) (string, error) {
	current := m.settings.Get(ctx, guildID)

	roles, err := m.client.GuildRoles(ctx, guildID)
	if err != nil {
		return "", err
	}
	if current.Moderation.MuteRoleID != "" {
		for _, role := range roles {
			if role.ID == current.Moderation.MuteRoleID {
				return role.ID, nil
			}
		}
	}

	var resolved string
	for _, role := range roles {
		if strings.EqualFold(role.Name, muteRoleName) {
			resolved = role.ID
			break
		}
	}
	if resolved == "" {
		created, err := m.client.CreateRole(ctx, guildID, muteRoleName)
		if err != nil {
			return "", ErrRoleUnavailable
		}
		resolved = created.ID
	}

	current.Moderation.MuteRoleID = resolved
	if err := m.settings.Set(ctx, guildID, current); err != nil {
		m.logger.Warn("failed to persist mute role id", zap.String("guild_id", guildID), zap.Error(err))
	}
	return resolved, nil
}

// Mute assigns the mute role and, for a positive duration, schedules the
// removal. A zero duration mutes indefinitely. Scheduling again for the
// same member replaces any pending removal.
func (m *Manager) Mute(ctx context.Context, guildID, userID string, duration time.Duration) error {
	roleID, err := m.EnsureMuteRole(ctx, guildID)
	if err != nil {
		return err
	}
	if err := m.client.AddRole(ctx, guildID, userID, roleID); err != nil {
		return err
	}
	if duration <= 0 {
		return nil
	}

	key := guildID + ":" + userID
	m.mu.Lock()
	if pending, ok := m.timers[key]; ok {
		pending.Stop()
	}
	m.timers[key] = m.clock.AfterFunc(duration, func() {
		m.expire(guildID, userID, roleID)
	})
	m.mu.Unlock()
	return nil
}

// Unmute cancels any pending removal and takes the role away immediately.
func (m *Manager) Unmute(ctx context.Context, guildID, userID string) error {
	key := guildID + ":" + userID
	m.mu.Lock()
	if pending, ok := m.timers[key]; ok {
		pending.Stop()
		delete(m.timers, key)
	}
	m.mu.Unlock()

	roleID := m.settings.Get(ctx, guildID).Moderation.MuteRoleID
	if roleID == "" {
		return ErrRoleUnavailable
	}
	return m.client.RemoveRole(ctx, guildID, userID, roleID)
}

func (m *Manager) expire(guildID, userID, roleID string) {
	key := guildID + ":" + userID
	m.mu.Lock()
	delete(m.timers, key)
	m.mu.Unlock()

	ctx := context.Background()
	if err := m.client.RemoveRole(ctx, guildID, userID, roleID); err != nil {
		m.logger.Warn("scheduled unmute failed",
			zap.String("guild_id", guildID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return
	}
	m.audit.Record(ctx, guildID, userID, "unmute", "mute expired for <@"+userID+">")
}
