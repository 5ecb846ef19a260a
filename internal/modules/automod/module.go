// Package automod removes messages containing banned words. Matching is a
// case-insensitive substring check against the guild's configured list,
// stopping at the first hit.
package automod

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"plugbot/internal/modules/audit"
	"plugbot/internal/platform"
)

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

type Module struct {
	defaults []string
	warnTTL  time.Duration
	clock    Clock
	client   platform.Client
	audit    *audit.Sink
	logger   *zap.Logger
}

func New(defaultWords []string, warnTTL time.Duration, client platform.Client, sink *audit.Sink, logger *zap.Logger) *Module {
	return &Module{
		defaults: defaultWords,
		warnTTL:  warnTTL,
		clock:    realClock{},
		client:   client,
		audit:    sink,
		logger:   logger,
	}
}

func (m *Module) WithClock(clock Clock) {
	m.clock = clock
}

// HandleMessage checks the message against the guild's banned words, falling
// back to the configured defaults when the guild has none. It reports
// whether the message was removed.
func (m *Module) HandleMessage(ctx context.Context, guildID, channelID, messageID, authorID, content string, words []string) bool {
	if len(words) == 0 {
		words = m.defaults
	}
	lowered := strings.ToLower(content)
	matched := ""
	for _, word := range words {
		if word == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(word)) {
			matched = word
			break
		}
	}
	if matched == "" {
		return false
	}

	if err := m.client.DeleteMessage(ctx, channelID, messageID); err != nil {
		m.logger.Warn("failed to delete filtered message",
			zap.String("guild_id", guildID),
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
	m.sendWarning(ctx, channelID, authorID)
	// The matched word stays out of the audit trail.
	m.audit.Record(ctx, guildID, authorID, "auto_mod",
		fmt.Sprintf("removed a message from <@%s> containing a banned word", authorID))
	return true
}

func (m *Module) sendWarning(ctx context.Context, channelID, authorID string) {
	warningID, err := m.client.SendMessage(ctx, channelID,
		fmt.Sprintf("<@%s>, that word is not allowed here.", authorID))
	if err != nil {
		m.logger.Warn("failed to send filter notice", zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	m.clock.AfterFunc(m.warnTTL, func() {
		if err := m.client.DeleteMessage(context.Background(), channelID, warningID); err != nil {
			m.logger.Debug("failed to retract filter notice", zap.String("message_id", warningID), zap.Error(err))
		}
	})
}
