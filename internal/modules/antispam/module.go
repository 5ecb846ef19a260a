// Package antispam deletes message bursts. A member tripping the
// threshold gets their triggering message removed, a transient warning,
// and one audit entry; the counting window resets so the next burst is
// measured from scratch.
package antispam

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"plugbot/internal/modules/audit"
	"plugbot/internal/platform"
	"plugbot/internal/utils"
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

type Config struct {
	Messages   int
	Window     time.Duration
	WarningTTL time.Duration
}

type Module struct {
	mu        sync.Mutex
	windows   map[string]*utils.SlidingWindow
	threshold int
	span      time.Duration
	warnTTL   time.Duration
	clock     Clock
	client    platform.Client
	audit     *audit.Sink
	logger    *zap.Logger
}

func New(cfg Config, client platform.Client, sink *audit.Sink, logger *zap.Logger) *Module {
	return &Module{
		windows:   make(map[string]*utils.SlidingWindow),
		threshold: cfg.Messages,
		span:      cfg.Window,
		warnTTL:   cfg.WarningTTL,
		clock:     realClock{},
		client:    client,
		audit:     sink,
		logger:    logger,
	}
}

func (m *Module) WithClock(clock Clock) {
	m.clock = clock
}

// HandleMessage counts a message for its author and reacts when the burst
// threshold is reached. It reports whether the message was removed as spam.
func (m *Module) HandleMessage(ctx context.Context, guildID, channelID, messageID, authorID string) bool {
	key := guildID + ":" + authorID

	m.mu.Lock()
	window, ok := m.windows[key]
	if !ok {
		window = utils.NewSlidingWindow(m.span)
		m.windows[key] = window
	}
	count := window.Add(m.clock.Now())
	if count >= m.threshold {
		window.Reset()
	}
	m.mu.Unlock()

	if count < m.threshold {
		return false
	}

	if err := m.client.DeleteMessage(ctx, channelID, messageID); err != nil {
		m.logger.Warn("failed to delete spam message",
			zap.String("guild_id", guildID),
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
	m.sendWarning(ctx, channelID, authorID)
	m.audit.Record(ctx, guildID, authorID, "anti_spam",
		fmt.Sprintf("deleted burst of %d messages from <@%s>", count, authorID))
	return true
}

func (m *Module) sendWarning(ctx context.Context, channelID, authorID string) {
	warningID, err := m.client.SendMessage(ctx, channelID,
		fmt.Sprintf("<@%s>, slow down. Spam detected.", authorID))
	if err != nil {
		m.logger.Warn("failed to send spam warning", zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	m.clock.AfterFunc(m.warnTTL, func() {
		if err := m.client.DeleteMessage(context.Background(), channelID, warningID); err != nil {
			m.logger.Debug("failed to retract spam warning", zap.String("message_id", warningID), zap.Error(err))
		}
	})
}
