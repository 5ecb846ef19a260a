// Package audit records moderation events. Every entry is best-effort:
// a failed database write or log-channel post never fails the action
// that produced it.
package audit

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"plugbot/internal/platform"
	"plugbot/internal/settings"
	"plugbot/internal/storage"
)

type Sink struct {
	store    *storage.Store
	settings *settings.Service
	client   platform.Client
	logger   *zap.Logger
}

func NewSink(store *storage.Store, settings *settings.Service, client platform.Client, logger *zap.Logger) *Sink {
	return &Sink{store: store, settings: settings, client: client, logger: logger}
}

// Record persists the event, emits a structured log line, and mirrors it to
// the guild's log channel when one is configured.
func (s *Sink) Record(ctx context.Context, guildID, userID, event, details string) {
	entry := storage.AuditLog{
		GuildID:   guildID,
		UserID:    userID,
		Event:     event,
		Details:   details,
		CreatedAt: time.Now(),
	}
	if err := s.store.AddAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to persist audit log", zap.String("guild_id", guildID), zap.Error(err))
	}

	s.logger.Info("moderation event",
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("event", event),
		zap.String("details", details),
	)

	logChannel := s.settings.Get(ctx, guildID).Moderation.LogChannelID
	if logChannel == "" {
		return
	}
	content := "**" + strings.ToUpper(event) + "** " + details
	if _, err := s.client.SendMessage(ctx, logChannel, content); err != nil {
		s.logger.Warn("failed to post audit log to channel",
			zap.String("guild_id", guildID),
			zap.String("channel_id", logChannel),
			zap.Error(err),
		)
	}
}
