// Package settings serves per-guild configuration from an in-memory cache
// backed by the database. Reads never fail: a guild seen for the first time
// is materialized with defaults, and a broken database falls back to
// defaults for the current call.
package settings

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"plugbot/internal/storage"
)

type Service struct {
	mu     sync.RWMutex
	store  *storage.Store
	logger *zap.Logger
	cache  map[string]storage.GuildSettings
}

func New(store *storage.Store, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		cache:  make(map[string]storage.GuildSettings),
	}
}

// Get returns the settings for a guild, creating the default record on first
// sight. Database failures are logged and answered with defaults without
// caching, so a later call retries the load.
func (s *Service) Get(ctx context.Context, guildID string) storage.GuildSettings {
	s.mu.RLock()
	cached, ok := s.cache[guildID]
	s.mu.RUnlock()
	if ok {
		return clone(cached)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[guildID]; ok {
		return clone(cached)
	}

	loaded, found, err := s.store.GetGuildSettings(ctx, guildID)
	if err != nil {
		s.logger.Warn("failed to load guild settings", zap.String("guild_id", guildID), zap.Error(err))
		return storage.DefaultSettings(guildID)
	}
	if !found {
		loaded = storage.DefaultSettings(guildID)
		if err := s.store.UpsertGuildSettings(ctx, loaded); err != nil {
			s.logger.Warn("failed to persist default guild settings", zap.String("guild_id", guildID), zap.Error(err))
			return loaded
		}
	}
	s.cache[guildID] = clone(loaded)
	return loaded
}

// Set persists the full record and refreshes the cache only after the write
// succeeds. Banned words are lowercased here so cached reads and post-restart
// reads return identical bytes.
func (s *Service) Set(ctx context.Context, guildID string, updated storage.GuildSettings) error {
	updated.GuildID = guildID
	if len(updated.Moderation.BannedWords) > 0 {
		words := make([]string, len(updated.Moderation.BannedWords))
		for i, word := range updated.Moderation.BannedWords {
			words[i] = strings.ToLower(word)
		}
		updated.Moderation.BannedWords = words
	}
	if err := s.store.UpsertGuildSettings(ctx, updated); err != nil {
		return err
	}
	s.mu.Lock()
	s.cache[guildID] = clone(updated)
	s.mu.Unlock()
	return nil
}

func clone(settings storage.GuildSettings) storage.GuildSettings {
	copied := settings
	if settings.Moderation.BannedWords != nil {
		words := make([]string, len(settings.Moderation.BannedWords))
		copy(words, settings.Moderation.BannedWords)
		copied.Moderation.BannedWords = words
	}
	return copied
}
