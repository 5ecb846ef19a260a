package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

// GuildSettings is the full per-guild configuration record. Updates replace
// the whole record; partial edits are composed by the caller.
type GuildSettings struct {
	GuildID    string             `json:"-"`
	Welcome    WelcomeSettings    `json:"welcome"`
	Moderation ModerationSettings `json:"moderation"`
	Music      MusicSettings      `json:"music"`
}

type WelcomeSettings struct {
	Enabled   bool   `json:"enabled"`
	ChannelID string `json:"channel_id"`
	Message   string `json:"message"`
}

type ModerationSettings struct {
	Enabled      bool     `json:"enabled"`
	AutoMod      bool     `json:"auto_mod"`
	LogChannelID string   `json:"log_channel_id"`
	BannedWords  []string `json:"banned_words"`
	MuteRoleID   string   `json:"mute_role_id"`
}

type MusicSettings struct {
	Volume   int    `json:"volume"`
	DJRoleID string `json:"dj_role_id"`
}

type AuditLog struct {
	ID        int64
	GuildID   string
	UserID    string
	Event     string
	Details   string
	CreatedAt time.Time
}

func DefaultSettings(guildID string) GuildSettings {
	return GuildSettings{
		GuildID: guildID,
		Welcome: WelcomeSettings{
			Enabled: false,
			Message: "Welcome {user}!",
		},
		Moderation: ModerationSettings{
			Enabled: true,
			AutoMod: false,
		},
		Music: MusicSettings{Volume: 50},
	}
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Migrate() error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

// GetGuildSettings returns the stored record for a guild. The second return
// value reports whether a record existed.
func (s *Store) GetGuildSettings(ctx context.Context, guildID string) (GuildSettings, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT welcome_enabled, welcome_channel, welcome_message,
		moderation_enabled, auto_mod, log_channel, mute_role,
		music_volume, dj_role
		FROM guild_settings WHERE guild_id = ?`, guildID)

	result := GuildSettings{GuildID: guildID}
	var welcomeEnabled, moderationEnabled, autoMod int
	err := row.Scan(
		&welcomeEnabled,
		&result.Welcome.ChannelID,
		&result.Welcome.Message,
		&moderationEnabled,
		&autoMod,
		&result.Moderation.LogChannelID,
		&result.Moderation.MuteRoleID,
		&result.Music.Volume,
		&result.Music.DJRoleID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return GuildSettings{}, false, nil
		}
		return GuildSettings{}, false, err
	}
	result.Welcome.Enabled = welcomeEnabled == 1
	result.Moderation.Enabled = moderationEnabled == 1
	result.Moderation.AutoMod = autoMod == 1

	words, err := s.listBannedWords(ctx, guildID)
	if err != nil {
		return GuildSettings{}, false, err
	}
	result.Moderation.BannedWords = words
	return result, true, nil
}

// UpsertGuildSettings replaces the full record, banned words included.
func (s *Store) UpsertGuildSettings(ctx context.Context, settings GuildSettings) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO guild_settings (
			guild_id, welcome_enabled, welcome_channel, welcome_message,
			moderation_enabled, auto_mod, log_channel, mute_role,
			music_volume, dj_role
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			welcome_enabled = excluded.welcome_enabled,
			welcome_channel = excluded.welcome_channel,
			welcome_message = excluded.welcome_message,
			moderation_enabled = excluded.moderation_enabled,
			auto_mod = excluded.auto_mod,
			log_channel = excluded.log_channel,
			mute_role = excluded.mute_role,
			music_volume = excluded.music_volume,
			dj_role = excluded.dj_role
	`,
		settings.GuildID,
		boolToInt(settings.Welcome.Enabled),
		settings.Welcome.ChannelID,
		settings.Welcome.Message,
		boolToInt(settings.Moderation.Enabled),
		boolToInt(settings.Moderation.AutoMod),
		settings.Moderation.LogChannelID,
		settings.Moderation.MuteRoleID,
		settings.Music.Volume,
		settings.Music.DJRoleID,
	)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM banned_words WHERE guild_id = ?`, settings.GuildID)
	if err != nil {
		return err
	}
	for i, word := range settings.Moderation.BannedWords {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO banned_words (guild_id, position, word) VALUES (?, ?, ?)`,
			settings.GuildID, i, word)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) listBannedWords(ctx context.Context, guildID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT word FROM banned_words WHERE guild_id = ? ORDER BY position`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var words []string
	for rows.Next() {
		var word string
		if err := rows.Scan(&word); err != nil {
			return nil, err
		}
		words = append(words, word)
	}
	return words, rows.Err()
}

func (s *Store) AddAuditLog(ctx context.Context, log AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (guild_id, user_id, event, details, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, log.GuildID, log.UserID, log.Event, log.Details, log.CreatedAt.Unix())
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, guildID string, since time.Time) ([]AuditLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, event, details, created_at
		FROM audit_logs
		WHERE guild_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`, guildID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var log AuditLog
		var created int64
		if err := rows.Scan(&log.ID, &log.GuildID, &log.UserID, &log.Event, &log.Details, &created); err != nil {
			return nil, err
		}
		log.CreatedAt = time.Unix(created, 0)
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
