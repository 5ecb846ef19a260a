package storage

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestGuildSettingsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, found, err := store.GetGuildSettings(ctx, "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Fatal("expected no record for fresh guild")
	}

	settings := DefaultSettings("g1")
	settings.Welcome.Enabled = true
	settings.Welcome.ChannelID = "c1"
	settings.Moderation.AutoMod = true
	settings.Moderation.BannedWords = []string{"first", "second"}
	if err := store.UpsertGuildSettings(ctx, settings); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	loaded, found, err := store.GetGuildSettings(ctx, "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatal("expected record after upsert")
	}
	if !loaded.Welcome.Enabled || loaded.Welcome.ChannelID != "c1" {
		t.Fatalf("welcome settings not persisted: %+v", loaded.Welcome)
	}
	if !loaded.Moderation.AutoMod {
		t.Fatal("auto mod flag not persisted")
	}
	if len(loaded.Moderation.BannedWords) != 2 ||
		loaded.Moderation.BannedWords[0] != "first" ||
		loaded.Moderation.BannedWords[1] != "second" {
		t.Fatalf("banned words = %v", loaded.Moderation.BannedWords)
	}
	if loaded.Music.Volume != 50 {
		t.Fatalf("volume = %d, want 50", loaded.Music.Volume)
	}
}

func TestUpsertReplacesBannedWords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	settings := DefaultSettings("g1")
	settings.Moderation.BannedWords = []string{"one", "two", "three"}
	if err := store.UpsertGuildSettings(ctx, settings); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	settings.Moderation.BannedWords = []string{"only"}
	if err := store.UpsertGuildSettings(ctx, settings); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	loaded, _, err := store.GetGuildSettings(ctx, "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(loaded.Moderation.BannedWords) != 1 || loaded.Moderation.BannedWords[0] != "only" {
		t.Fatalf("banned words = %v, want [only]", loaded.Moderation.BannedWords)
	}
}

func TestAuditLogsFilteredBySince(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	old := AuditLog{GuildID: "g1", UserID: "u1", Event: "kick", Details: "old", CreatedAt: now.Add(-48 * time.Hour)}
	recent := AuditLog{GuildID: "g1", UserID: "u1", Event: "ban", Details: "recent", CreatedAt: now}
	other := AuditLog{GuildID: "g2", UserID: "u1", Event: "ban", Details: "other guild", CreatedAt: now}
	for _, log := range []AuditLog{old, recent, other} {
		if err := store.AddAuditLog(ctx, log); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	logs, err := store.ListAuditLogs(ctx, "g1", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("got %d logs, want 1", len(logs))
	}
	if logs[0].Event != "ban" || logs[0].Details != "recent" {
		t.Fatalf("unexpected log: %+v", logs[0])
	}
}

func TestIncrementWarning(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		count, err := store.IncrementWarning(ctx, "g1", "u1", "spamming", 30*24*time.Hour)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if count != want {
			t.Fatalf("count = %d, want %d", count, want)
		}
	}

	count, err := store.WarningCount(ctx, "g1", "u2")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d for unwarned member, want 0", count)
	}
}
