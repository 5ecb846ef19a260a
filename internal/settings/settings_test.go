package settings

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"plugbot/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(store, zap.NewNop()), store
}

func TestGetMaterializesDefaultsOnce(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()

	first := service.Get(ctx, "g1")
	if first.Welcome.Enabled {
		t.Fatal("welcome should default to disabled")
	}
	if !first.Moderation.Enabled {
		t.Fatal("moderation should default to enabled")
	}
	if first.Moderation.AutoMod {
		t.Fatal("auto mod should default to disabled")
	}
	if first.Music.Volume != 50 {
		t.Fatalf("volume = %d, want 50", first.Music.Volume)
	}

	_, found, err := store.GetGuildSettings(ctx, "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatal("first read should persist the default record")
	}

	second := service.Get(ctx, "g1")
	if second.Music.Volume != first.Music.Volume {
		t.Fatal("repeated reads should agree")
	}
}

func TestSetIsReadAfterWrite(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	updated := service.Get(ctx, "g1")
	updated.Welcome.Enabled = true
	updated.Welcome.ChannelID = "c9"
	updated.Moderation.BannedWords = []string{"badword"}
	if err := service.Set(ctx, "g1", updated); err != nil {
		t.Fatalf("set: %v", err)
	}

	got := service.Get(ctx, "g1")
	if !got.Welcome.Enabled || got.Welcome.ChannelID != "c9" {
		t.Fatalf("welcome = %+v", got.Welcome)
	}
	if len(got.Moderation.BannedWords) != 1 || got.Moderation.BannedWords[0] != "badword" {
		t.Fatalf("banned words = %v", got.Moderation.BannedWords)
	}
}

func TestSetLowercasesBannedWords(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()

	updated := service.Get(ctx, "g1")
	updated.Moderation.BannedWords = []string{"SpamLink.COM", "Bad"}
	if err := service.Set(ctx, "g1", updated); err != nil {
		t.Fatalf("set: %v", err)
	}

	cached := service.Get(ctx, "g1").Moderation.BannedWords
	persisted, _, err := store.GetGuildSettings(ctx, "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	stored := persisted.Moderation.BannedWords

	if len(cached) != 2 || cached[0] != "spamlink.com" || cached[1] != "bad" {
		t.Fatalf("cached words = %v", cached)
	}
	for i := range cached {
		if cached[i] != stored[i] {
			t.Fatalf("cached %q differs from stored %q", cached[i], stored[i])
		}
	}
}

func TestGetReturnsIndependentCopies(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	seeded := service.Get(ctx, "g1")
	seeded.Moderation.BannedWords = []string{"a", "b"}
	if err := service.Set(ctx, "g1", seeded); err != nil {
		t.Fatalf("set: %v", err)
	}

	first := service.Get(ctx, "g1")
	first.Moderation.BannedWords[0] = "mutated"

	second := service.Get(ctx, "g1")
	if second.Moderation.BannedWords[0] != "a" {
		t.Fatal("caller mutation leaked into the cache")
	}
}
