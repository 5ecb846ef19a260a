package analytics

import (
	"context"
	"testing"
	"time"

	"plugbot/internal/storage"
)

func TestReportCountsByEvent(t *testing.T) {
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	now := time.Now()
	entries := []storage.AuditLog{
		{GuildID: "g1", UserID: "u1", Event: "kick", CreatedAt: now},
		{GuildID: "g1", UserID: "u2", Event: "kick", CreatedAt: now},
		{GuildID: "g1", UserID: "u3", Event: "anti_spam", CreatedAt: now},
		{GuildID: "g1", UserID: "u4", Event: "ban", CreatedAt: now.Add(-48 * time.Hour)},
		{GuildID: "g2", UserID: "u5", Event: "ban", CreatedAt: now},
	}
	for _, entry := range entries {
		if err := store.AddAuditLog(ctx, entry); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	report, err := New(store).Report(ctx, "g1", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Total != 3 {
		t.Fatalf("total = %d, want 3", report.Total)
	}
	if report.ByEvent["kick"] != 2 || report.ByEvent["anti_spam"] != 1 {
		t.Fatalf("by event = %v", report.ByEvent)
	}
	if report.ByEvent["ban"] != 0 {
		t.Fatal("stale or foreign entries leaked into the report")
	}
}
