package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"plugbot/internal/analytics"
	"plugbot/internal/config"
	"plugbot/internal/platform"
	"plugbot/internal/platform/platformtest"
	"plugbot/internal/settings"
	"plugbot/internal/storage"
)

type fixedCounts int

func (f fixedCounts) CommandCount(string) int { return int(f) }

func newTestServer(t *testing.T) (*Server, *platformtest.Fake, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	logger := zap.NewNop()
	client := platformtest.New()
	service := settings.New(store, logger)
	server := NewServer(config.DefaultConfig(), logger, service, client, fixedCounts(7), analytics.New(store))
	return server, client, store
}

func TestGetSettingsReturnsDefaults(t *testing.T) {
	server, _, _ := newTestServer(t)
	router := server.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/guilds/g1/settings", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body storage.GuildSettings
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Welcome.Enabled {
		t.Fatal("welcome should default to disabled")
	}
	if !body.Moderation.Enabled {
		t.Fatal("moderation should default to enabled")
	}
	if body.Music.Volume != 50 {
		t.Fatalf("volume = %d, want 50", body.Music.Volume)
	}
}

func TestPostSettingsPersists(t *testing.T) {
	server, _, store := newTestServer(t)
	router := server.Router()

	payload := `{
		"welcome": {"enabled": true, "channel_id": "c1", "message": "hi {user}"},
		"moderation": {"enabled": true, "auto_mod": true, "banned_words": ["bad"]},
		"music": {"volume": 80}
	}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/guilds/g1/settings", strings.NewReader(payload))
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	saved, found, err := store.GetGuildSettings(context.Background(), "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatal("settings were not persisted")
	}
	if !saved.Welcome.Enabled || saved.Welcome.ChannelID != "c1" {
		t.Fatalf("welcome = %+v", saved.Welcome)
	}
	if !saved.Moderation.AutoMod || len(saved.Moderation.BannedWords) != 1 {
		t.Fatalf("moderation = %+v", saved.Moderation)
	}
	if saved.Music.Volume != 80 {
		t.Fatalf("volume = %d, want 80", saved.Music.Volume)
	}
}

func TestPostSettingsRejectsBadBody(t *testing.T) {
	server, _, _ := newTestServer(t)
	router := server.Router()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/guilds/g1/settings", strings.NewReader("{not json"))
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestStats(t *testing.T) {
	server, client, _ := newTestServer(t)
	client.Info = platform.GuildInfo{ID: "g1", Name: "Test", Members: 42, Online: 9, Channels: 5}
	router := server.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/guilds/g1/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["members"] != 42 || body["online"] != 9 || body["channels"] != 5 {
		t.Fatalf("body = %v", body)
	}
	if body["commands"] != 7 {
		t.Fatalf("commands = %d, want 7", body["commands"])
	}
}

func TestActivityReportsRecentEvents(t *testing.T) {
	server, _, store := newTestServer(t)
	router := server.Router()
	ctx := context.Background()

	now := time.Now()
	for _, event := range []string{"kick", "kick", "anti_spam"} {
		entry := storage.AuditLog{GuildID: "g1", UserID: "u1", Event: event, CreatedAt: now}
		if err := store.AddAuditLog(ctx, entry); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/guilds/g1/activity", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var report analytics.Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Total != 3 || report.ByEvent["kick"] != 2 {
		t.Fatalf("report = %+v", report)
	}
}

func TestSessionRequiresLogin(t *testing.T) {
	server, _, _ := newTestServer(t)
	router := server.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestLoginRedirectsToDiscord(t *testing.T) {
	server, _, _ := newTestServer(t)
	router := server.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/login", nil))
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", rec.Code)
	}
	location := rec.Header().Get("Location")
	if !strings.HasPrefix(location, "https://discord.com/oauth2/authorize") {
		t.Fatalf("location = %q", location)
	}
	if !strings.Contains(location, "state=") {
		t.Fatal("redirect is missing the state parameter")
	}
}

func TestCallbackRejectsStateMismatch(t *testing.T) {
	server, _, _ := newTestServer(t)
	router := server.Router()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback?state=bogus&code=x", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "expected"})
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
