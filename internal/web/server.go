// Package web serves the dashboard API: Discord OAuth2 login, per-guild
// settings, and activity reporting.
package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"plugbot/internal/analytics"
	"plugbot/internal/config"
	"plugbot/internal/platform"
	"plugbot/internal/settings"
	"plugbot/internal/storage"
)

// CommandCounter reports per-guild command usage since startup.
type CommandCounter interface {
	CommandCount(guildID string) int
}

type Server struct {
	logger       *zap.Logger
	settings     *settings.Service
	client       platform.Client
	counts       CommandCounter
	reports      *analytics.Service
	sessions     *expirable.LRU[string, Session]
	oauth        *oauth2.Config
	limiter      *ipRateLimiter
	origins      []string
	dashboardURL string
}

func NewServer(cfg config.Config, logger *zap.Logger, service *settings.Service, client platform.Client, counts CommandCounter, reports *analytics.Service) *Server {
	return &Server{
		logger:   logger,
		settings: service,
		client:   client,
		counts:   counts,
		reports:  reports,
		sessions: expirable.NewLRU[string, Session](1024, nil, 12*time.Hour),
		oauth: &oauth2.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			RedirectURL:  cfg.OAuth.RedirectURL,
			Scopes:       []string{"identify", "guilds"},
			Endpoint:     discordEndpoint,
		},
		limiter:      newIPRateLimiter(rate.Limit(5), 10),
		origins:      cfg.HTTP.AllowedOrigins,
		dashboardURL: cfg.DashboardURL,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(corsMiddleware(s.origins))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(rateLimitMiddleware(s.limiter))
			r.Get("/login", s.handleLogin)
			r.Get("/callback", s.handleCallback)
			r.Get("/session", s.handleSession)
			r.Post("/logout", s.handleLogout)
		})

		r.Route("/guilds/{guildID}", func(r chi.Router) {
			r.Get("/settings", s.handleGetSettings)
			r.Post("/settings", s.handlePostSettings)
			r.Get("/stats", s.handleStats)
			r.Get("/channels", s.handleChannels)
			r.Get("/roles", s.handleRoles)
			r.Get("/activity", s.handleActivity)
		})
	})

	return r
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	s.respondJSON(w, http.StatusOK, s.settings.Get(r.Context(), guildID))
}

func (s *Server) handlePostSettings(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")

	var updated storage.GuildSettings
	if err := json.NewDecoder(r.Body).Decode(&updated); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.settings.Set(r.Context(), guildID, updated); err != nil {
		s.logger.Error("failed to save guild settings", zap.String("guild_id", guildID), zap.Error(err))
		http.Error(w, "failed to save settings", http.StatusInternalServerError)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	info, err := s.client.GuildInfo(r.Context(), guildID)
	if err != nil {
		http.Error(w, "guild not found", http.StatusNotFound)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{
		"members":  info.Members,
		"online":   info.Online,
		"channels": info.Channels,
		"commands": s.counts.CommandCount(guildID),
	})
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	channels, err := s.client.TextChannels(r.Context(), guildID)
	if err != nil {
		http.Error(w, "guild not found", http.StatusNotFound)
		return
	}
	if channels == nil {
		channels = []platform.Channel{}
	}
	s.respondJSON(w, http.StatusOK, channels)
}

func (s *Server) handleRoles(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	roles, err := s.client.GuildRoles(r.Context(), guildID)
	if err != nil {
		http.Error(w, "guild not found", http.StatusNotFound)
		return
	}
	if roles == nil {
		roles = []platform.Role{}
	}
	s.respondJSON(w, http.StatusOK, roles)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	report, err := s.reports.Report(r.Context(), guildID, time.Now().Add(-24*time.Hour))
	if err != nil {
		s.logger.Error("failed to build activity report", zap.String("guild_id", guildID), zap.Error(err))
		http.Error(w, "failed to build report", http.StatusInternalServerError)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}
