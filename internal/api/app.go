package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/harmony-hub/internal/auth"
	"github.com/npezzotti/harmony-hub/internal/config"
	"github.com/npezzotti/harmony-hub/internal/database"
	"github.com/npezzotti/harmony-hub/internal/server"
	"github.com/rs/zerolog"
)

// Publisher fans events out to connected sessions once a write has
// committed.
type Publisher interface {
	Publish(room server.RoomId, event string, payload any) int
	PublishToMany(rooms []server.RoomId, event string, payload any) int
}

// StatusUpdater applies an explicit presence change for a user.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, userId int, status string) error
}

type HarmonyApp struct {
	log            zerolog.Logger
	db             database.HarmonyRepository
	srv            *http.Server
	cs             *server.ChatServer
	relay          Publisher
	statuses       StatusUpdater
	tokens         *auth.TokenManager
	allowedOrigins []string
}

func NewHarmonyApp(mux *http.ServeMux, logger zerolog.Logger, cs *server.ChatServer, db database.HarmonyRepository, cfg *config.Config) *HarmonyApp {
	s := &HarmonyApp{
		log:            logger.With().Str("component", "api").Logger(),
		db:             db,
		cs:             cs,
		tokens:         auth.NewTokenManager(cfg.SigningKey, auth.DefaultExp),
		allowedOrigins: cfg.AllowedOrigins,
	}
	if cs != nil {
		s.relay = cs.Relay()
		s.statuses = cs
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)

	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.Handle("POST /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("GET /api/auth/me", s.authMiddleware(s.session))
	mux.Handle("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("PUT /api/auth/profile", s.authMiddleware(s.updateProfile))
	mux.Handle("PUT /api/auth/status", s.authMiddleware(s.updateStatus))

	mux.Handle("POST /api/guilds", s.authMiddleware(s.createGuild))
	mux.Handle("GET /api/guilds", s.authMiddleware(s.listGuilds))
	mux.Handle("GET /api/guilds/{guildId}", s.authMiddleware(s.getGuild))
	mux.Handle("PUT /api/guilds/{guildId}", s.authMiddleware(s.updateGuild))
	mux.Handle("DELETE /api/guilds/{guildId}", s.authMiddleware(s.deleteGuild))
	mux.Handle("POST /api/guilds/{guildId}/members", s.authMiddleware(s.addMember))
	mux.Handle("DELETE /api/guilds/{guildId}/members/{userId}", s.authMiddleware(s.removeMember))
	mux.Handle("POST /api/guilds/{guildId}/channels", s.authMiddleware(s.createChannel))
	mux.Handle("GET /api/guilds/{guildId}/channels", s.authMiddleware(s.listChannels))
	mux.Handle("GET /api/guilds/{guildId}/channels/{channelId}", s.authMiddleware(s.getChannel))
	mux.Handle("PUT /api/guilds/{guildId}/channels/{channelId}", s.authMiddleware(s.updateChannel))
	mux.Handle("DELETE /api/guilds/{guildId}/channels/{channelId}", s.authMiddleware(s.deleteChannel))
	mux.Handle("POST /api/guilds/{guildId}/invites", s.authMiddleware(s.createInvite))

	mux.HandleFunc("GET /api/invites/{code}", s.getInvite)
	mux.Handle("POST /api/invites/{code}/accept", s.authMiddleware(s.acceptInvite))
	mux.Handle("DELETE /api/invites/{code}", s.authMiddleware(s.deleteInvite))

	mux.Handle("GET /api/channels/{channelId}/messages", s.authMiddleware(s.channelMessages))
	mux.Handle("POST /api/channels/{channelId}/messages", s.authMiddleware(s.sendChannelMessage))

	mux.Handle("GET /api/direct-messages/{userId}", s.authMiddleware(s.directMessages))
	mux.Handle("POST /api/direct-messages", s.authMiddleware(s.sendDirectMessage))
	mux.Handle("DELETE /api/direct-messages/{messageId}", s.authMiddleware(s.deleteDirectMessage))

	mux.Handle("GET /api/friends", s.authMiddleware(s.listFriends))
	mux.Handle("POST /api/friends/requests", s.authMiddleware(s.sendFriendRequest))
	mux.Handle("POST /api/friends/requests/{requestId}/accept", s.authMiddleware(s.acceptFriendRequest))
	mux.Handle("POST /api/friends/requests/{requestId}/reject", s.authMiddleware(s.rejectFriendRequest))
	mux.Handle("DELETE /api/friends/{friendId}", s.authMiddleware(s.removeFriend))

	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *HarmonyApp) Handler() http.Handler {
	return s.srv.Handler
}

// Start blocks until the listener fails or Shutdown is called.
func (s *HarmonyApp) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("starting server")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HarmonyApp) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
