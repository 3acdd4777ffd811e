// Package server is the HTTP command API: it validates requests and hands writes to the command
// services, which publish them for the consumers.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	activitydomain "chat-cqrs/internal/activity/domain"
	messagedomain "chat-cqrs/internal/message/domain"
	sessiondomain "chat-cqrs/internal/session/domain"
	userdomain "chat-cqrs/internal/user/domain"
	userservice "chat-cqrs/internal/user/service"
)

// Identity headers: clients send both on protected routes and receive both after register and login.
const (
	HeaderSessionID = "X-Session-Id"
	HeaderUserID    = "X-User-Id"
)

// UserService is implemented by user service.UserService.
type UserService interface {
	Register(ctx context.Context, username, password, email, ip, userAgent string) (*userdomain.User, error)
	Login(ctx context.Context, username, password, ip, userAgent string) (*userservice.LoginResult, error)
	Lookup(ctx context.Context, id string) (*userdomain.User, error)
}

// SessionService is implemented by session service.Manager.
type SessionService interface {
	Create(ctx context.Context, userID, username, ip, userAgent string) (string, error)
	ValidateForUser(ctx context.Context, token, userID string) (*sessiondomain.Session, bool)
	InvalidateForUser(ctx context.Context, token, userID string) error
}

// MessageService is implemented by message service.MessageService.
type MessageService interface {
	Send(ctx context.Context, senderID, recipient, content string) (*messagedomain.Message, error)
	ConversationPage(ctx context.Context, userA, userB string, offset, limit int) (*messagedomain.Page, error)
}

// ActivityService is implemented by activity service.ActivityService.
type ActivityService interface {
	Page(ctx context.Context, userID string, offset, limit int) (*activitydomain.EntryPage, error)
}

// HealthChecker is implemented by health handler.Checker.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// Deps holds the services behind the routes. Health may be nil.
type Deps struct {
	Users      UserService
	Sessions   SessionService
	Messages   MessageService
	Activities ActivityService
	Health     HealthChecker
}

// Handler serves the HTTP command API.
type Handler struct {
	deps Deps
}

// NewHandler returns a Handler over deps.
func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps}
}

// NewRouter registers every route and the middleware stack.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.health)
		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)

		r.Group(func(r chi.Router) {
			r.Use(h.sessionMiddleware)
			r.Post("/auth/logout", h.logout)
			r.Post("/messages/send", h.sendMessage)
			r.Get("/messages/history", h.history)
			r.Get("/activities", h.activities)
			r.Get("/users/{id}", h.lookupUser)
		})
	})
	return r
}
