package server

import (
	"errors"
	"log"
	"net/http"

	"chat-cqrs/internal/command"
	messagedomain "chat-cqrs/internal/message/domain"
	userdomain "chat-cqrs/internal/user/domain"
)

// mapError converts a service error to an HTTP status, an error code and a client-safe message.
func mapError(err error) (int, string, string) {
	var pubErr *command.PublishError
	switch {
	case errors.Is(err, userdomain.ErrInvalidInput), errors.Is(err, messagedomain.ErrInvalidContent):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, userdomain.ErrUsernameConflict):
		return http.StatusConflict, "CONFLICT", "username already exists"
	case errors.Is(err, userdomain.ErrUserNotFound):
		return http.StatusNotFound, "USER_NOT_FOUND", "user not found"
	case errors.Is(err, messagedomain.ErrThreadNotFound):
		return http.StatusNotFound, "THREAD_NOT_FOUND", "no conversation between these users"
	case errors.Is(err, userdomain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid credentials"
	case errors.As(err, &pubErr):
		return http.StatusServiceUnavailable, "UNAVAILABLE", "command could not be accepted, try again"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}

func writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := mapError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("http: %s %s: %v", r.Method, r.URL.Path, err)
	}
	writeError(w, status, code, msg)
}
