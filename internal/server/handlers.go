package server

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	activitydomain "chat-cqrs/internal/activity/domain"
	messagedomain "chat-cqrs/internal/message/domain"
	userdomain "chat-cqrs/internal/user/domain"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sendMessageRequest struct {
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

type messageResponse struct {
	ID             string    `json:"id,omitempty"`
	ThreadID       string    `json:"threadId"`
	SenderID       string    `json:"senderId"`
	SenderUsername string    `json:"senderUsername"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	Status         string    `json:"status"`
}

type pageResponse[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Offset int   `json:"offset"`
	Limit  int   `json:"limit"`
}

type activityResponse struct {
	IPAddress     string    `json:"ipAddress"`
	UserAgent     string    `json:"userAgent"`
	Successful    bool      `json:"successful"`
	Timestamp     time.Time `json:"timestamp"`
	FailureReason *string   `json:"failureReason"`
	Action        string    `json:"action"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.deps.Health != nil {
		if err := h.deps.Health.Check(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error())
			return
		}
	}
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	ip, ua := readIP(r), r.UserAgent()
	u, err := h.deps.Users.Register(r.Context(), req.Username, req.Password, req.Email, ip, ua)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	// The user is already stored, so a failed session still answers 201; the client logs in instead.
	w.Header().Set(HeaderUserID, u.ID)
	if token, err := h.deps.Sessions.Create(r.Context(), u.ID, u.Username, ip, ua); err != nil {
		log.Printf("http: register %s: open session: %v (request %s)", u.ID, err, middleware.GetReqID(r.Context()))
	} else {
		w.Header().Set(HeaderSessionID, token)
	}
	writeSuccess(w, http.StatusCreated, toUserResponse(u))
}

func (h *Handler) lookupUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.deps.Users.Lookup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, toUserResponse(u))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "username and password are required")
		return
	}
	res, err := h.deps.Users.Login(r.Context(), req.Username, req.Password, readIP(r), r.UserAgent())
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	w.Header().Set(HeaderSessionID, res.Token)
	w.Header().Set(HeaderUserID, res.UserID)
	writeMessage(w, http.StatusOK, "login successful")
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserID(r.Context())
	token, _ := GetSessionToken(r.Context())
	if err := h.deps.Sessions.InvalidateForUser(r.Context(), token, userID); err != nil {
		writeMappedError(w, r, err)
		return
	}
	w.Header().Del(HeaderSessionID)
	writeMessage(w, http.StatusOK, "session invalidated")
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if strings.TrimSpace(req.Recipient) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "recipient is required")
		return
	}
	userID, _ := GetUserID(r.Context())
	m, err := h.deps.Messages.Send(r.Context(), userID, req.Recipient, req.Content)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusAccepted, toMessageResponse(m))
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user1, user2 := strings.TrimSpace(q.Get("user1")), strings.TrimSpace(q.Get("user2"))
	if user1 == "" || user2 == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "user1 and user2 are required")
		return
	}
	userID, _ := GetUserID(r.Context())
	if userID != user1 && userID != user2 {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "not a participant of this conversation")
		return
	}
	page, err := h.deps.Messages.ConversationPage(r.Context(), user1, user2, parseIntDefault(q.Get("offset"), 0), parseIntDefault(q.Get("limit"), 0))
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	items := make([]messageResponse, len(page.Messages))
	for i, m := range page.Messages {
		items[i] = toMessageResponse(m)
	}
	writeSuccess(w, http.StatusOK, pageResponse[messageResponse]{Items: items, Total: page.Total, Offset: page.Offset, Limit: page.Limit})
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, _ := GetUserID(r.Context())
	page, err := h.deps.Activities.Page(r.Context(), userID, parseIntDefault(q.Get("offset"), 0), parseIntDefault(q.Get("limit"), 0))
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	items := make([]activityResponse, len(page.Entries))
	for i, e := range page.Entries {
		items[i] = toActivityResponse(e)
	}
	writeSuccess(w, http.StatusOK, pageResponse[activityResponse]{Items: items, Total: page.Total, Offset: page.Offset, Limit: page.Limit})
}

func toUserResponse(u *userdomain.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt}
}

func toMessageResponse(m *messagedomain.Message) messageResponse {
	return messageResponse{
		ID:             m.ID,
		ThreadID:       m.ThreadID,
		SenderID:       m.SenderID,
		SenderUsername: m.SenderUsername,
		Content:        m.Content,
		Timestamp:      m.Timestamp,
		Status:         string(m.Status),
	}
}

func toActivityResponse(e activitydomain.Entry) activityResponse {
	return activityResponse{
		IPAddress:     e.IPAddress,
		UserAgent:     e.UserAgent,
		Successful:    e.Successful,
		Timestamp:     e.Timestamp,
		FailureReason: e.FailureReason,
		Action:        string(e.Action),
	}
}
