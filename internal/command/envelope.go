package command

import "time"

// Envelope is implemented by every command payload. The kind selects the handler on the consumer side.
type Envelope interface {
	CommandKind() Kind
}

// MessageCommand is the payload of the message-commands topic.
type MessageCommand struct {
	Command        Kind      `json:"command"`
	ThreadID       string    `json:"threadId"`
	SenderID       string    `json:"senderId"`
	SenderUsername string    `json:"senderUsername"`
	Recipient      string    `json:"recipient,omitempty"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

func (c MessageCommand) CommandKind() Kind { return c.Command }

// UserActivityCommand is the payload of the user-commands topic.
type UserActivityCommand struct {
	Command       Kind      `json:"command"`
	Username      string    `json:"username"`
	UserID        string    `json:"userId"`
	IPAddress     string    `json:"ipAddress"`
	UserAgent     string    `json:"userAgent"`
	Successful    bool      `json:"successful"`
	FailureReason *string   `json:"failureReason"`
	Email         string    `json:"email,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func (c UserActivityCommand) CommandKind() Kind { return c.Command }

// SessionCommand is the payload of the session-commands topic. ExpiresAt is zero for DELETE and EXPIRE.
type SessionCommand struct {
	Command            Kind      `json:"command"`
	HashedSessionToken string    `json:"hashedSessionToken"`
	UserID             string    `json:"userId"`
	ExpiresAt          time.Time `json:"expiresAt"`
	IPAddress          string    `json:"ipAddress"`
	UserAgent          string    `json:"userAgent"`
	Timestamp          time.Time `json:"timestamp"`
}

func (c SessionCommand) CommandKind() Kind { return c.Command }

// NewSendMessage builds a SEND_MESSAGE command.
func NewSendMessage(threadID, senderID, senderUsername, recipient, content string, at time.Time) MessageCommand {
	return MessageCommand{
		Command:        KindSendMessage,
		ThreadID:       threadID,
		SenderID:       senderID,
		SenderUsername: senderUsername,
		Recipient:      recipient,
		Content:        content,
		Timestamp:      at.UTC(),
	}
}

// NewUserCreation builds a USER_CREATION command. Creation is always successful.
func NewUserCreation(username, userID, email, ip, userAgent string, at time.Time) UserActivityCommand {
	return UserActivityCommand{
		Command:    KindUserCreation,
		Username:   username,
		UserID:     userID,
		IPAddress:  ip,
		UserAgent:  userAgent,
		Successful: true,
		Email:      email,
		Timestamp:  at.UTC(),
	}
}

// NewLoginAttempt builds a LOGIN_ATTEMPT command. failureReason is dropped when successful is true.
func NewLoginAttempt(username, userID, ip, userAgent string, successful bool, failureReason string, at time.Time) UserActivityCommand {
	cmd := UserActivityCommand{
		Command:    KindLoginAttempt,
		Username:   username,
		UserID:     userID,
		IPAddress:  ip,
		UserAgent:  userAgent,
		Successful: successful,
		Timestamp:  at.UTC(),
	}
	if !successful && failureReason != "" {
		cmd.FailureReason = &failureReason
	}
	return cmd
}

// NewSessionCommand builds a session command of the given kind.
func NewSessionCommand(kind Kind, hashedToken, userID string, expiresAt time.Time, ip, userAgent string, at time.Time) SessionCommand {
	cmd := SessionCommand{
		Command:            kind,
		HashedSessionToken: hashedToken,
		UserID:             userID,
		IPAddress:          ip,
		UserAgent:          userAgent,
		Timestamp:          at.UTC(),
	}
	if !expiresAt.IsZero() {
		cmd.ExpiresAt = expiresAt.UTC()
	}
	return cmd
}

// Delivery is one received message with the attempt number decoded from its retry-count header.
type Delivery struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Attempt   int
}
