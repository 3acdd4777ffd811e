// Package command defines the write commands exchanged between the command API and the consumers:
// the closed set of command kinds, their JSON envelopes, the retry-count header and the error taxonomy
// shared by both sides of the pipeline.
package command

// Kind is the discriminator carried in the "command" field of every envelope.
type Kind string

// User activity kinds (user-commands topic).
const (
	KindUserCreation Kind = "USER_CREATION"
	KindLoginAttempt Kind = "LOGIN_ATTEMPT"
)

// Message kinds (message-commands topic).
const (
	KindSendMessage Kind = "SEND_MESSAGE"
)

// Session kinds (session-commands topic).
const (
	KindSaveSession   Kind = "SAVE_SESSION"
	KindUpsertSession Kind = "UPSERT_SESSION"
	KindUpdateSession Kind = "UPDATE_SESSION"
	KindDeleteSession Kind = "DELETE_SESSION"
	KindExpireSession Kind = "EXPIRE_SESSION"
)

// UserKinds returns the kinds published on the user-commands topic.
func UserKinds() []Kind {
	return []Kind{KindUserCreation, KindLoginAttempt}
}

// MessageKinds returns the kinds published on the message-commands topic.
func MessageKinds() []Kind {
	return []Kind{KindSendMessage}
}

// SessionKinds returns the kinds published on the session-commands topic.
func SessionKinds() []Kind {
	return []Kind{KindSaveSession, KindUpsertSession, KindUpdateSession, KindDeleteSession, KindExpireSession}
}

func (k Kind) String() string { return string(k) }
