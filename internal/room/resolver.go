package room

import "github.com/pkg/errors"

// ErrMissingSession is returned when an action needs a room but carries no session ID.
var ErrMissingSession = errors.New("session id is required")

// Resolve maps a session and an optional chat to the room key shared by client
// actions and provider webhooks.
func Resolve(sessionID, chatID string) string {
	if chatID == "" {
		return sessionID
	}
	return sessionID + "-" + chatID
}

// ResolveRequired is Resolve for callers that must reject an empty session ID.
func ResolveRequired(sessionID, chatID string) (string, error) {
	if sessionID == "" {
		return "", ErrMissingSession
	}
	return Resolve(sessionID, chatID), nil
}
