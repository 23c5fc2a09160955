package websocket

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrClientDisconnected = errors.New("client disconnected")
	ErrUnknownEvent       = errors.New("unknown event")
)

// ValidationError reports required fields missing from a client action.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	switch len(e.Fields) {
	case 0:
		return "invalid payload"
	case 1:
		return e.Fields[0] + " is required"
	default:
		last := len(e.Fields) - 1
		return strings.Join(e.Fields[:last], ", ") + " and " + e.Fields[last] + " are required"
	}
}

// requireFields fails when any value is empty. pairs alternates field name and
// value; the error names every required field of the action.
func requireFields(pairs ...string) error {
	fields := make([]string, 0, len(pairs)/2)
	missing := false
	for i := 0; i+1 < len(pairs); i += 2 {
		fields = append(fields, pairs[i])
		if pairs[i+1] == "" {
			missing = true
		}
	}
	if !missing {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// UnsupportedTypeError is returned for a send-message with an unknown messageType.
type UnsupportedTypeError struct {
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported message type: %s", e.Type)
}

// RegistryDesyncError means the room registry and the transport group table disagree.
// It is an internal consistency bug and is never sent to clients.
type RegistryDesyncError struct {
	Rooms []string
}

func (e *RegistryDesyncError) Error() string {
	rooms := append([]string(nil), e.Rooms...)
	sort.Strings(rooms)
	return fmt.Sprintf("registry out of sync with transport groups: %s", strings.Join(rooms, ", "))
}
