package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/profiledir/internal/directory"
)

// EventType is also used as the AMQP routing key.
type EventType string

const (
	EventProfileCreated EventType = "profile.created"
	EventProfileUpdated EventType = "profile.updated"
	EventProfileDeleted EventType = "profile.deleted"
)

// ProfileEvent is the message published for every directory mutation.
type ProfileEvent struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"type"`
	ProfileID  string            `json:"profileId"`
	Profile    directory.Profile `json:"profile"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// TypeFor maps a change kind to its event type.
func TypeFor(kind directory.ChangeKind) (EventType, error) {
	switch kind {
	case directory.ChangeAdded:
		return EventProfileCreated, nil
	case directory.ChangeUpdated:
		return EventProfileUpdated, nil
	case directory.ChangeRemoved:
		return EventProfileDeleted, nil
	default:
		return "", fmt.Errorf("unknown change kind %q", kind)
	}
}

// NewEvent builds the event for a directory change.
func NewEvent(c directory.Change) (ProfileEvent, error) {
	typ, err := TypeFor(c.Kind)
	if err != nil {
		return ProfileEvent{}, err
	}
	at := c.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return ProfileEvent{
		ID:         uuid.New().String(),
		Type:       typ,
		ProfileID:  c.Profile.ID,
		Profile:    c.Profile,
		OccurredAt: at,
	}, nil
}
