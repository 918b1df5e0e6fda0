package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventVoteChanged     EventKind = "vote_changed"
	EventAspectChanged   EventKind = "aspect_rating_changed"
	EventArgumentChanged EventKind = "argument_changed"
	EventBeliefArchived  EventKind = "belief_archived"
)

type ArgumentChange string

const (
	ArgumentCreated ArgumentChange = "created"
	ArgumentEdited  ArgumentChange = "edited"
	ArgumentDeleted ArgumentChange = "deleted"
)

func ValidArgumentChange(c string) bool {
	switch ArgumentChange(c) {
	case ArgumentCreated, ArgumentEdited, ArgumentDeleted:
		return true
	}
	return false
}

// MutationEvent is an upstream signal mutation. Delivery is at-least-once, so
// handling must be safe to redeliver. ArgumentID keys argument-scoped events;
// BeliefID keys belief lifecycle events (archival).
type MutationEvent struct {
	Kind       EventKind      `json:"kind"`
	ArgumentID uuid.UUID      `json:"argument_id,omitempty"`
	BeliefID   uuid.UUID      `json:"belief_id,omitempty"`
	Change     ArgumentChange `json:"change,omitempty"`
	ReceivedAt time.Time      `json:"received_at"`
}
