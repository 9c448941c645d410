package models

import (
	"sort"
	"strings"
)

// ParticipantType is the category of user taking part in a conversation
type ParticipantType string

const (
	ParticipantCoach  ParticipantType = "coach"
	ParticipantClient ParticipantType = "client"
	ParticipantAdmin  ParticipantType = "admin"
)

// Valid reports whether t is one of the known participant categories
func (t ParticipantType) Valid() bool {
	switch t {
	case ParticipantCoach, ParticipantClient, ParticipantAdmin:
		return true
	}
	return false
}

// Participant identifies a user by id and category
type Participant struct {
	ID   string          `json:"id"`
	Type ParticipantType `json:"type"`
}

// Key returns the unread-counter key of the participant
func (p Participant) Key() string {
	return ParticipantKey(p.Type, p.ID)
}

// ParticipantKey builds the "<type>:<id>" key used for unread counters,
// websocket fan-out and direct-pair lookups.
func ParticipantKey(participantType ParticipantType, id string) string {
	return string(participantType) + ":" + id
}

// DirectKey returns the order-independent identity of a two-party conversation
func DirectKey(a, b Participant) string {
	keys := []string{a.Key(), b.Key()}
	sort.Strings(keys)
	return strings.Join(keys, "|")
}
