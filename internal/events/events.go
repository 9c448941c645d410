// Package events defines the domain events announced to other services and
// publishes them to a Redis list as JSON envelopes.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/welldanyogia/coachhub-backend/internal/models"
)

// Type names an event on the bus
type Type string

const (
	TypeSyncCompleted       Type = "email.sync.completed"
	TypeClientEmailReceived Type = "email.client.received"
	TypeMessageSent         Type = "message.sent"
)

// Event is implemented by every payload that can be published
type Event interface {
	EventType() Type
}

// SyncCompleted is announced once per coach sync
type SyncCompleted struct {
	CoachID           string    `json:"coachId"`
	TotalProcessed    int       `json:"totalProcessed"`
	ClientEmailsFound int       `json:"clientEmailsFound"`
	SyncedAt          time.Time `json:"syncedAt"`
}

// EventType implements Event
func (SyncCompleted) EventType() Type { return TypeSyncCompleted }

// ClientEmailReceived is announced when a new client email is stored
type ClientEmailReceived struct {
	CoachID    string    `json:"coachId"`
	ClientID   string    `json:"clientId"`
	ThreadID   string    `json:"threadId"`
	EmailID    string    `json:"emailId"`
	Subject    string    `json:"subject"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// EventType implements Event
func (ClientEmailReceived) EventType() Type { return TypeClientEmailReceived }

// MessageSent is announced after a direct message is committed
type MessageSent struct {
	ConversationID string                 `json:"conversationId"`
	MessageID      string                 `json:"messageId"`
	SenderID       string                 `json:"senderId"`
	SenderType     models.ParticipantType `json:"senderType"`
	Recipients     []string               `json:"recipients"`
	MessageType    models.MessageType     `json:"messageType"`
	CreatedAt      time.Time              `json:"createdAt"`
}

// EventType implements Event
func (MessageSent) EventType() Type { return TypeMessageSent }

// Envelope is the wire format pushed to the queue
type Envelope struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEnvelope wraps an event with an id and timestamp
func NewEnvelope(e Event, now time.Time) (*Envelope, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.EventType(), err)
	}
	return &Envelope{
		ID:         uuid.NewString(),
		Type:       e.EventType(),
		OccurredAt: now,
		Payload:    payload,
	}, nil
}
