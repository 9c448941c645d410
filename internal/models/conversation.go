package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationType distinguishes two-party chats from named groups
type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationGroup  ConversationType = "group"
)

// Conversation is a persisted thread of direct messages between a fixed set of participants
type Conversation struct {
	ID            string           `gorm:"primaryKey;size:36" json:"id"`
	Type          ConversationType `gorm:"not null;size:16;index" json:"type"`
	Name          *string          `gorm:"size:255" json:"name"`
	DirectKey     *string          `gorm:"uniqueIndex;size:255" json:"-"`
	LastMessageID *string          `gorm:"size:36" json:"lastMessageId"`
	LastMessageAt *time.Time       `gorm:"index" json:"lastMessageAt"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updatedAt"`

	// Relationships
	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
	Messages     []DirectMessage           `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for Conversation
func (Conversation) TableName() string {
	return "conversations"
}

// BeforeCreate assigns a UUID when none was provided
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// ConversationParticipant is one member of a conversation together with its unread counter.
// Position keeps the participant order the conversation was created with.
type ConversationParticipant struct {
	ID              uint            `gorm:"primaryKey" json:"-"`
	ConversationID  string          `gorm:"not null;size:36;uniqueIndex:idx_conversation_participant_key" json:"-"`
	Position        int             `gorm:"not null" json:"-"`
	ParticipantID   string          `gorm:"not null;size:64;index:idx_participant_identity" json:"participantId"`
	ParticipantType ParticipantType `gorm:"not null;size:16;index:idx_participant_identity" json:"participantType"`
	ParticipantKey  string          `gorm:"not null;size:96;uniqueIndex:idx_conversation_participant_key" json:"-"`
	UnreadCount     int             `gorm:"not null" json:"unreadCount"`
}

// TableName returns the table name for ConversationParticipant
func (ConversationParticipant) TableName() string {
	return "conversation_participants"
}

// ParticipantIDs returns participant ids in conversation order
func (c *Conversation) ParticipantIDs() []string {
	ids := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.ParticipantID)
	}
	return ids
}

// ParticipantTypes returns participant types parallel to ParticipantIDs
func (c *Conversation) ParticipantTypes() []ParticipantType {
	types := make([]ParticipantType, 0, len(c.Participants))
	for _, p := range c.Participants {
		types = append(types, p.ParticipantType)
	}
	return types
}

// UnreadCounts returns the unread counter of every participant keyed by participant key
func (c *Conversation) UnreadCounts() map[string]int {
	counts := make(map[string]int, len(c.Participants))
	for _, p := range c.Participants {
		counts[p.ParticipantKey] = p.UnreadCount
	}
	return counts
}

// HasParticipant reports whether the id/type pair is a member of the conversation
func (c *Conversation) HasParticipant(id string, participantType ParticipantType) bool {
	key := ParticipantKey(participantType, id)
	for _, p := range c.Participants {
		if p.ParticipantKey == key {
			return true
		}
	}
	return false
}

// ParticipantKeys returns the keys of all members
func (c *Conversation) ParticipantKeys() []string {
	keys := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		keys = append(keys, p.ParticipantKey)
	}
	return keys
}

// ConversationView is the API representation of a conversation
type ConversationView struct {
	ID               string            `json:"id"`
	Type             ConversationType  `json:"type"`
	Name             *string           `json:"name"`
	ParticipantIDs   []string          `json:"participantIds"`
	ParticipantTypes []ParticipantType `json:"participantTypes"`
	UnreadCount      map[string]int    `json:"unreadCount"`
	LastMessageID    *string           `json:"lastMessageId"`
	LastMessageAt    *time.Time        `json:"lastMessageAt"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
	Messages         []DirectMessage   `json:"messages"`
}

// View flattens the conversation and the given messages into its API shape
func (c *Conversation) View(messages []DirectMessage) ConversationView {
	if messages == nil {
		messages = []DirectMessage{}
	}
	return ConversationView{
		ID:               c.ID,
		Type:             c.Type,
		Name:             c.Name,
		ParticipantIDs:   c.ParticipantIDs(),
		ParticipantTypes: c.ParticipantTypes(),
		UnreadCount:      c.UnreadCounts(),
		LastMessageID:    c.LastMessageID,
		LastMessageAt:    c.LastMessageAt,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
		Messages:         messages,
	}
}
