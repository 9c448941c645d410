package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MessageType enumerates the kinds of content a direct message can carry
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageVideo MessageType = "video"
	MessageAudio MessageType = "audio"
	MessageFile  MessageType = "file"
)

// Valid reports whether t is a known message type
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageVideo, MessageAudio, MessageFile:
		return true
	}
	return false
}

// DirectMessage is a single message posted to a conversation
type DirectMessage struct {
	ID               string                      `gorm:"primaryKey;size:36" json:"id"`
	ConversationID   string                      `gorm:"not null;size:36;index:idx_direct_messages_conversation_created" json:"conversationId"`
	SenderID         string                      `gorm:"not null;size:64;index:idx_direct_messages_sender" json:"senderId"`
	SenderType       ParticipantType             `gorm:"not null;size:16;index:idx_direct_messages_sender" json:"senderType"`
	SenderName       string                      `gorm:"size:255" json:"senderName"`
	Type             MessageType                 `gorm:"not null;size:16" json:"type"`
	Content          *string                     `gorm:"type:text" json:"content"`
	MediaURLs        datatypes.JSONSlice[string] `json:"mediaUrls"`
	FileURL          *string                     `gorm:"size:1024" json:"fileUrl,omitempty"`
	FileName         *string                     `gorm:"size:255" json:"fileName,omitempty"`
	FileSize         *int64                      `json:"fileSize,omitempty"`
	ReplyToMessageID *string                     `gorm:"size:36;index" json:"replyToMessageId"`
	IsRead           bool                        `gorm:"not null" json:"isRead"`
	ReadAt           *time.Time                  `json:"readAt"`
	IsEdited         bool                        `gorm:"not null" json:"isEdited"`
	EditedAt         *time.Time                  `json:"editedAt"`
	CreatedAt        time.Time                   `gorm:"autoCreateTime;index:idx_direct_messages_conversation_created" json:"createdAt"`

	// ReplyTo is resolved by the repository, never persisted
	ReplyTo *ReplyPreview `gorm:"-" json:"replyTo,omitempty"`
}

// TableName returns the table name for DirectMessage
func (DirectMessage) TableName() string {
	return "direct_messages"
}

// BeforeCreate assigns a UUID and normalizes empty collections
func (m *DirectMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.MediaURLs == nil {
		m.MediaURLs = datatypes.JSONSlice[string]{}
	}
	if m.Type == "" {
		m.Type = MessageText
	}
	return nil
}

// AuthoredBy reports whether the id/type pair sent the message
func (m *DirectMessage) AuthoredBy(id string, participantType ParticipantType) bool {
	return m.SenderID == id && m.SenderType == participantType
}

// ReplyPreview is the projection of a replied-to message embedded in responses
type ReplyPreview struct {
	ID         string          `json:"id"`
	Content    *string         `json:"content"`
	SenderID   string          `json:"senderId"`
	SenderType ParticipantType `json:"senderType"`
	SenderName string          `json:"senderName"`
	CreatedAt  time.Time       `json:"createdAt"`
}
