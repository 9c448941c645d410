package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProviderGoogle is the only provider the sync engine polls
const ProviderGoogle = "google"

// EmailAccount is a mailbox a coach connected through OAuth
type EmailAccount struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	UserID         string     `gorm:"not null;size:64;index" json:"userId"`
	Provider       string     `gorm:"not null;size:32" json:"provider"`
	EmailAddress   string     `gorm:"not null;size:255" json:"emailAddress"`
	AccessToken    string     `gorm:"type:text" json:"-"`
	RefreshToken   *string    `gorm:"type:text" json:"-"`
	TokenExpiresAt *time.Time `json:"-"`
	IsActive       bool       `gorm:"not null" json:"isActive"`
	SyncEnabled    bool       `gorm:"not null" json:"syncEnabled"`
	LastSyncAt     *time.Time `json:"lastSyncAt"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for EmailAccount
func (EmailAccount) TableName() string {
	return "email_accounts"
}

// BeforeCreate assigns a UUID when none was provided
func (a *EmailAccount) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Thread status and priority values
const (
	ThreadStatusActive   = "active"
	ThreadStatusArchived = "archived"
	ThreadPriorityNormal = "normal"
)

// EmailThread groups a remote email thread for one coach-client pair
type EmailThread struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	CoachID        string    `gorm:"not null;size:64;uniqueIndex:idx_email_thread_identity;index:idx_email_threads_coach_last" json:"coachId"`
	ClientID       string    `gorm:"not null;size:64;uniqueIndex:idx_email_thread_identity" json:"clientId"`
	EmailAccountID *string   `gorm:"size:36;index" json:"emailAccountId"`
	ThreadID       string    `gorm:"not null;size:255;uniqueIndex:idx_email_thread_identity" json:"threadId"`
	Subject        string    `gorm:"size:998" json:"subject"`
	Status         string    `gorm:"not null;size:16;index" json:"status"`
	IsRead         bool      `gorm:"not null" json:"isRead"`
	Priority       string    `gorm:"not null;size:16" json:"priority"`
	MessageCount   int       `gorm:"not null" json:"messageCount"`
	LastMessageAt  time.Time `gorm:"index:idx_email_threads_coach_last" json:"lastMessageAt"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	// Relationships
	Client   *Client        `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Messages []EmailMessage `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// TableName returns the table name for EmailThread
func (EmailThread) TableName() string {
	return "email_threads"
}

// BeforeCreate assigns a UUID when none was provided
func (t *EmailThread) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// EmailMessage is one email stored under an EmailThread
type EmailMessage struct {
	ID                string    `gorm:"primaryKey;size:36" json:"id"`
	ThreadID          string    `gorm:"not null;size:36;uniqueIndex:idx_email_message_provider" json:"threadId"`
	ProviderMessageID string    `gorm:"not null;size:255;uniqueIndex:idx_email_message_provider" json:"providerMessageId"`
	From              string    `gorm:"column:from_address;size:255" json:"from"`
	To                string    `gorm:"column:to_address;size:1024" json:"to"`
	Subject           string    `gorm:"size:998" json:"subject"`
	Text              string    `gorm:"type:text" json:"text"`
	SentAt            time.Time `gorm:"index" json:"sentAt"`
	ReceivedAt        time.Time `json:"receivedAt"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName returns the table name for EmailMessage
func (EmailMessage) TableName() string {
	return "email_messages"
}

// BeforeCreate assigns a UUID when none was provided
func (m *EmailMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// SyncStats summarizes a coach's email sync state
type SyncStats struct {
	UnreadThreads   int64      `json:"unreadThreads"`
	NewThreadsToday int64      `json:"newThreadsToday"`
	LastSyncAt      *time.Time `json:"lastSyncAt"`
}
