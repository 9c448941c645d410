package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Coach owns client relationships and connected mailboxes
type Coach struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:255" json:"name"`
	Email     string    `gorm:"not null;size:255;index" json:"email"`
	IsActive  bool      `gorm:"not null" json:"isActive"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName returns the table name for Coach
func (Coach) TableName() string {
	return "coaches"
}

// Client is a coached person that may email a coach
type Client struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:255" json:"name"`
	Email     string    `gorm:"not null;size:255;index" json:"email"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName returns the table name for Client
func (Client) TableName() string {
	return "clients"
}

// RelationshipStatus is the lifecycle state of a coach-client relationship
type RelationshipStatus string

const (
	RelationshipActive   RelationshipStatus = "active"
	RelationshipInactive RelationshipStatus = "inactive"
)

// CoachClientRelationship links a client to a coach
type CoachClientRelationship struct {
	ID        uint               `gorm:"primaryKey" json:"id"`
	CoachID   string             `gorm:"not null;size:64;uniqueIndex:idx_coach_client" json:"coachId"`
	ClientID  string             `gorm:"not null;size:64;uniqueIndex:idx_coach_client" json:"clientId"`
	Status    RelationshipStatus `gorm:"not null;size:16" json:"status"`
	CreatedAt time.Time          `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName returns the table name for CoachClientRelationship
func (CoachClientRelationship) TableName() string {
	return "coach_client_relationships"
}

// Admin is a platform administrator answering support chats
type Admin struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:255" json:"name"`
	Email     string    `gorm:"size:255" json:"email"`
	IsActive  bool      `gorm:"not null" json:"isActive"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

// TableName returns the table name for Admin
func (Admin) TableName() string {
	return "admins"
}

func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// BeforeCreate assigns a UUID when none was provided
func (c *Coach) BeforeCreate(tx *gorm.DB) error { newID(&c.ID); return nil }

// BeforeCreate assigns a UUID when none was provided
func (c *Client) BeforeCreate(tx *gorm.DB) error { newID(&c.ID); return nil }

// BeforeCreate assigns a UUID when none was provided
func (a *Admin) BeforeCreate(tx *gorm.DB) error { newID(&a.ID); return nil }
