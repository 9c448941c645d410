package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/welldanyogia/coachhub-backend/internal/errors"
	"github.com/welldanyogia/coachhub-backend/internal/models"
	"gorm.io/gorm"
)

// ConversationFilter narrows a participant's conversation listing
type ConversationFilter struct {
	ParticipantKey string
	Search         string
	UnreadOnly     bool
	Limit          int
	Offset         int
}

// ConversationRepository defines the interface for conversation data access
type ConversationRepository interface {
	Create(ctx context.Context, conversation *models.Conversation) error
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	GetByDirectKey(ctx context.Context, directKey string) (*models.Conversation, error)
	List(ctx context.Context, filter ConversationFilter) ([]models.Conversation, int64, error)
}

// conversationRepository implements ConversationRepository using GORM
type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new ConversationRepository instance
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// Create inserts the conversation and its participant rows in one transaction.
// A second direct conversation for the same pair fails with ErrDuplicateEntry.
func (r *conversationRepository) Create(ctx context.Context, conversation *models.Conversation) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Participants", "Messages").Create(conversation).Error; err != nil {
			return err
		}
		for i := range conversation.Participants {
			conversation.Participants[i].ConversationID = conversation.ID
			conversation.Participants[i].Position = i
		}
		if len(conversation.Participants) == 0 {
			return nil
		}
		return tx.Create(&conversation.Participants).Error
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("direct conversation already exists: %w", ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

// GetByID retrieves a conversation with its participants in order
func (r *conversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants", orderByPosition).
		Where("id = ?", id).
		First(&conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get conversation by ID: %w", err)
	}
	return &conversation, nil
}

// GetByDirectKey retrieves the direct conversation of a participant pair
func (r *conversationRepository) GetByDirectKey(ctx context.Context, directKey string) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants", orderByPosition).
		Where("direct_key = ?", directKey).
		First(&conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get conversation by direct key: %w", err)
	}
	return &conversation, nil
}

// List returns the conversations the participant belongs to, most recently active first
func (r *conversationRepository) List(ctx context.Context, filter ConversationFilter) ([]models.Conversation, int64, error) {
	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).
			Model(&models.Conversation{}).
			Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id AND cp.participant_key = ?", filter.ParticipantKey)
		if search := strings.TrimSpace(filter.Search); search != "" {
			q = q.Where("LOWER(conversations.name) LIKE ?", "%"+strings.ToLower(search)+"%")
		}
		if filter.UnreadOnly {
			q = q.Where("cp.unread_count > 0")
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count conversations: %w", err)
	}

	var conversations []models.Conversation
	err := scoped().
		Select("conversations.*").
		Preload("Participants", orderByPosition).
		Order("conversations.last_message_at IS NULL, conversations.last_message_at DESC, conversations.created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&conversations).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list conversations: %w", err)
	}

	return conversations, total, nil
}
