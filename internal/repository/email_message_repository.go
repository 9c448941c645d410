package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/welldanyogia/coachhub-backend/internal/models"
	"gorm.io/gorm"
)

// EmailMessageRepository defines the interface for synced email data access
type EmailMessageRepository interface {
	GetOrCreate(ctx context.Context, message *models.EmailMessage) (*models.EmailMessage, bool, error)
	ListByThread(ctx context.Context, threadID string, limit int) ([]models.EmailMessage, error)
}

type emailMessageRepository struct {
	db *gorm.DB
}

// NewEmailMessageRepository creates a new EmailMessageRepository instance
func NewEmailMessageRepository(db *gorm.DB) EmailMessageRepository {
	return &emailMessageRepository{db: db}
}

func (r *emailMessageRepository) getByProviderID(ctx context.Context, threadID, providerMessageID string) (*models.EmailMessage, error) {
	var message models.EmailMessage
	err := r.db.WithContext(ctx).
		Where("thread_id = ? AND provider_message_id = ?", threadID, providerMessageID).
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get email message: %w", err)
	}
	return &message, nil
}

// GetOrCreate stores the message unless the thread already holds the same
// provider message id. A new message bumps the thread's counters and marks it unread.
// Returns the message, a boolean indicating if it was created, and any error
func (r *emailMessageRepository) GetOrCreate(ctx context.Context, message *models.EmailMessage) (*models.EmailMessage, bool, error) {
	existing, err := r.getByProviderID(ctx, message.ThreadID, message.ProviderMessageID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&models.EmailThread{}).
			Where("id = ?", message.ThreadID).
			Updates(map[string]interface{}{
				"message_count":   gorm.Expr("message_count + 1"),
				"last_message_at": gorm.Expr("CASE WHEN last_message_at < ? THEN ? ELSE last_message_at END", message.SentAt, message.SentAt),
				"is_read":         false,
			}).Error
	})
	if err != nil {
		// Another sync may have stored the same message
		if isDuplicateKeyError(err) {
			existing, err = r.getByProviderID(ctx, message.ThreadID, message.ProviderMessageID)
			if err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create email message: %w", err)
	}

	return message, true, nil
}

// ListByThread returns up to limit messages of a thread, newest-first
func (r *emailMessageRepository) ListByThread(ctx context.Context, threadID string, limit int) ([]models.EmailMessage, error) {
	var messages []models.EmailMessage
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("sent_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list email messages: %w", err)
	}
	return messages, nil
}
