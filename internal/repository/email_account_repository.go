package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/welldanyogia/coachhub-backend/internal/models"
	"gorm.io/gorm"
)

// EmailAccountRepository defines the interface for connected mailbox data access
type EmailAccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.EmailAccount, error)
	ListSyncable(ctx context.Context, userID string) ([]models.EmailAccount, error)
	ListActive(ctx context.Context, userID string) ([]models.EmailAccount, error)
	UpdateTokens(ctx context.Context, id, accessToken string, expiresAt *time.Time) error
	UpdateLastSync(ctx context.Context, id string, at time.Time) error
}

type emailAccountRepository struct {
	db *gorm.DB
}

// NewEmailAccountRepository creates a new EmailAccountRepository instance
func NewEmailAccountRepository(db *gorm.DB) EmailAccountRepository {
	return &emailAccountRepository{db: db}
}

// GetByID retrieves a mailbox by id
func (r *emailAccountRepository) GetByID(ctx context.Context, id string) (*models.EmailAccount, error) {
	var account models.EmailAccount
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get email account: %w", err)
	}
	return &account, nil
}

// ListSyncable returns the user's active, sync-enabled Google mailboxes
func (r *emailAccountRepository) ListSyncable(ctx context.Context, userID string) ([]models.EmailAccount, error) {
	var accounts []models.EmailAccount
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ? AND sync_enabled = ? AND provider = ?", userID, true, true, models.ProviderGoogle).
		Order("created_at ASC").
		Find(&accounts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list syncable email accounts: %w", err)
	}
	return accounts, nil
}

// ListActive returns every active mailbox of the user regardless of provider
func (r *emailAccountRepository) ListActive(ctx context.Context, userID string) ([]models.EmailAccount, error) {
	var accounts []models.EmailAccount
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at ASC").
		Find(&accounts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list email accounts: %w", err)
	}
	return accounts, nil
}

// UpdateTokens stores a refreshed access token
func (r *emailAccountRepository) UpdateTokens(ctx context.Context, id, accessToken string, expiresAt *time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.EmailAccount{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"access_token":     accessToken,
			"token_expires_at": expiresAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update tokens: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLastSync records when the mailbox was last synced
func (r *emailAccountRepository) UpdateLastSync(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.EmailAccount{}).
		Where("id = ?", id).
		Update("last_sync_at", at)
	if result.Error != nil {
		return fmt.Errorf("failed to update last sync: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
