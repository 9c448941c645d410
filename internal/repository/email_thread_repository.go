package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/welldanyogia/coachhub-backend/internal/errors"
	"github.com/welldanyogia/coachhub-backend/internal/models"
	"gorm.io/gorm"
)

// EmailThreadRepository defines the interface for email thread data access
type EmailThreadRepository interface {
	GetOrCreate(ctx context.Context, thread *models.EmailThread) (*models.EmailThread, bool, error)
	GetForCoach(ctx context.Context, id, coachID string) (*models.EmailThread, error)
	ListByCoach(ctx context.Context, coachID, status string, limit int) ([]models.EmailThread, error)
	SetRead(ctx context.Context, id, coachID string, isRead bool) error
	CountUnread(ctx context.Context, coachID string) (int64, error)
	CountCreatedSince(ctx context.Context, coachID string, since time.Time) (int64, error)
}

type emailThreadRepository struct {
	db *gorm.DB
}

// NewEmailThreadRepository creates a new EmailThreadRepository instance
func NewEmailThreadRepository(db *gorm.DB) EmailThreadRepository {
	return &emailThreadRepository{db: db}
}

func (r *emailThreadRepository) getByIdentity(ctx context.Context, coachID, clientID, threadID string) (*models.EmailThread, error) {
	var thread models.EmailThread
	err := r.db.WithContext(ctx).
		Where("coach_id = ? AND client_id = ? AND thread_id = ?", coachID, clientID, threadID).
		First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrThreadNotFound
		}
		return nil, fmt.Errorf("failed to get email thread: %w", err)
	}
	return &thread, nil
}

// GetOrCreate finds the thread for (coach, client, remote thread id) or inserts the given one.
// Returns the thread, a boolean indicating if it was created, and any error
func (r *emailThreadRepository) GetOrCreate(ctx context.Context, thread *models.EmailThread) (*models.EmailThread, bool, error) {
	existing, err := r.getByIdentity(ctx, thread.CoachID, thread.ClientID, thread.ThreadID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, apperrors.ErrThreadNotFound) {
		return nil, false, err
	}

	if err := r.db.WithContext(ctx).Create(thread).Error; err != nil {
		// Another sync may have inserted the same thread
		if isDuplicateKeyError(err) {
			existing, err = r.getByIdentity(ctx, thread.CoachID, thread.ClientID, thread.ThreadID)
			if err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create email thread: %w", err)
	}

	return thread, true, nil
}

// GetForCoach retrieves a thread owned by the coach together with its client
func (r *emailThreadRepository) GetForCoach(ctx context.Context, id, coachID string) (*models.EmailThread, error) {
	var thread models.EmailThread
	err := r.db.WithContext(ctx).
		Preload("Client").
		Where("id = ? AND coach_id = ?", id, coachID).
		First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrThreadNotFound
		}
		return nil, fmt.Errorf("failed to get email thread: %w", err)
	}
	return &thread, nil
}

// ListByCoach returns the coach's threads by most recent activity
func (r *emailThreadRepository) ListByCoach(ctx context.Context, coachID, status string, limit int) ([]models.EmailThread, error) {
	q := r.db.WithContext(ctx).
		Preload("Client").
		Where("coach_id = ?", coachID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var threads []models.EmailThread
	if err := q.Order("last_message_at DESC").Limit(limit).Find(&threads).Error; err != nil {
		return nil, fmt.Errorf("failed to list email threads: %w", err)
	}
	return threads, nil
}

// SetRead updates the read flag of a coach's thread
func (r *emailThreadRepository) SetRead(ctx context.Context, id, coachID string, isRead bool) error {
	result := r.db.WithContext(ctx).
		Model(&models.EmailThread{}).
		Where("id = ? AND coach_id = ?", id, coachID).
		Update("is_read", isRead)
	if result.Error != nil {
		return fmt.Errorf("failed to update email thread: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrThreadNotFound
	}
	return nil
}

// CountUnread counts the coach's unread threads
func (r *emailThreadRepository) CountUnread(ctx context.Context, coachID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.EmailThread{}).
		Where("coach_id = ? AND is_read = ?", coachID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unread threads: %w", err)
	}
	return count, nil
}

// CountCreatedSince counts threads first seen at or after since
func (r *emailThreadRepository) CountCreatedSince(ctx context.Context, coachID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.EmailThread{}).
		Where("coach_id = ? AND created_at >= ?", coachID, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count new threads: %w", err)
	}
	return count, nil
}
