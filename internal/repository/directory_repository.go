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

// DirectoryRepository reads the coach, client and admin records owned by the user service
type DirectoryRepository interface {
	GetCoach(ctx context.Context, id string) (*models.Coach, error)
	ListActiveCoaches(ctx context.Context) ([]models.Coach, error)
	FindClientOfCoach(ctx context.Context, coachID, email string) (*models.Client, error)
	EarliestActiveAdmin(ctx context.Context) (*models.Admin, error)
}

type directoryRepository struct {
	db *gorm.DB
}

// NewDirectoryRepository creates a new DirectoryRepository instance
func NewDirectoryRepository(db *gorm.DB) DirectoryRepository {
	return &directoryRepository{db: db}
}

// GetCoach retrieves a coach by id
func (r *directoryRepository) GetCoach(ctx context.Context, id string) (*models.Coach, error) {
	var coach models.Coach
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&coach).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get coach: %w", err)
	}
	return &coach, nil
}

// ListActiveCoaches returns every active coach
func (r *directoryRepository) ListActiveCoaches(ctx context.Context) ([]models.Coach, error) {
	var coaches []models.Coach
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at ASC").
		Find(&coaches).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active coaches: %w", err)
	}
	return coaches, nil
}

// FindClientOfCoach looks up a client by email among those with an active
// relationship to the coach. Addresses compare case-insensitively.
func (r *directoryRepository) FindClientOfCoach(ctx context.Context, coachID, email string) (*models.Client, error) {
	var client models.Client
	err := r.db.WithContext(ctx).
		Joins("JOIN coach_client_relationships rel ON rel.client_id = clients.id").
		Where("rel.coach_id = ? AND rel.status = ?", coachID, models.RelationshipActive).
		Where("LOWER(clients.email) = ?", strings.ToLower(strings.TrimSpace(email))).
		Order("clients.created_at ASC").
		First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find client: %w", err)
	}
	return &client, nil
}

// EarliestActiveAdmin returns the oldest active administrator, ties broken by id
func (r *directoryRepository) EarliestActiveAdmin(ctx context.Context) (*models.Admin, error) {
	var admin models.Admin
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at ASC, id ASC").
		First(&admin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAdminNotFound
		}
		return nil, fmt.Errorf("failed to find admin: %w", err)
	}
	return &admin, nil
}
