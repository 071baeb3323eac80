package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lightning-paywall.backend/internal/domain/entities"
	domainerrors "lightning-paywall.backend/internal/domain/errors"
	"lightning-paywall.backend/internal/infrastructure/models"
)

// IdempotencyRepository implements idempotency-key mapping storage on gorm
type IdempotencyRepository struct {
	db *gorm.DB
}

// NewIdempotencyRepository creates a new idempotency repository
func NewIdempotencyRepository(db *gorm.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// Get returns the mapping for key, or domain ErrNotFound
func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*entities.IdempotencyMapping, error) {
	var m models.IdempotencyMapping
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return m.ToEntity(), nil
}

// Create persists a new mapping. DoNothing on key conflict keeps the
// first-created row authoritative under concurrent creation; the losing
// writer gets domain ErrAlreadyExists so it can fall back to the stored
// mapping.
func (r *IdempotencyRepository) Create(ctx context.Context, mapping *entities.IdempotencyMapping) error {
	m := &models.IdempotencyMapping{
		IdempotencyKey: mapping.IdempotencyKey,
		PaymentHash:    mapping.PaymentHash,
		Invoice:        mapping.Invoice,
		Status:         string(mapping.Status),
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "idempotency_key"}},
			DoNothing: true,
		}).
		Create(m)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrAlreadyExists
	}
	return nil
}
