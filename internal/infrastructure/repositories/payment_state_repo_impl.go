package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"lightning-paywall.backend/internal/domain/entities"
	domainerrors "lightning-paywall.backend/internal/domain/errors"
	domainrepos "lightning-paywall.backend/internal/domain/repositories"
	"lightning-paywall.backend/internal/infrastructure/models"
)

// PaymentStateRepository implements the payment projection on gorm
type PaymentStateRepository struct {
	db *gorm.DB
}

// NewPaymentStateRepository creates a new payment state repository
func NewPaymentStateRepository(db *gorm.DB) *PaymentStateRepository {
	return &PaymentStateRepository{db: db}
}

// AddPending creates a Pending row. For paywall payments (contentID > 0) the
// delete-then-insert runs in one transaction so two concurrent creations
// cannot leave two pending rows for the same (session, content) pair.
func (r *PaymentStateRepository) AddPending(ctx context.Context, hash string, contentID int64, sessionID string) error {
	kind := entities.PaymentKindTip
	if contentID > 0 {
		kind = entities.PaymentKindPaywall
	}

	m := &models.PaymentState{
		PaymentHash:   hash,
		ContentID:     contentID,
		UserSessionID: sessionID,
		Status:        string(entities.PaymentStatusPending),
		Kind:          string(kind),
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if contentID > 0 {
			if err := tx.
				Where("user_session_id = ? AND content_id = ? AND status = ?",
					sessionID, contentID, string(entities.PaymentStatusPending)).
				Delete(&models.PaymentState{}).Error; err != nil {
				return err
			}
		}
		return tx.Create(m).Error
	})
}

// Confirm transitions Pending -> Paid via a conditional update so the check
// and the write are a single atomic statement.
func (r *PaymentStateRepository) Confirm(ctx context.Context, hash string) (domainrepos.ConfirmResult, error) {
	res := r.db.WithContext(ctx).Model(&models.PaymentState{}).
		Where("payment_hash = ? AND status = ?", hash, string(entities.PaymentStatusPending)).
		Updates(map[string]interface{}{
			"status":  string(entities.PaymentStatusPaid),
			"paid_at": null.TimeFrom(time.Now()),
		})
	if res.Error != nil {
		return domainrepos.ConfirmNotFound, res.Error
	}
	if res.RowsAffected == 1 {
		return domainrepos.ConfirmConfirmed, nil
	}

	// No pending row matched; distinguish already-paid from missing or
	// non-confirmable.
	var m models.PaymentState
	if err := r.db.WithContext(ctx).Where("payment_hash = ?", hash).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainrepos.ConfirmNotFound, nil
		}
		return domainrepos.ConfirmNotFound, err
	}
	if m.Status == string(entities.PaymentStatusPaid) {
		return domainrepos.ConfirmAlreadyConfirmed, nil
	}
	return domainrepos.ConfirmNotFound, nil
}

func (r *PaymentStateRepository) MarkFailed(ctx context.Context, hash string) (bool, error) {
	return r.overwriteStatus(ctx, hash, entities.PaymentStatusFailed)
}

func (r *PaymentStateRepository) MarkExpired(ctx context.Context, hash string) (bool, error) {
	return r.overwriteStatus(ctx, hash, entities.PaymentStatusExpired)
}

func (r *PaymentStateRepository) MarkRefundPending(ctx context.Context, hash string) (bool, error) {
	return r.overwriteStatus(ctx, hash, entities.PaymentStatusRefundPending)
}

func (r *PaymentStateRepository) MarkRefunded(ctx context.Context, hash string) (bool, error) {
	return r.overwriteStatus(ctx, hash, entities.PaymentStatusRefunded)
}

// overwriteStatus is intentionally permissive about the prior state.
func (r *PaymentStateRepository) overwriteStatus(ctx context.Context, hash string, status entities.PaymentStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.PaymentState{}).
		Where("payment_hash = ?", hash).
		Update("status", string(status))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetMetadata enriches amount/kind on an existing row. A missing row is not
// an error.
func (r *PaymentStateRepository) SetMetadata(ctx context.Context, hash string, amountSat uint64, kind entities.PaymentKind) error {
	return r.db.WithContext(ctx).Model(&models.PaymentState{}).
		Where("payment_hash = ?", hash).
		Updates(map[string]interface{}{
			"amount_sat": amountSat,
			"kind":       string(kind),
		}).Error
}

// GetByHash gets a payment state by payment hash
func (r *PaymentStateRepository) GetByHash(ctx context.Context, hash string) (*entities.PaymentState, error) {
	var m models.PaymentState
	if err := r.db.WithContext(ctx).Where("payment_hash = ?", hash).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return m.ToEntity(), nil
}

// ListBySession returns all payment states for a browser session
func (r *PaymentStateRepository) ListBySession(ctx context.Context, sessionID string) ([]*entities.PaymentState, error) {
	var ms []models.PaymentState
	if err := r.db.WithContext(ctx).
		Where("user_session_id = ?", sessionID).
		Order("created_at DESC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*entities.PaymentState, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].ToEntity())
	}
	return out, nil
}

// List returns payment states with pagination
func (r *PaymentStateRepository) List(ctx context.Context, limit, offset int) ([]*entities.PaymentState, int, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.PaymentState{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []models.PaymentState
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&ms).Error; err != nil {
		return nil, 0, err
	}

	out := make([]*entities.PaymentState, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].ToEntity())
	}
	return out, int(total), nil
}

// GetStalePending returns Pending rows created before the cutoff
func (r *PaymentStateRepository) GetStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*entities.PaymentState, error) {
	var ms []models.PaymentState
	if err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", string(entities.PaymentStatusPending), olderThan).
		Limit(limit).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*entities.PaymentState, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].ToEntity())
	}
	return out, nil
}
