package models

import (
	"time"

	"github.com/volatiletech/null/v8"

	"lightning-paywall.backend/internal/domain/entities"
)

type PaymentState struct {
	PaymentHash   string    `gorm:"type:varchar(64);primaryKey"`
	ContentID     int64     `gorm:"not null;default:0;index:idx_session_content"`
	UserSessionID string    `gorm:"type:varchar(64);not null;index:idx_session_content"`
	Status        string    `gorm:"type:varchar(20);not null;index"`
	AmountSat     uint64    `gorm:"not null;default:0"`
	Kind          string    `gorm:"type:varchar(10);not null"`
	PaidAt        null.Time `gorm:""`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (PaymentState) TableName() string {
	return "payment_states"
}

func (m *PaymentState) ToEntity() *entities.PaymentState {
	return &entities.PaymentState{
		PaymentHash:   m.PaymentHash,
		ContentID:     m.ContentID,
		UserSessionID: m.UserSessionID,
		Status:        entities.PaymentStatus(m.Status),
		AmountSat:     m.AmountSat,
		Kind:          entities.PaymentKind(m.Kind),
		PaidAt:        m.PaidAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
