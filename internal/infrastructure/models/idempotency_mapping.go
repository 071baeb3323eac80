package models

import (
	"time"

	"lightning-paywall.backend/internal/domain/entities"
)

type IdempotencyMapping struct {
	IdempotencyKey string `gorm:"type:varchar(128);primaryKey"`
	PaymentHash    string `gorm:"type:varchar(64);not null"`
	Invoice        string `gorm:"type:text;not null"`
	Status         string `gorm:"type:varchar(20);not null"`
	CreatedAt      time.Time
}

func (IdempotencyMapping) TableName() string {
	return "idempotency_mappings"
}

func (m *IdempotencyMapping) ToEntity() *entities.IdempotencyMapping {
	return &entities.IdempotencyMapping{
		IdempotencyKey: m.IdempotencyKey,
		PaymentHash:    m.PaymentHash,
		Invoice:        m.Invoice,
		Status:         entities.PaymentStatus(m.Status),
		CreatedAt:      m.CreatedAt,
	}
}
