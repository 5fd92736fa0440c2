package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"gorm.io/gorm"
)

// OutboxStatus is the delivery state of the latest event for one record.
type OutboxStatus struct {
	RecordId             int        `json:"record_id"`
	EventType            string     `json:"event_type"`
	ReferenceType        string     `json:"reference_type"`
	ReferenceId          int        `json:"reference_id"`
	PublishStatus        string     `json:"publish_status"`
	ProcessingStatus     string     `json:"processing_status"`
	IsProcessed          bool       `json:"is_processed"`
	PublishAttempts      int        `json:"publish_attempts"`
	ProcessAttempts      int        `json:"process_attempts"`
	NextAttemptAt        *time.Time `json:"next_attempt_at"`
	NextProcessAttemptAt *time.Time `json:"next_process_attempt_at"`
	LastPublishError     *string    `json:"last_publish_error"`
	LastProcessError     *string    `json:"last_process_error"`
	CreatedAt            time.Time  `json:"created_at"`
	PublishedAt          *time.Time `json:"published_at"`
	ProcessedAt          *time.Time `json:"processed_at"`
}

func GetOutboxStatus(ctx context.Context, referenceType string, referenceId int) (*OutboxStatus, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}

	var rec OutboxMessage
	if err := config.GetDB().WithContext(ctx).
		Where("store_id = ? AND reference_type = ? AND reference_id = ?", storeId, referenceType, referenceId).
		Order("id DESC").
		First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	processing := rec.ProcessingStatus
	if rec.IsProcessed {
		processing = OutboxProcessStatusSucceeded
	} else if processing == "" {
		processing = OutboxProcessStatusPending
	}

	return &OutboxStatus{
		RecordId:             rec.ID,
		EventType:            rec.EventType,
		ReferenceType:        rec.ReferenceType,
		ReferenceId:          rec.ReferenceId,
		PublishStatus:        rec.PublishStatus,
		ProcessingStatus:     processing,
		IsProcessed:          rec.IsProcessed,
		PublishAttempts:      rec.PublishAttempts,
		ProcessAttempts:      rec.ProcessAttempts,
		NextAttemptAt:        rec.NextAttemptAt,
		NextProcessAttemptAt: rec.NextProcessAttemptAt,
		LastPublishError:     rec.LastPublishError,
		LastProcessError:     rec.LastProcessError,
		CreatedAt:            rec.CreatedAt,
		PublishedAt:          rec.PublishedAt,
		ProcessedAt:          rec.ProcessedAt,
	}, nil
}

// ListDeadOutbox returns dead rows of the current store, oldest first.
func ListDeadOutbox(ctx context.Context, limit int) ([]*OutboxMessage, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	var results []*OutboxMessage
	err = config.GetDB().WithContext(ctx).
		Where("store_id = ? AND is_processed = ?", storeId, false).
		Where("publish_status = ? OR processing_status = ?", OutboxPublishStatusDead, OutboxProcessStatusDead).
		Order("id").
		Limit(normalizeLimit(limit)).
		Find(&results).Error
	return results, err
}
