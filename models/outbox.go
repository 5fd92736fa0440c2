package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Publish side (dispatcher) statuses.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// Consumer side statuses.
const (
	OutboxProcessStatusPending    = "PENDING"
	OutboxProcessStatusProcessing = "PROCESSING"
	OutboxProcessStatusSucceeded  = "SUCCEEDED"
	OutboxProcessStatusFailed     = "FAILED"
	OutboxProcessStatusDead       = "DEAD"
)

const (
	EventDeliveryCreated = "delivery.created"
	EventChatHandoff     = "chat.handoff"
	EventPayoutCreated   = "payout.created"
)

// DeliveryEventType is the outbox event written when a delivery enters status.
func DeliveryEventType(status DeliveryStatus) string {
	return "delivery." + string(status)
}

// OutboxMessage is written in the same transaction as the change it announces.
type OutboxMessage struct {
	ID                   int        `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	StoreId              string     `gorm:"size:64;not null;index" json:"store_id"`
	EventType            string     `gorm:"size:50;not null;index" json:"event_type"`
	ReferenceType        string     `gorm:"size:50;not null;index:idx_outbox_ref,priority:1" json:"reference_type"`
	ReferenceId          int        `gorm:"not null;index:idx_outbox_ref,priority:2" json:"reference_id"`
	Payload              string     `gorm:"type:text" json:"payload"`
	OccurredAt           time.Time  `gorm:"not null" json:"occurred_at"`
	IsProcessed          bool       `gorm:"not null;default:false;index" json:"is_processed"`
	PublishStatus        string     `gorm:"size:20;not null;default:PENDING;index:idx_outbox_dispatch,priority:1" json:"publish_status"`
	PublishedAt          *time.Time `json:"published_at"`
	PubSubMessageId      *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts      int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt        *time.Time `gorm:"index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt             *time.Time `gorm:"index" json:"locked_at"`
	LockedBy             *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError     *string    `gorm:"type:text" json:"last_publish_error"`
	ProcessingStatus     string     `gorm:"size:20;not null;default:PENDING;index" json:"processing_status"`
	ProcessAttempts      int        `gorm:"not null;default:0" json:"process_attempts"`
	NextProcessAttemptAt *time.Time `gorm:"index" json:"next_process_attempt_at"`
	LastProcessError     *string    `gorm:"type:text" json:"last_process_error"`
	ProcessedAt          *time.Time `json:"processed_at"`
	CorrelationId        string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToEventMessage(record OutboxMessage) config.EventMessage {
	return config.EventMessage{
		ID:            record.ID,
		StoreId:       record.StoreId,
		EventType:     record.EventType,
		ReferenceType: record.ReferenceType,
		ReferenceId:   record.ReferenceId,
		OccurredAt:    record.OccurredAt,
		Payload:       json.RawMessage(record.Payload),
		CorrelationId: record.CorrelationId,
	}
}

// enqueueOutbox records an event for the dispatcher; tx must carry the store id.
func enqueueOutbox(tx *gorm.DB, eventType string, referenceType string, referenceId int, payload interface{}) error {
	ctx := tx.Statement.Context
	storeId, ok := utils.GetStoreIdFromContext(ctx)
	if !ok {
		return utils.ErrorStoreIdRequired
	}
	body, err := utils.MarshalToJSON(payload)
	if err != nil {
		return err
	}
	record := OutboxMessage{
		StoreId:          storeId,
		EventType:        eventType,
		ReferenceType:    referenceType,
		ReferenceId:      referenceId,
		Payload:          body,
		OccurredAt:       time.Now().UTC(),
		PublishStatus:    OutboxPublishStatusPending,
		ProcessingStatus: OutboxProcessStatusPending,
		CorrelationId:    correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
