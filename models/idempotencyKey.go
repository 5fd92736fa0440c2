package models

import (
	"time"

	"gorm.io/gorm"
)

type IdempotencyStatus string

const (
	IdempotencyStatusStarted   IdempotencyStatus = "STARTED"
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)

// A STARTED key older than this is treated as abandoned by a crashed worker.
const idempotencyStaleAfter = 5 * time.Minute

// IdempotencyKey records that an event handler ran for one outbox message.
type IdempotencyKey struct {
	ID          int               `gorm:"primary_key" json:"id"`
	StoreId     string            `gorm:"size:64;not null;uniqueIndex:uniq_idem" json:"store_id"`
	HandlerName string            `gorm:"size:100;not null;uniqueIndex:uniq_idem" json:"handler_name"`
	MessageId   string            `gorm:"size:255;not null;uniqueIndex:uniq_idem" json:"message_id"`
	Status      IdempotencyStatus `gorm:"size:20;not null;index" json:"status"`
	LastError   *string           `gorm:"type:text" json:"last_error"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (k IdempotencyKey) InProgress(now time.Time) bool {
	return k.Status == IdempotencyStatusStarted && now.Sub(k.UpdatedAt) < idempotencyStaleAfter
}

func FindIdempotencyKey(tx *gorm.DB, storeId, handlerName, messageId string) (*IdempotencyKey, error) {
	var key IdempotencyKey
	err := tx.Where("store_id = ? AND handler_name = ? AND message_id = ?", storeId, handlerName, messageId).
		Take(&key).Error
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// SetIdempotencyStatus moves the key and records the handler error, if any.
func SetIdempotencyStatus(tx *gorm.DB, storeId, handlerName, messageId string, status IdempotencyStatus, cause error) error {
	var lastError *string
	if cause != nil {
		msg := cause.Error()
		lastError = &msg
	}
	return tx.Model(&IdempotencyKey{}).
		Where("store_id = ? AND handler_name = ? AND message_id = ?", storeId, handlerName, messageId).
		Updates(map[string]interface{}{"status": status, "last_error": lastError}).Error
}
