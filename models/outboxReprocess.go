package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
)

func replayColumns(now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"locked_at":               nil,
		"locked_by":               nil,
		"publish_status":          OutboxPublishStatusPending,
		"publish_attempts":        0,
		"next_attempt_at":         nil,
		"processing_status":       OutboxProcessStatusPending,
		"process_attempts":        0,
		"next_process_attempt_at": &now,
		"last_process_error":      nil,
	}
}

// ReprocessOutbox queues every unprocessed event of one record again.
func ReprocessOutbox(ctx context.Context, referenceType string, referenceId int) (*OutboxStatus, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}

	res := config.GetDB().WithContext(ctx).
		Model(&OutboxMessage{}).
		Where("store_id = ? AND reference_type = ? AND reference_id = ? AND is_processed = ?", storeId, referenceType, referenceId, false).
		Updates(replayColumns(time.Now().UTC()))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return GetOutboxStatus(ctx, referenceType, referenceId)
}

// RevertDeadOutbox moves every DEAD row of the store back to PENDING and
// returns how many rows were revived.
func RevertDeadOutbox(ctx context.Context, storeId string) (int64, error) {
	if storeId == "" {
		return 0, utils.ErrorStoreIdRequired
	}
	res := config.GetDB().WithContext(ctx).
		Model(&OutboxMessage{}).
		Where("store_id = ? AND is_processed = ?", storeId, false).
		Where("publish_status = ? OR processing_status = ?", OutboxPublishStatusDead, OutboxProcessStatusDead).
		Updates(replayColumns(time.Now().UTC()))
	return res.RowsAffected, res.Error
}

// ReplayOutboxRecord queues one outbox row of the store again, whatever its state.
func ReplayOutboxRecord(ctx context.Context, storeId string, recordId int) (*OutboxMessage, error) {
	if storeId == "" {
		return nil, utils.ErrorStoreIdRequired
	}
	db := config.GetDB().WithContext(ctx)
	columns := replayColumns(time.Now().UTC())
	columns["is_processed"] = false
	columns["last_publish_error"] = nil
	res := db.Model(&OutboxMessage{}).
		Where("id = ? AND store_id = ?", recordId, storeId).
		Updates(columns)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	var rec OutboxMessage
	if err := db.Where("id = ? AND store_id = ?", recordId, storeId).Take(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}
