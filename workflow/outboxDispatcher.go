package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxDispatcher publishes committed outbox rows to Pub/Sub.
type OutboxDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	DispatcherID string
	Publish      func(ctx context.Context, msg config.EventMessage) (string, error)

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewOutboxDispatcher(db *gorm.DB, logger *logrus.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		DB:             db,
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		Publish:        config.PublishEvent,
		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
	}
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.dispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

func (d *OutboxDispatcher) dispatchOnce(ctx context.Context) int {
	if d.DB == nil {
		return 0
	}
	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTimeout)

	var claimed []models.OutboxMessage
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// ready PENDING/FAILED rows, plus PROCESSING rows whose dispatcher died mid-batch
		q := tx.
			Where("is_processed = ?", false).
			Where(`(publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?))
				OR (publish_status = ? AND locked_at IS NOT NULL AND locked_at <= ?)`,
				[]string{models.OutboxPublishStatusPending, models.OutboxPublishStatusFailed}, now,
				models.OutboxPublishStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			if d.MaxAttempts > 0 && claimed[i].PublishAttempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts)
				claimed[i].PublishStatus = models.OutboxPublishStatusDead
				if err := tx.Model(&models.OutboxMessage{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"publish_status":     models.OutboxPublishStatusDead,
					"last_publish_error": &msg,
					"next_attempt_at":    nil,
					"locked_at":          nil,
					"locked_by":          nil,
				}).Error; err != nil {
					return err
				}
				continue
			}

			claimed[i].PublishStatus = models.OutboxPublishStatusProcessing
			claimed[i].PublishAttempts++
			if err := tx.Model(&models.OutboxMessage{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusProcessing,
				"locked_at":          &now,
				"locked_by":          &d.DispatcherID,
				"publish_attempts":   gorm.Expr("publish_attempts + 1"),
				"last_publish_error": nil,
				"next_attempt_at":    nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		config.LogError(d.Logger, "outboxDispatcher.go", "dispatchOnce", "claim batch", nil, err)
		return 0
	}

	sent := 0
	for _, rec := range claimed {
		if rec.PublishStatus == models.OutboxPublishStatusDead {
			continue
		}
		pubID, pubErr := d.Publish(ctx, models.ConvertToEventMessage(rec))
		if pubErr != nil {
			d.markPublishFailed(ctx, rec, pubErr)
			continue
		}
		d.markPublishSent(ctx, rec.ID, pubID)
		sent++
	}
	return sent
}

func (d *OutboxDispatcher) markPublishSent(ctx context.Context, recordID int, pubsubMsgID string) {
	now := time.Now().UTC()
	_ = d.DB.WithContext(ctx).Model(&models.OutboxMessage{}).
		Where("id = ?", recordID).
		Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusSent,
			"published_at":       &now,
			"pub_sub_message_id": &pubsubMsgID,
			"locked_at":          nil,
			"locked_by":          nil,
			"next_attempt_at":    nil,
		}).Error
}

func (d *OutboxDispatcher) markPublishFailed(ctx context.Context, rec models.OutboxMessage, err error) {
	db := d.DB.WithContext(ctx)
	msg := err.Error()
	attempt := rec.PublishAttempts

	if d.MaxAttempts > 0 && attempt >= d.MaxAttempts {
		_ = db.Model(&models.OutboxMessage{}).
			Where("id = ?", rec.ID).
			Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusDead,
				"last_publish_error": &msg,
				"next_attempt_at":    nil,
				"locked_at":          nil,
				"locked_by":          nil,
			}).Error
		if d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"field":     "OutboxDispatcher",
				"store_id":  rec.StoreId,
				"record_id": rec.ID,
				"attempt":   attempt,
			}).Error("outbox publish moved to DEAD after max attempts: " + msg)
		}
		return
	}

	backoff := d.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > 10*time.Minute {
			backoff = 10 * time.Minute
			break
		}
	}
	next := time.Now().UTC().Add(backoff)
	_ = db.Model(&models.OutboxMessage{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusFailed,
			"last_publish_error": &msg,
			"next_attempt_at":    &next,
			"locked_at":          nil,
			"locked_by":          nil,
		}).Error

	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":           "OutboxDispatcher",
			"store_id":        rec.StoreId,
			"record_id":       rec.ID,
			"attempt":         attempt,
			"next_attempt_at": next.Format(time.RFC3339Nano),
		}).Error("outbox publish failed: " + msg)
	}
}
