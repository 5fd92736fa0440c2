package workflow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type processRetryConfig struct {
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

func getProcessRetryConfig() processRetryConfig {
	cfg := processRetryConfig{
		maxAttempts: 10,
		baseBackoff: 5 * time.Second,
		maxBackoff:  10 * time.Minute,
	}
	if v := os.Getenv("OUTBOX_PROCESS_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.maxAttempts = n
		}
	}
	if v := os.Getenv("OUTBOX_PROCESS_BASE_BACKOFF_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.baseBackoff = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("OUTBOX_PROCESS_MAX_BACKOFF_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.maxBackoff = time.Duration(n) * time.Second
		}
	}
	return cfg
}

// processBackoff is base * 2^(attempt-1), capped at maxBackoff.
func processBackoff(attempt int, cfg processRetryConfig) time.Duration {
	if attempt <= 0 {
		return cfg.baseBackoff
	}
	delay := time.Duration(float64(cfg.baseBackoff) * math.Pow(2, float64(attempt-1)))
	if delay > cfg.maxBackoff || delay <= 0 {
		return cfg.maxBackoff
	}
	return delay
}

// EventContext scopes ctx to the event's store as the system user.
func EventContext(ctx context.Context, msg config.EventMessage) context.Context {
	ctx = utils.SystemContext(ctx, msg.StoreId)
	ctx = utils.SetUserIdInContext(ctx, 0)
	ctx = utils.SetUserNameInContext(ctx, "System")
	if msg.CorrelationId != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, msg.CorrelationId)
	}
	return ctx
}

// ProcessMessage runs the handler of one outbox event exactly once per
// (store, event type, event id) and records the outcome on the outbox row.
func ProcessMessage(ctx context.Context, logger *logrus.Logger, msg config.EventMessage) error {
	if msg.StoreId == "" || msg.EventType == "" {
		return fmt.Errorf("event %d: store_id and event_type are required", msg.ID)
	}
	ctx = EventContext(ctx, msg)
	db := config.GetDB()
	if db == nil {
		return errors.New("db is nil")
	}

	handler := handlerFor(msg.EventType)
	if handler == nil {
		markProcessSuccess(ctx, logger, msg)
		return nil
	}

	messageId := strconv.Itoa(msg.ID)
	var skip bool
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		skip, err = BeginIdempotency(tx, msg.StoreId, msg.EventType, messageId)
		return err
	})
	if err != nil {
		return err
	}
	if skip {
		markProcessSuccess(ctx, logger, msg)
		return nil
	}

	markProcessing(ctx, msg.ID)
	if handlerErr := handler(ctx, logger, msg); handlerErr != nil {
		_ = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return MarkIdempotencyFailed(tx, msg.StoreId, msg.EventType, messageId, handlerErr)
		})
		if dead := markProcessFailure(ctx, logger, msg, handlerErr); dead {
			notifyDeadEvent(ctx, logger, msg, handlerErr)
		}
		return handlerErr
	}

	if err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return MarkIdempotencySucceeded(tx, msg.StoreId, msg.EventType, messageId)
	}); err != nil {
		return err
	}
	markProcessSuccess(ctx, logger, msg)
	return nil
}

func markProcessing(ctx context.Context, id int) {
	if id <= 0 {
		return
	}
	_ = config.GetDB().WithContext(ctx).
		Model(&models.OutboxMessage{}).
		Where("id = ? AND processing_status <> ?", id, models.OutboxProcessStatusDead).
		Update("processing_status", models.OutboxProcessStatusProcessing).Error
}

// markProcessFailure schedules the next attempt and reports whether the row is now DEAD.
func markProcessFailure(ctx context.Context, logger *logrus.Logger, msg config.EventMessage, cause error) bool {
	if msg.ID <= 0 {
		return false
	}
	cfg := getProcessRetryConfig()
	db := config.GetDB().WithContext(ctx)
	errMsg := cause.Error()

	var rec models.OutboxMessage
	if err := db.Select("id", "process_attempts").Where("id = ?", msg.ID).Take(&rec).Error; err != nil {
		_ = db.Model(&models.OutboxMessage{}).Where("id = ?", msg.ID).Updates(map[string]interface{}{
			"last_process_error": &errMsg,
			"processing_status":  models.OutboxProcessStatusFailed,
			"locked_at":          nil,
			"locked_by":          nil,
		}).Error
		return false
	}

	attempts := rec.ProcessAttempts + 1
	status := models.OutboxProcessStatusFailed
	var next *time.Time
	if attempts >= cfg.maxAttempts {
		status = models.OutboxProcessStatusDead
	} else {
		t := time.Now().UTC().Add(processBackoff(attempts, cfg))
		next = &t
	}
	_ = db.Model(&models.OutboxMessage{}).Where("id = ?", msg.ID).Updates(map[string]interface{}{
		"last_process_error":      &errMsg,
		"process_attempts":        attempts,
		"next_process_attempt_at": next,
		"processing_status":       status,
		"locked_at":               nil,
		"locked_by":               nil,
	}).Error

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"field":             "OutboxProcessing",
			"store_id":          msg.StoreId,
			"event_type":        msg.EventType,
			"reference_type":    msg.ReferenceType,
			"reference_id":      msg.ReferenceId,
			"record_id":         msg.ID,
			"processing_status": status,
			"process_attempts":  attempts,
		}).Error("outbox processing failed: " + errMsg)
	}
	return status == models.OutboxProcessStatusDead
}

func markProcessSuccess(ctx context.Context, logger *logrus.Logger, msg config.EventMessage) {
	if msg.ID <= 0 {
		return
	}
	now := time.Now().UTC()
	_ = config.GetDB().WithContext(ctx).Model(&models.OutboxMessage{}).
		Where("id = ?", msg.ID).
		Updates(map[string]interface{}{
			"is_processed":            true,
			"processing_status":       models.OutboxProcessStatusSucceeded,
			"processed_at":            &now,
			"next_process_attempt_at": nil,
			"last_process_error":      nil,
			"locked_at":               nil,
			"locked_by":               nil,
		}).Error

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"field":          "OutboxProcessing",
			"store_id":       msg.StoreId,
			"event_type":     msg.EventType,
			"reference_type": msg.ReferenceType,
			"reference_id":   msg.ReferenceId,
			"record_id":      msg.ID,
		}).Debug("outbox processed")
	}
}

// notifyDeadEvent puts a DEAD event in front of the store staff.
func notifyDeadEvent(ctx context.Context, logger *logrus.Logger, msg config.EventMessage, cause error) {
	_, err := models.CreateNotification(ctx, models.NewNotification{
		Kind:          models.NotificationKindEventDead,
		Title:         fmt.Sprintf("Background step %s gave up", msg.EventType),
		Body:          cause.Error(),
		ReferenceType: msg.ReferenceType,
		ReferenceId:   msg.ReferenceId,
		SourceEventId: msg.ID,
	})
	if err != nil && logger != nil {
		logger.WithFields(logrus.Fields{
			"field":     "OutboxDeadNotify",
			"store_id":  msg.StoreId,
			"record_id": msg.ID,
		}).Warn("failed to record DEAD event notification: " + err.Error())
	}
}
