package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DirectProcessor consumes outbox rows in-process, without Pub/Sub.
type DirectProcessor struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	WorkerID  string
	BatchSize int
	Interval  time.Duration
	LockTTL   time.Duration
}

func NewDirectProcessor(db *gorm.DB, logger *logrus.Logger) *DirectProcessor {
	return &DirectProcessor{
		DB:        db,
		Logger:    logger,
		WorkerID:  "direct-" + time.Now().Format("20060102-150405.000"),
		BatchSize: 50,
		Interval:  2 * time.Second,
		LockTTL:   30 * time.Second,
	}
}

func (p *DirectProcessor) Run(ctx context.Context) {
	if p == nil || p.DB == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.ProcessOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.Interval):
		}
	}
}

// ProcessOnce claims one batch of due rows and processes them in id order.
// It returns how many rows were processed successfully.
func (p *DirectProcessor) ProcessOnce(ctx context.Context) int {
	now := time.Now().UTC()
	staleBefore := now.Add(-p.LockTTL)

	var claimed []models.OutboxMessage
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where("is_processed = ?", false).
			Where("processing_status IN ?", []string{
				models.OutboxProcessStatusPending,
				models.OutboxProcessStatusFailed,
				models.OutboxProcessStatusProcessing,
			}).
			Where("(next_process_attempt_at IS NULL OR next_process_attempt_at <= ?)", now).
			Where("(locked_at IS NULL OR locked_at <= ?)", staleBefore).
			Order("id ASC").
			Limit(p.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			if err := tx.Model(&models.OutboxMessage{}).
				Where("id = ?", claimed[i].ID).
				Updates(map[string]interface{}{
					"locked_at": &now,
					"locked_by": &p.WorkerID,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil || len(claimed) == 0 {
		return 0
	}

	done := 0
	for _, rec := range claimed {
		msg := models.ConvertToEventMessage(rec)
		release := LockStore(ctx, p.Logger, rec.StoreId)
		err := ProcessMessage(ctx, p.Logger, msg)
		release()
		if err != nil {
			if p.Logger != nil {
				p.Logger.WithFields(logrus.Fields{
					"field":          "DirectProcessor",
					"store_id":       rec.StoreId,
					"event_type":     rec.EventType,
					"reference_type": rec.ReferenceType,
					"reference_id":   rec.ReferenceId,
					"record_id":      rec.ID,
				}).Error("direct processing failed: " + err.Error())
			}
			continue
		}
		done++
	}
	return done
}
