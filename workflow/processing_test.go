package workflow

import (
	"context"
	"errors"
	"io"
	"strconv"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/testsupport"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testStoreId = "store-wf"

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// deliveredDelivery seeds a driver and a delivery already marked delivered.
func deliveredDelivery(t *testing.T, db *gorm.DB) *models.Delivery {
	t.Helper()
	driver := &models.Driver{StoreId: testStoreId, Name: "Дорж", Phone: "88001122", Password: "x"}
	require.NoError(t, db.Create(driver).Error)
	now := time.Now().UTC()
	delivery := &models.Delivery{
		StoreId:       testStoreId,
		OrderId:       1,
		DriverId:      &driver.ID,
		TrackingCode:  "TRK-WF-1",
		Status:        models.DeliveryStatusDelivered,
		DeliveryFee:   decimal.NewFromInt(5000),
		DriverEarning: decimal.NewFromInt(3500),
		Attempts:      1,
		DeliveredAt:   &now,
	}
	require.NoError(t, db.Create(delivery).Error)
	return delivery
}

func outboxRow(t *testing.T, db *gorm.DB, eventType, refType string, refId int, payload string) *models.OutboxMessage {
	t.Helper()
	rec := &models.OutboxMessage{
		StoreId:          testStoreId,
		EventType:        eventType,
		ReferenceType:    refType,
		ReferenceId:      refId,
		Payload:          payload,
		OccurredAt:       time.Now().UTC(),
		PublishStatus:    models.OutboxPublishStatusPending,
		ProcessingStatus: models.OutboxProcessStatusPending,
		CorrelationId:    "corr-1",
	}
	require.NoError(t, db.Create(rec).Error)
	return rec
}

func reload(t *testing.T, db *gorm.DB, id int) models.OutboxMessage {
	t.Helper()
	var rec models.OutboxMessage
	require.NoError(t, db.Where("id = ?", id).Take(&rec).Error)
	return rec
}

func TestProcessMessage_DeliveredAccruesOnce(t *testing.T) {
	db := testsupport.OpenDB(t, models.AllModels()...)
	delivery := deliveredDelivery(t, db)
	rec := outboxRow(t, db, models.DeliveryEventType(models.DeliveryStatusDelivered), "delivery", delivery.ID, "{}")
	msg := models.ConvertToEventMessage(*rec)

	require.NoError(t, ProcessMessage(context.Background(), quietLogger(), msg))
	require.NoError(t, ProcessMessage(context.Background(), quietLogger(), msg))

	var earnings []models.DriverEarning
	require.NoError(t, db.Find(&earnings).Error)
	require.Len(t, earnings, 1)
	assert.True(t, earnings[0].Amount.Equal(decimal.NewFromInt(3500)))

	key, err := models.FindIdempotencyKey(db, testStoreId, msg.EventType, strconv.Itoa(rec.ID))
	require.NoError(t, err)
	assert.Equal(t, models.IdempotencyStatusSucceeded, key.Status)

	got := reload(t, db, rec.ID)
	assert.True(t, got.IsProcessed)
	assert.Equal(t, models.OutboxProcessStatusSucceeded, got.ProcessingStatus)
	assert.NotNil(t, got.ProcessedAt)
}

func TestProcessMessage_UnhandledEventIsMarkedDone(t *testing.T) {
	db := testsupport.OpenDB(t, models.AllModels()...)
	rec := outboxRow(t, db, models.EventDeliveryCreated, "delivery", 7, "{}")

	require.NoError(t, ProcessMessage(context.Background(), quietLogger(), models.ConvertToEventMessage(*rec)))

	got := reload(t, db, rec.ID)
	assert.True(t, got.IsProcessed)
	var keys int64
	require.NoError(t, db.Model(&models.IdempotencyKey{}).Count(&keys).Error)
	assert.Zero(t, keys)
}

func TestProcessMessage_RequiresStoreAndType(t *testing.T) {
	testsupport.OpenDB(t, models.AllModels()...)
	err := ProcessMessage(context.Background(), quietLogger(), config.EventMessage{ID: 1, EventType: "delivery.delayed"})
	assert.Error(t, err)
}

func TestProcessMessage_FailureBacksOffThenDies(t *testing.T) {
	t.Setenv("OUTBOX_PROCESS_MAX_ATTEMPTS", "2")
	db := testsupport.OpenDB(t, models.AllModels()...)
	rec := outboxRow(t, db, models.DeliveryEventType(models.DeliveryStatusDelayed), "delivery", 9, "not-json")
	msg := models.ConvertToEventMessage(*rec)

	require.Error(t, ProcessMessage(context.Background(), quietLogger(), msg))
	got := reload(t, db, rec.ID)
	assert.Equal(t, models.OutboxProcessStatusFailed, got.ProcessingStatus)
	assert.Equal(t, 1, got.ProcessAttempts)
	require.NotNil(t, got.NextProcessAttemptAt)
	assert.True(t, got.NextProcessAttemptAt.After(time.Now().UTC()))
	require.NotNil(t, got.LastProcessError)
	assert.False(t, got.IsProcessed)

	require.Error(t, ProcessMessage(context.Background(), quietLogger(), msg))
	got = reload(t, db, rec.ID)
	assert.Equal(t, models.OutboxProcessStatusDead, got.ProcessingStatus)
	assert.Nil(t, got.NextProcessAttemptAt)

	var notes []models.Notification
	require.NoError(t, db.Where("kind = ?", models.NotificationKindEventDead).Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, rec.ID, notes[0].SourceEventId)
	assert.Equal(t, testStoreId, notes[0].StoreId)
}

func TestProcessMessage_DelayedNotifiesOnce(t *testing.T) {
	db := testsupport.OpenDB(t, models.AllModels()...)
	rec := outboxRow(t, db, models.DeliveryEventType(models.DeliveryStatusDelayed), "delivery", 3,
		`{"tracking_code":"TRK-9","note":"traffic","attempts":1}`)
	msg := models.ConvertToEventMessage(*rec)

	require.NoError(t, ProcessMessage(context.Background(), quietLogger(), msg))
	// a redelivered copy after the key was lost still yields one inbox entry
	require.NoError(t, db.Where("1 = 1").Delete(&models.IdempotencyKey{}).Error)
	require.NoError(t, ProcessMessage(context.Background(), quietLogger(), msg))

	var notes []models.Notification
	require.NoError(t, db.Where("kind = ?", models.NotificationKindDeliveryDelayed).Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, "traffic", notes[0].Body)
}

func TestProcessBackoff(t *testing.T) {
	cfg := processRetryConfig{maxAttempts: 5, baseBackoff: 5 * time.Second, maxBackoff: time.Minute}
	assert.Equal(t, 5*time.Second, processBackoff(1, cfg))
	assert.Equal(t, 10*time.Second, processBackoff(2, cfg))
	assert.Equal(t, 40*time.Second, processBackoff(4, cfg))
	assert.Equal(t, time.Minute, processBackoff(5, cfg))
	assert.Equal(t, 5*time.Second, processBackoff(0, cfg))
}

func TestDirectProcessor_ProcessesDueRowsOnly(t *testing.T) {
	db := testsupport.OpenDB(t, models.AllModels()...)
	delivery := deliveredDelivery(t, db)
	due := outboxRow(t, db, models.DeliveryEventType(models.DeliveryStatusDelivered), "delivery", delivery.ID, "{}")
	later := outboxRow(t, db, models.EventDeliveryCreated, "delivery", delivery.ID, "{}")
	future := time.Now().UTC().Add(time.Hour)
	require.NoError(t, db.Model(&models.OutboxMessage{}).Where("id = ?", later.ID).
		Updates(map[string]interface{}{"processing_status": models.OutboxProcessStatusFailed, "next_process_attempt_at": future}).Error)

	p := NewDirectProcessor(db, quietLogger())
	assert.Equal(t, 1, p.ProcessOnce(context.Background()))

	assert.True(t, reload(t, db, due.ID).IsProcessed)
	assert.False(t, reload(t, db, later.ID).IsProcessed)

	var earnings int64
	require.NoError(t, db.Model(&models.DriverEarning{}).Count(&earnings).Error)
	assert.Equal(t, int64(1), earnings)

	assert.Zero(t, p.ProcessOnce(context.Background()))
}

func TestOutboxDispatcher_PublishOutcomes(t *testing.T) {
	db := testsupport.OpenDB(t, models.AllModels()...)
	ok := outboxRow(t, db, models.EventDeliveryCreated, "delivery", 1, "{}")
	bad := outboxRow(t, db, models.EventPayoutCreated, "payout", 2, "{}")

	var published []config.EventMessage
	d := NewOutboxDispatcher(db, quietLogger())
	d.MaxAttempts = 2
	d.Publish = func(_ context.Context, msg config.EventMessage) (string, error) {
		if msg.EventType == models.EventPayoutCreated {
			return "", errors.New("topic unavailable")
		}
		published = append(published, msg)
		return "ps-1", nil
	}

	assert.Equal(t, 1, d.dispatchOnce(context.Background()))
	require.Len(t, published, 1)
	assert.Equal(t, ok.ID, published[0].ID)
	assert.Equal(t, testStoreId, published[0].StoreId)
	assert.Equal(t, "corr-1", published[0].CorrelationId)

	sent := reload(t, db, ok.ID)
	assert.Equal(t, models.OutboxPublishStatusSent, sent.PublishStatus)
	require.NotNil(t, sent.PubSubMessageId)
	assert.Equal(t, "ps-1", *sent.PubSubMessageId)
	assert.Nil(t, sent.LockedAt)

	failed := reload(t, db, bad.ID)
	assert.Equal(t, models.OutboxPublishStatusFailed, failed.PublishStatus)
	assert.Equal(t, 1, failed.PublishAttempts)
	require.NotNil(t, failed.NextAttemptAt)

	// not due yet
	assert.Zero(t, d.dispatchOnce(context.Background()))
	assert.Equal(t, 1, reload(t, db, bad.ID).PublishAttempts)

	require.NoError(t, db.Model(&models.OutboxMessage{}).Where("id = ?", bad.ID).
		Update("next_attempt_at", time.Now().UTC().Add(-time.Second)).Error)
	assert.Zero(t, d.dispatchOnce(context.Background()))
	dead := reload(t, db, bad.ID)
	assert.Equal(t, models.OutboxPublishStatusDead, dead.PublishStatus)
	assert.Equal(t, 2, dead.PublishAttempts)
	require.NotNil(t, dead.LastPublishError)
	assert.Contains(t, *dead.LastPublishError, "topic unavailable")
}
