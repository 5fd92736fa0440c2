package workflow

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestPostgres_ConcurrentDeliveriesAccrueOnce(t *testing.T) {
	db := testsupport.OpenPostgres(t, models.AllModels()...)
	delivery := deliveredDelivery(t, db)
	rec := outboxRow(t, db, models.DeliveryEventType(models.DeliveryStatusDelivered), "delivery", delivery.ID, "{}")
	msg := models.ConvertToEventMessage(*rec)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// losers see ErrIdempotencyInProgress or a succeeded key
			_ = ProcessMessage(context.Background(), quietLogger(), msg)
		}()
	}
	wg.Wait()

	var earnings int64
	require.NoError(t, db.Model(&models.DriverEarning{}).Count(&earnings).Error)
	assert.Equal(t, int64(1), earnings)
}

func TestPostgres_BeginIdempotencySurvivesDuplicateInsert(t *testing.T) {
	db := testsupport.OpenPostgres(t, models.AllModels()...)
	id := strconv.Itoa(42)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		skip, err := BeginIdempotency(tx, testStoreId, "delivery.delivered", id)
		require.False(t, skip)
		if err != nil {
			return err
		}
		return MarkIdempotencySucceeded(tx, testStoreId, "delivery.delivered", id)
	}))

	// the duplicate insert must not abort the surrounding transaction
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		skip, err := BeginIdempotency(tx, testStoreId, "delivery.delivered", id)
		require.NoError(t, err)
		assert.True(t, skip)
		return tx.Exec("SELECT 1").Error
	}))
}

func TestPostgres_DirectProcessorsSplitTheBatch(t *testing.T) {
	db := testsupport.OpenPostgres(t, models.AllModels()...)
	for i := 1; i <= 6; i++ {
		outboxRow(t, db, models.EventDeliveryCreated, "delivery", i, "{}")
	}

	a := NewDirectProcessor(db, quietLogger())
	b := NewDirectProcessor(db, quietLogger())
	a.BatchSize, b.BatchSize = 3, 3

	var wg sync.WaitGroup
	var na, nb int
	wg.Add(2)
	go func() { defer wg.Done(); na = a.ProcessOnce(context.Background()) }()
	go func() { defer wg.Done(); nb = b.ProcessOnce(context.Background()) }()
	wg.Wait()
	// a worker that lost the race drains the rest
	rest := a.ProcessOnce(context.Background())

	assert.Equal(t, 6, na+nb+rest)
	var pending int64
	require.NoError(t, db.Model(&models.OutboxMessage{}).Where("is_processed = ?", false).Count(&pending).Error)
	assert.Zero(t, pending)
}
