package workflow

import (
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var ErrIdempotencyInProgress = errors.New("idempotency in progress")

func isDuplicateKeyErr(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// BeginIdempotency claims (store, handler, message). skip is true when the
// handler already succeeded for this message.
func BeginIdempotency(tx *gorm.DB, storeId, handlerName, messageId string) (skip bool, err error) {
	key := models.IdempotencyKey{
		StoreId:     storeId,
		HandlerName: handlerName,
		MessageId:   messageId,
		Status:      models.IdempotencyStatusStarted,
	}
	// postgres aborts the whole transaction on a failed insert, so guard it with a savepoint
	if err := tx.SavePoint("idempotency").Error; err != nil {
		return false, err
	}
	err = tx.Create(&key).Error
	if err == nil {
		return false, nil
	}
	if !isDuplicateKeyErr(err) {
		return false, err
	}
	if err := tx.RollbackTo("idempotency").Error; err != nil {
		return false, err
	}

	existing, err := models.FindIdempotencyKey(tx, storeId, handlerName, messageId)
	if err != nil {
		return false, err
	}
	if existing.Status == models.IdempotencyStatusSucceeded {
		return true, nil
	}
	if existing.InProgress(time.Now()) {
		return false, ErrIdempotencyInProgress
	}
	return false, models.SetIdempotencyStatus(tx, storeId, handlerName, messageId, models.IdempotencyStatusStarted, nil)
}

func MarkIdempotencySucceeded(tx *gorm.DB, storeId, handlerName, messageId string) error {
	return models.SetIdempotencyStatus(tx, storeId, handlerName, messageId, models.IdempotencyStatusSucceeded, nil)
}

func MarkIdempotencyFailed(tx *gorm.DB, storeId, handlerName, messageId string, cause error) error {
	return models.SetIdempotencyStatus(tx, storeId, handlerName, messageId, models.IdempotencyStatusFailed, cause)
}
