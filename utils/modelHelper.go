package utils

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"gorm.io/gorm"
)

/* DB fetching */

// fetch model from db
// (store_id is used in query's WHERE, may return RecordNotFound)
func FetchModel[T any](ctx context.Context, storeId string, id int, associations ...string) (*T, error) {
	if storeId == "" {
		return nil, ErrorStoreIdRequired
	}
	dbCtx := config.GetDB().WithContext(ctx).Where("store_id = ?", storeId)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// fetch the models of a store with the given ids, in no particular order
func FetchModelsByIds[T any](ctx context.Context, storeId string, ids []int) ([]*T, error) {
	if storeId == "" {
		return nil, ErrorStoreIdRequired
	}
	var results []*T
	if len(ids) == 0 {
		return results, nil
	}
	err := config.GetDB().WithContext(ctx).
		Where("store_id = ? AND id IN ?", storeId, UniqueSlice(ids)).
		Find(&results).Error
	return results, err
}
