package utils

import (
	"context"
	"errors"
	"reflect"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
)

// check if id exists in the store, return RecordNotFound Error
func ValidateResourceId[T any](ctx context.Context, storeId string, id interface{}) error {
	count, err := ResourceCountWhere[T](ctx, storeId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}

func ValidateUnique[T any](ctx context.Context, storeId string, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if exceptId == nil || reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, storeId, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, storeId, column+" = ? AND NOT id = ?", value, exceptId)
	}
	if err != nil {
		return err
	}
	if count > 0 {
		return NewValidationError("duplicate " + column)
	}
	return nil
}

// count records, using WHERE store_id = ? AND $condition
// storeId can be blank for admin user
func ResourceCountWhere[T any](ctx context.Context, storeId string, condition string, value ...interface{}) (int64, error) {
	var model T
	db := config.GetDB()
	if db == nil {
		return 0, errors.New("database not connected")
	}
	dbCtx := db.WithContext(ctx).Model(&model)
	if storeId != "" {
		dbCtx = dbCtx.Where("store_id = ?", storeId)
	}
	dbCtx = dbCtx.Where(condition, value...)
	var count int64
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

