package models

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"gorm.io/gorm"
)

var errStoreMismatch = errors.New("cannot access resource owned by other store")

func requireStoreId(ctx context.Context) (string, error) {
	storeId, ok := utils.GetStoreIdFromContext(ctx)
	if !ok {
		return "", utils.ErrorStoreIdRequired
	}
	return storeId, nil
}

// first find in redis, then in db, using ctx's store_id in WHERE, cache result
// (may return RecordNotFound error)
func GetResource[T Resource](ctx context.Context, id int, associations ...string) (*T, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	result, err := utils.RetrieveRedis[T](id)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result, err = utils.FetchModel[T](ctx, storeId, id, associations...)
		if err != nil {
			return nil, err
		}
		if err := utils.StoreRedis[T](result, id); err != nil {
			return nil, err
		}
	} else if (*result).GetStoreId() != storeId {
		return nil, errStoreMismatch
	}
	return result, nil
}

// list all resources of the store, redis or db, cache result
func ListAllResource[T any](ctx context.Context, orders ...string) ([]*T, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	results, err := utils.RetrieveRedisList[T](storeId)
	if err != nil {
		return nil, err
	}
	if results == nil {
		dbCtx := config.GetDB().WithContext(ctx).Where("store_id = ?", storeId)
		for _, order := range orders {
			dbCtx = dbCtx.Order(order)
		}
		if err = dbCtx.Find(&results).Error; err != nil {
			return nil, err
		}
		if err := utils.StoreRedisList[T](results, storeId); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func ToggleActiveModel[T RedisCleaner](ctx context.Context, storeId string, id int, isActive bool) (*T, error) {
	result, err := utils.FetchModel[T](ctx, storeId, id)
	if err != nil {
		return nil, err
	}

	actionType := "*INACTIVE*"
	if isActive {
		actionType = "*ACTIVE*"
	}
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stmt := tx.Model(result).UpdateColumn("is_active", isActive)
		if stmt.Error != nil {
			return stmt.Error
		}
		return createHistory(tx, actionType, id, stmt.Statement.Table, nil, nil, "toggled "+utils.GetTypeName[T]())
	})
	if err != nil {
		return nil, err
	}

	if err := RemoveRedisBoth(*result); err != nil {
		config.LogError(config.GetLogger(), "Models", "ToggleActiveModel", "clear cache", id, err)
	}
	return result, nil
}
