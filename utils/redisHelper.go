package utils

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"gorm.io/gorm"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil || lifespan <= 0 {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

/* generic functions */

func GetTypeName[T any]() string {
	var v T
	return reflect.TypeOf(v).Name()
}

/* Redis */

// store instance under Type:$id
func StoreRedis[T any](obj *T, id int) error {
	key := GetTypeName[T]() + ":" + fmt.Sprint(id)
	return config.SetRedisObject(key, obj, GetCacheLifespan())
}

// store list under TypeList:$store_id
func StoreRedisList[T any](obj []*T, storeId string) error {
	return config.SetRedisObject(redisListKey[T](storeId), obj, GetCacheLifespan())
}

// get from redis, returns nil if it does not exist
func RetrieveRedis[T any](id int) (*T, error) {
	var result T
	key := GetTypeName[T]() + ":" + fmt.Sprint(id)
	exists, err := config.GetRedisObject(key, &result)
	if err != nil || !exists {
		return nil, err
	}
	return &result, nil
}

// retrieve a list, nil if it does not exist
func RetrieveRedisList[T any](storeId string) ([]*T, error) {
	var result []*T
	exists, err := config.GetRedisObject(redisListKey[T](storeId), &result)
	if err != nil || !exists {
		return nil, err
	}
	return result, nil
}

// clear list, TypeList:$store_id
func RemoveRedisList[T any](storeId string) error {
	return config.RemoveRedisKey(redisListKey[T](storeId))
}

// remove an instance, Type:$id
func RemoveRedisItem[T any](id int) error {
	key := GetTypeName[T]() + ":" + fmt.Sprint(id)
	return config.RemoveRedisKey(key)
}

func redisListKey[T any](storeId string) string {
	if storeId == "" {
		return GetTypeName[T]() + "List"
	}
	return GetTypeName[T]() + "List:" + storeId
}

// NextSequence returns the next per-store sequence number for T.
// Redis INCR is the fast path, seeded from max(sequence_no) in the table.
// Without redis it falls back to max+1 inside tx, which must hold the store lock.
func NextSequence[T any](ctx context.Context, tx *gorm.DB, storeId string) (int64, error) {
	var model T
	cacheKey := fmt.Sprintf("%s:seq:%s", GetTypeName[T](), storeId)

	maxFromDB := func() (int64, error) {
		var dbSeq *int64
		if err := tx.WithContext(ctx).Model(&model).Select("max(sequence_no)").
			Where("store_id = ?", storeId).
			Scan(&dbSeq).Error; err != nil {
			return 0, err
		}
		return DereferencePtr(dbSeq), nil
	}

	seqNo, ok, err := config.GetRedisCounter(ctx, cacheKey)
	if err != nil {
		return 0, err
	}
	if !ok {
		last, err := maxFromDB()
		if err != nil {
			return 0, err
		}
		return last + 1, nil
	}
	if seqNo == 1 {
		// counter was missing; reconcile with the table
		last, err := maxFromDB()
		if err != nil {
			return 0, err
		}
		if last >= seqNo {
			seqNo = last + 1
			if err := config.SetRedisValue(cacheKey, strconv.FormatInt(seqNo, 10), 0); err != nil {
				return 0, err
			}
		}
	}
	return seqNo, nil
}
