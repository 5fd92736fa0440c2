package workflow

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

const storeLockTTL = 30 * time.Second

// LockStore serialises event processing of one store across instances. It is
// best effort: without redis, or when the lock is busy past the retry window,
// processing goes ahead and idempotency keys keep it safe.
func LockStore(ctx context.Context, logger *logrus.Logger, storeId string) (release func()) {
	noop := func() {}
	locker := config.GetRedisLock()
	if locker == nil || storeId == "" {
		return noop
	}
	lock, err := locker.Obtain(ctx, "lock:events:"+storeId, storeLockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50),
	})
	if err != nil {
		if logger != nil {
			entry := logger.WithFields(logrus.Fields{"field": "LockStore", "store_id": storeId})
			if errors.Is(err, redislock.ErrNotObtained) {
				entry.Warn("could not obtain store lock; proceeding without it")
			} else {
				entry.Warn("error obtaining store lock; proceeding without it: " + err.Error())
			}
		}
		return noop
	}
	return func() {
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) && logger != nil {
			logger.WithFields(logrus.Fields{"field": "LockStore", "store_id": storeId}).
				Warn("failed to release store lock: " + err.Error())
		}
	}
}
