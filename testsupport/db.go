// Package testsupport wires an in-memory database for package tests.
package testsupport

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var dbSeq int64

// OpenDB opens a fresh in-memory sqlite database, installs it as the global
// connection and migrates the given models. Redis stays disconnected so every
// cache helper is a no-op.
func OpenDB(t testing.TB, models ...interface{}) *gorm.DB {
	t.Helper()
	name := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared&_foreign_keys=1", atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(name), config.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	// one connection keeps the shared in-memory database alive and serialises writers
	sqlDB.SetMaxOpenConns(1)
	config.InstallPlugins(db)
	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}
	config.SetRedisClient(nil)
	config.SetDB(db)
	t.Cleanup(func() {
		config.SetDB(nil)
		_ = sqlDB.Close()
	})
	return db
}

// StoreContext returns a context scoped to storeId, as the session middleware would.
func StoreContext(storeId string) context.Context {
	return utils.SetStoreIdInContext(context.Background(), storeId)
}

// UserContext is StoreContext plus a dashboard user.
func UserContext(storeId string, userId int, name string) context.Context {
	ctx := StoreContext(storeId)
	ctx = utils.SetUserIdInContext(ctx, userId)
	return utils.SetUserNameInContext(ctx, name)
}

// DriverContext is StoreContext plus a logged-in driver.
func DriverContext(storeId string, driverId int) context.Context {
	return utils.SetDriverIdInContext(StoreContext(storeId), driverId)
}
