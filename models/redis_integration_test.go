package models

import (
	"testing"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRescheduleDelivery_ForgetsCachedLocation(t *testing.T) {
	f := newFixture(t)
	testsupport.OpenRedis(t)
	driver := f.driver(t, "88112233", DriverStatusAvailable)
	d := f.delivery(t)
	driverCtx := testsupport.DriverContext(testStoreId, driver.ID)

	_, err := AssignDriver(f.ctx, d.ID, driver.ID)
	require.NoError(t, err)
	_, err = MarkPickedUp(driverCtx, d.ID)
	require.NoError(t, err)
	_, err = UpdateDriverLocation(driverCtx, d.ID, 47.92, 106.91)
	require.NoError(t, err)

	var loc DriverLocation
	ok, err := config.GetRedisObject(driverLocationKey(d.ID), &loc)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = MarkFailed(driverCtx, d.ID, "nobody home")
	require.NoError(t, err)
	_, err = RescheduleDelivery(f.ctx, d.ID, nil)
	require.NoError(t, err)

	ok, err = config.GetRedisObject(driverLocationKey(d.ID), &loc)
	require.NoError(t, err)
	assert.False(t, ok)

	// a fresh pickup has no position until the driver reports one
	_, err = AssignDriver(f.ctx, d.ID, driver.ID)
	require.NoError(t, err)
	_, err = MarkPickedUp(driverCtx, d.ID)
	require.NoError(t, err)
	var reloaded Delivery
	f.reload(t, &reloaded, d.ID)
	info, err := TrackDelivery(f.ctx, reloaded.TrackingCode)
	require.NoError(t, err)
	assert.Nil(t, info.LastLat)
	assert.Nil(t, info.LastLocationAt)
}
