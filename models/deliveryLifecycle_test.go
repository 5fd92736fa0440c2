package models

import (
	"context"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/testsupport"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryStatus_CanMoveTo(t *testing.T) {
	tests := []struct {
		from DeliveryStatus
		to   DeliveryStatus
		want bool
	}{
		{DeliveryStatusPending, DeliveryStatusAssigned, true},
		{DeliveryStatusPending, DeliveryStatusPickedUp, false},
		{DeliveryStatusAssigned, DeliveryStatusPending, true},
		{DeliveryStatusAssigned, DeliveryStatusDelivered, false},
		{DeliveryStatusPickedUp, DeliveryStatusFailed, true},
		{DeliveryStatusInTransit, DeliveryStatusDelayed, true},
		{DeliveryStatusDelayed, DeliveryStatusInTransit, true},
		{DeliveryStatusDelayed, DeliveryStatusDelivered, true},
		{DeliveryStatusFailed, DeliveryStatusPending, true},
		{DeliveryStatusFailed, DeliveryStatusAssigned, false},
		{DeliveryStatusDelivered, DeliveryStatusFailed, false},
		{DeliveryStatusCancelled, DeliveryStatusPending, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanMoveTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestSourcesOf(t *testing.T) {
	assert.Equal(t, []DeliveryStatus{DeliveryStatusInTransit, DeliveryStatusDelayed}, sourcesOf(DeliveryStatusDelivered))
	assert.Equal(t, []DeliveryStatus{DeliveryStatusAssigned, DeliveryStatusFailed}, sourcesOf(DeliveryStatusPending))
	assert.Empty(t, sourcesOf("bogus"))
	assert.True(t, DeliveryStatusDelivered.IsTerminal())
	assert.False(t, DeliveryStatusFailed.IsTerminal())
}

func TestCreateDelivery_DefaultsFromOrder(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, 2)
	assert.True(t, decimal.NewFromInt(5000).Equal(order.DeliveryFee))
	assert.True(t, decimal.NewFromInt(95000).Equal(order.Total))

	d, err := CreateDelivery(f.ctx, &NewDelivery{OrderId: order.ID})
	require.NoError(t, err)
	assert.Equal(t, DeliveryStatusPending, d.Status)
	assert.Len(t, d.TrackingCode, 27)
	assert.Equal(t, "+97699112233", d.RecipientPhone)
	assert.Equal(t, "Бат", d.RecipientName)
	assert.Equal(t, f.store.Address, d.PickupAddress)
	assert.True(t, order.DeliveryFee.Equal(d.DeliveryFee))
	assert.Equal(t, 1, d.Attempts)
	require.NotNil(t, d.ZoneId)
	assert.Equal(t, f.zone.ID, *d.ZoneId)
	assert.Equal(t, []string{EventDeliveryCreated}, f.outboxTypes(t, "deliveries", d.ID))

	_, err = CreateDelivery(f.ctx, &NewDelivery{OrderId: order.ID})
	require.Error(t, err)
	assert.True(t, utils.IsValidationError(err))
}

func TestDeliveryLifecycle_HappyPath(t *testing.T) {
	f := newFixture(t)
	driver := f.driver(t, "88112233", DriverStatusAvailable)
	d := f.delivery(t)

	d, err := AssignDriver(f.ctx, d.ID, driver.ID)
	require.NoError(t, err)
	assert.Equal(t, DeliveryStatusAssigned, d.Status)
	require.NotNil(t, d.AssignedAt)
	// 1000 flat + 10% of 5000
	assert.True(t, decimal.NewFromInt(1500).Equal(d.DriverEarning), d.DriverEarning.String())
	var reloaded Driver
	f.reload(t, &reloaded, driver.ID)
	assert.Equal(t, DriverStatusBusy, reloaded.Status)

	driverCtx := testsupport.DriverContext(testStoreId, driver.ID)
	d, err = MarkPickedUp(driverCtx, d.ID)
	require.NoError(t, err)
	var order Order
	f.reload(t, &order, d.OrderId)
	assert.Equal(t, OrderStatusOutForDelivery, order.Status)

	_, err = MarkInTransit(driverCtx, d.ID)
	require.NoError(t, err)
	_, err = MarkDelayed(driverCtx, d.ID, "  түгжрэл ")
	require.NoError(t, err)
	d, err = MarkDelivered(driverCtx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, DeliveryStatusDelivered, d.Status)
	assert.Equal(t, "түгжрэл", d.DelayReason)
	require.NotNil(t, d.DeliveredAt)

	f.reload(t, &order, d.OrderId)
	assert.Equal(t, OrderStatusCompleted, order.Status)
	f.reload(t, &reloaded, driver.ID)
	assert.Equal(t, DriverStatusAvailable, reloaded.Status)

	events, err := GetDeliveryEvents(f.ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, events, 6)
	assert.Equal(t, ActorTypeUser, events[1].ActorType)
	assert.Equal(t, ActorTypeDriver, events[2].ActorType)
	assert.Equal(t, driver.ID, events[2].ActorId)
	assert.Equal(t, DeliveryStatusInTransit, events[4].FromStatus)
	assert.Equal(t, DeliveryStatusDelayed, events[4].ToStatus)

	assert.Equal(t, []string{
		"delivery.created", "delivery.assigned", "delivery.picked_up",
		"delivery.in_transit", "delivery.delayed", "delivery.delivered",
	}, f.outboxTypes(t, "deliveries", d.ID))
}

func TestDeliveryLifecycle_RejectsInvalidTransitions(t *testing.T) {
	f := newFixture(t)
	d := f.delivery(t)

	_, err := MarkDelivered(f.ctx, d.ID)
	assert.ErrorIs(t, err, ErrInvalidDeliveryTransition)
	_, err = MarkDelayed(f.ctx, d.ID, "")
	assert.True(t, utils.IsValidationError(err))
	_, err = MarkFailed(f.ctx, 9999, "lost")
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)

	_, err = CancelDelivery(f.ctx, d.ID, "customer changed mind")
	require.NoError(t, err)
	_, err = AssignDriver(f.ctx, d.ID, f.driver(t, "88112234", DriverStatusAvailable).ID)
	assert.ErrorIs(t, err, ErrInvalidDeliveryTransition)
}

func TestAssignDriver_RefusesOfflineDriver(t *testing.T) {
	f := newFixture(t)
	driver := f.driver(t, "88112233", DriverStatusOffline)
	d := f.delivery(t)

	_, err := AssignDriver(f.ctx, d.ID, driver.ID)
	assert.ErrorIs(t, err, ErrDriverUnavailable)

	var reloaded Delivery
	f.reload(t, &reloaded, d.ID)
	assert.Equal(t, DeliveryStatusPending, reloaded.Status)
	assert.Nil(t, reloaded.DriverId)

	_, err = AssignDriver(f.ctx, d.ID, 4242)
	assert.True(t, utils.IsValidationError(err))
}

func TestDeliveryLifecycle_DriverScope(t *testing.T) {
	f := newFixture(t)
	mine := f.driver(t, "88112233", DriverStatusAvailable)
	other := f.driver(t, "88112244", DriverStatusAvailable)
	d := f.delivery(t)
	_, err := AssignDriver(f.ctx, d.ID, mine.ID)
	require.NoError(t, err)

	_, err = MarkPickedUp(testsupport.DriverContext(testStoreId, other.ID), d.ID)
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)

	_, err = CancelDelivery(testsupport.DriverContext(testStoreId, mine.ID), d.ID, "no time")
	assert.ErrorIs(t, err, utils.ErrorForbidden)

	_, err = UnassignDriver(f.ctx, d.ID, "reassign")
	require.NoError(t, err)
	var reloaded Driver
	f.reload(t, &reloaded, mine.ID)
	assert.Equal(t, DriverStatusAvailable, reloaded.Status)
}

func TestReleaseDriver_KeepsBusyWithOtherDeliveries(t *testing.T) {
	f := newFixture(t)
	driver := f.driver(t, "88112233", DriverStatusAvailable)
	first := f.delivery(t)
	second := f.delivery(t)
	_, err := AssignDriver(f.ctx, first.ID, driver.ID)
	require.NoError(t, err)
	_, err = AssignDriver(f.ctx, second.ID, driver.ID)
	require.NoError(t, err)

	_, err = CancelDelivery(f.ctx, first.ID, "duplicate")
	require.NoError(t, err)
	var reloaded Driver
	f.reload(t, &reloaded, driver.ID)
	assert.Equal(t, DriverStatusBusy, reloaded.Status)
}

func TestMarkDelivered_RequiresProofPhoto(t *testing.T) {
	t.Setenv("DELIVERY_REQUIRE_PROOF_PHOTO", "true")
	f := newFixture(t)
	driver := f.driver(t, "88112233", DriverStatusAvailable)
	d := f.delivery(t)
	driverCtx := testsupport.DriverContext(testStoreId, driver.ID)

	_, err := AssignDriver(f.ctx, d.ID, driver.ID)
	require.NoError(t, err)
	_, err = AttachProofPhoto(driverCtx, d.ID, "https://cdn/p.jpg", "")
	assert.ErrorIs(t, err, ErrDeliveryStatusConflict)

	_, err = MarkPickedUp(driverCtx, d.ID)
	require.NoError(t, err)
	_, err = MarkInTransit(driverCtx, d.ID)
	require.NoError(t, err)
	_, err = MarkDelivered(driverCtx, d.ID)
	assert.ErrorIs(t, err, ErrProofPhotoRequired)

	_, err = AttachProofPhoto(driverCtx, d.ID, "https://cdn/p.jpg", "https://cdn/p_thumb.jpg")
	require.NoError(t, err)
	d, err = MarkDelivered(driverCtx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/p_thumb.jpg", d.ProofThumbnailUrl)
}

func TestRescheduleDelivery_CapsAttempts(t *testing.T) {
	t.Setenv("DELIVERY_MAX_ATTEMPTS", "2")
	f := newFixture(t)
	driver := f.driver(t, "88112233", DriverStatusAvailable)
	d := f.delivery(t)
	driverCtx := testsupport.DriverContext(testStoreId, driver.ID)

	fail := func() {
		t.Helper()
		_, err := AssignDriver(f.ctx, d.ID, driver.ID)
		require.NoError(t, err)
		_, err = MarkPickedUp(driverCtx, d.ID)
		require.NoError(t, err)
		_, err = MarkFailed(driverCtx, d.ID, "nobody home")
		require.NoError(t, err)
	}

	fail()
	_, err := RescheduleDelivery(f.ctx, d.ID, nil)
	require.NoError(t, err)
	var reloaded Delivery
	f.reload(t, &reloaded, d.ID)
	assert.Equal(t, DeliveryStatusPending, reloaded.Status)
	assert.Equal(t, 2, reloaded.Attempts)
	assert.Nil(t, reloaded.DriverId)
	assert.Nil(t, reloaded.PickedUpAt)
	assert.True(t, reloaded.DriverEarning.IsZero())

	fail()
	_, err = RescheduleDelivery(f.ctx, d.ID, nil)
	assert.ErrorIs(t, err, ErrMaxAttemptsReached)

	past := time.Now().Add(-time.Hour)
	_, err = RescheduleDelivery(f.ctx, d.ID, &past)
	assert.True(t, utils.IsValidationError(err))
}

func TestFailedLastAttempt_OrderCanBeCancelled(t *testing.T) {
	t.Setenv("DELIVERY_MAX_ATTEMPTS", "1")
	f := newFixture(t)
	driver := f.driver(t, "88112233", DriverStatusAvailable)
	d := f.delivery(t)
	driverCtx := testsupport.DriverContext(testStoreId, driver.ID)

	_, err := AssignDriver(f.ctx, d.ID, driver.ID)
	require.NoError(t, err)
	_, err = MarkPickedUp(driverCtx, d.ID)
	require.NoError(t, err)

	// still on the road
	_, err = UpdateOrderStatus(f.ctx, d.OrderId, OrderStatusCancelled, "changed mind")
	assert.True(t, utils.IsValidationError(err))

	_, err = MarkFailed(driverCtx, d.ID, "nobody home")
	require.NoError(t, err)
	_, err = RescheduleDelivery(f.ctx, d.ID, nil)
	require.ErrorIs(t, err, ErrMaxAttemptsReached)

	var product Product
	f.reload(t, &product, f.product.ID)
	require.Equal(t, 4, product.StockQty)

	order, err := UpdateOrderStatus(f.ctx, d.OrderId, OrderStatusCancelled, "delivery failed")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCancelled, order.Status)
	f.reload(t, &product, f.product.ID)
	assert.Equal(t, 5, product.StockQty)
}

func TestRescheduleDelivery_RefusedForCancelledOrder(t *testing.T) {
	f := newFixture(t)
	driver := f.driver(t, "88112233", DriverStatusAvailable)
	d := f.delivery(t)
	driverCtx := testsupport.DriverContext(testStoreId, driver.ID)

	_, err := AssignDriver(f.ctx, d.ID, driver.ID)
	require.NoError(t, err)
	_, err = MarkPickedUp(driverCtx, d.ID)
	require.NoError(t, err)
	_, err = MarkFailed(driverCtx, d.ID, "wrong address")
	require.NoError(t, err)
	_, err = UpdateOrderStatus(f.ctx, d.OrderId, OrderStatusCancelled, "delivery failed")
	require.NoError(t, err)

	_, err = RescheduleDelivery(f.ctx, d.ID, nil)
	assert.True(t, utils.IsValidationError(err))
}

func TestUpdateDriverLocation_OnlyWhileActive(t *testing.T) {
	f := newFixture(t)
	driver := f.driver(t, "88112233", DriverStatusAvailable)
	d := f.delivery(t)
	driverCtx := testsupport.DriverContext(testStoreId, driver.ID)
	_, err := AssignDriver(f.ctx, d.ID, driver.ID)
	require.NoError(t, err)

	_, err = UpdateDriverLocation(driverCtx, d.ID, 47.92, 106.92)
	assert.ErrorIs(t, err, ErrDeliveryStatusConflict)

	_, err = MarkPickedUp(driverCtx, d.ID)
	require.NoError(t, err)
	loc, err := UpdateDriverLocation(driverCtx, d.ID, 47.92, 106.92)
	require.NoError(t, err)
	assert.Equal(t, 47.92, loc.Lat)

	info, err := TrackDelivery(context.Background(), d.TrackingCode)
	require.NoError(t, err)
	assert.Equal(t, DeliveryStatusPickedUp, info.Status)
	assert.Equal(t, "Болд", info.DriverFirstName)
	assert.Equal(t, "Test Shop", info.StoreName)
	require.NotNil(t, info.LastLat)
	assert.Equal(t, 47.92, *info.LastLat)
	assert.Len(t, info.Timeline, 3)

	_, err = MarkFailed(driverCtx, d.ID, "damaged")
	require.NoError(t, err)
	info, err = TrackDelivery(context.Background(), d.TrackingCode)
	require.NoError(t, err)
	assert.Nil(t, info.LastLat)

	_, err = TrackDelivery(context.Background(), "nope")
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)
}

func TestPaginateDeliveries_FiltersByStatus(t *testing.T) {
	f := newFixture(t)
	first := f.delivery(t)
	second := f.delivery(t)
	_, err := CancelDelivery(f.ctx, second.ID, "dup")
	require.NoError(t, err)

	pending := DeliveryStatusPending
	page, err := PaginateDeliveries(f.ctx, 10, nil, DeliveryFilter{Status: &pending})
	require.NoError(t, err)
	require.Len(t, page.Edges, 1)
	assert.Equal(t, first.ID, page.Edges[0].Node.ID)
}
