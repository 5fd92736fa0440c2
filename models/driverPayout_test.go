package models

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/testsupport"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deliverWith runs a fresh delivery through to delivered by driver.
func (f *fixture) deliverWith(t *testing.T, driver *Driver) *Delivery {
	t.Helper()
	d := f.delivery(t)
	driverCtx := testsupport.DriverContext(testStoreId, driver.ID)
	_, err := AssignDriver(f.ctx, d.ID, driver.ID)
	require.NoError(t, err)
	_, err = MarkPickedUp(driverCtx, d.ID)
	require.NoError(t, err)
	_, err = MarkInTransit(driverCtx, d.ID)
	require.NoError(t, err)
	d, err = MarkDelivered(driverCtx, d.ID)
	require.NoError(t, err)
	return d
}

func TestAccrueDriverEarning_Idempotent(t *testing.T) {
	f := newFixture(t)
	driver := f.driver(t, "88112233", DriverStatusAvailable)
	d := f.deliverWith(t, driver)

	earning, created, err := AccrueDriverEarning(f.ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, decimal.NewFromInt(1500).Equal(earning.Amount))
	assert.Equal(t, driver.ID, earning.DriverId)

	_, created, err = AccrueDriverEarning(f.ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, created)

	pending := f.delivery(t)
	earning, created, err = AccrueDriverEarning(f.ctx, pending.ID)
	require.NoError(t, err)
	assert.Nil(t, earning)
	assert.False(t, created)

	balance, err := GetDriverBalance(f.ctx, driver.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, balance.UnpaidCount)
	assert.True(t, decimal.NewFromInt(1500).Equal(balance.UnpaidAmount))
}

func TestDriverPayout_CreatePayVoid(t *testing.T) {
	f := newFixture(t)
	driver := f.driver(t, "88112233", DriverStatusAvailable)
	for i := 0; i < 2; i++ {
		d := f.deliverWith(t, driver)
		_, _, err := AccrueDriverEarning(f.ctx, d.ID)
		require.NoError(t, err)
	}

	_, err := CreateDriverPayout(f.ctx, driver.ID, time.Now().Add(-24*time.Hour))
	assert.ErrorIs(t, err, ErrNoUnpaidEarnings)

	periodEnd := time.Now().UTC().Add(time.Minute)
	payout, err := CreateDriverPayout(f.ctx, driver.ID, periodEnd)
	require.NoError(t, err)
	assert.Equal(t, 2, payout.DeliveryCount)
	assert.True(t, decimal.NewFromInt(3000).Equal(payout.TotalAmount))
	assert.Equal(t, PayoutStatusPending, payout.Status)
	assert.False(t, payout.PeriodStart.After(periodEnd))
	assert.Equal(t, []string{EventPayoutCreated}, f.outboxTypes(t, "driver_payouts", payout.ID))

	balance, err := GetDriverBalance(f.ctx, driver.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance.UnpaidCount)
	assert.True(t, decimal.NewFromInt(3000).Equal(balance.PendingPayout))

	_, err = CreateDriverPayout(f.ctx, driver.ID, periodEnd)
	assert.ErrorIs(t, err, ErrNoUnpaidEarnings)

	voided, err := VoidPayout(f.ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, PayoutStatusVoid, voided.Status)
	unpaid, err := ListDriverEarnings(f.ctx, driver.ID, true)
	require.NoError(t, err)
	assert.Len(t, unpaid, 2)

	_, err = MarkPayoutPaid(f.ctx, payout.ID, "TX-1")
	require.Error(t, err)
	assert.True(t, utils.IsValidationError(err))

	again, err := CreateDriverPayout(f.ctx, driver.ID, periodEnd)
	require.NoError(t, err)
	paid, err := MarkPayoutPaid(f.ctx, again.ID, " TX-2 ")
	require.NoError(t, err)
	assert.Equal(t, PayoutStatusPaid, paid.Status)
	assert.Equal(t, "TX-2", paid.Reference)
	require.NotNil(t, paid.PaidAt)
	assert.Len(t, paid.Earnings, 2)

	_, err = VoidPayout(f.ctx, again.ID)
	assert.True(t, utils.IsValidationError(err))
	_, err = VoidPayout(f.ctx, 999)
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)

	statusPaid := PayoutStatusPaid
	list, err := GetDriverPayouts(f.ctx, &driver.ID, &statusPaid)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, again.ID, list[0].ID)
}
