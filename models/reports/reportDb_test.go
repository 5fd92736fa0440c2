package reports

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/testsupport"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const reportStoreId = "store-report"

func seedDriver(t *testing.T, db *gorm.DB) *models.Driver {
	t.Helper()
	driver := &models.Driver{StoreId: reportStoreId, Name: "Болд Дорж", Phone: "+97688112233", Password: "x",
		Status: models.DriverStatusAvailable, IsActive: utils.NewTrue()}
	require.NoError(t, db.Create(driver).Error)
	return driver
}

func seedDelivered(t *testing.T, db *gorm.DB, driverId int, code string, created time.Time) *models.Delivery {
	t.Helper()
	assigned := created.Add(10 * time.Minute)
	done := assigned.Add(30 * time.Minute)
	delivery := &models.Delivery{
		StoreId:       reportStoreId,
		OrderId:       1,
		DriverId:      &driverId,
		TrackingCode:  code,
		Status:        models.DeliveryStatusDelivered,
		Attempts:      1,
		DeliveryFee:   decimal.NewFromInt(5000),
		DriverEarning: decimal.NewFromInt(1500),
		AssignedAt:    &assigned,
		DeliveredAt:   &done,
		CreatedAt:     created,
	}
	require.NoError(t, db.Create(delivery).Error)
	return delivery
}

func TestExportPayoutStatement(t *testing.T) {
	db := testsupport.OpenDB(t, models.AllModels()...)
	ctx := testsupport.UserContext(reportStoreId, 1, "Owner")
	driver := seedDriver(t, db)
	delivery := seedDelivered(t, db, driver.ID, "TRK-PAY-1", time.Now().Add(-2*time.Hour))
	earnedAt := time.Now().Add(-time.Hour).UTC()
	require.NoError(t, db.Create(&models.DriverEarning{
		StoreId: reportStoreId, DriverId: driver.ID, DeliveryId: delivery.ID,
		Amount: decimal.NewFromInt(1500), EarnedAt: earnedAt,
	}).Error)

	payout, err := models.CreateDriverPayout(ctx, driver.ID, time.Now())
	require.NoError(t, err)

	f, err := ExportPayoutStatement(ctx, payout.ID)
	require.NoError(t, err)
	rows, err := f.GetRows("Payout")
	require.NoError(t, err)
	require.Len(t, rows, 9)

	assert.Equal(t, []string{"Driver", "Болд Дорж"}, rows[0])
	assert.Equal(t, []string{"Status", string(models.PayoutStatusPending)}, rows[3])
	assert.Equal(t, []string{"Deliveries", "1"}, rows[4])
	assert.Equal(t, []string{"Total", "1,500₮"}, rows[5])
	assert.Equal(t, "Tracking code", rows[7][1])
	line := rows[8]
	require.Len(t, line, 5)
	assert.Equal(t, "TRK-PAY-1", line[1])
	assert.Equal(t, earnedAt.Format("2006-01-02 15:04"), line[2])
	assert.Equal(t, "5000.00", line[3])
	assert.Equal(t, "1500.00", line[4])

	_, err = ExportPayoutStatement(ctx, payout.ID+100)
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)
}

func TestGetDeliveryPerformanceReport_DateRange(t *testing.T) {
	db := testsupport.OpenDB(t, models.AllModels()...)
	ctx := testsupport.UserContext(reportStoreId, 1, "Owner")
	driver := seedDriver(t, db)
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	seedDelivered(t, db, driver.ID, "TRK-IN", from.Add(48*time.Hour))
	seedDelivered(t, db, driver.ID, "TRK-OUT", to.Add(24*time.Hour))

	report, err := GetDeliveryPerformanceReport(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Totals.Total)
	assert.Equal(t, 1, report.Totals.Delivered)
	require.Len(t, report.Drivers, 1)
	assert.Equal(t, "Болд Дорж", report.Drivers[0].DriverName)
	assert.Equal(t, 30.0, report.Drivers[0].AvgDeliveryMinutes)
	assert.True(t, decimal.NewFromInt(1500).Equal(report.Drivers[0].Earnings))

	_, err = GetDeliveryPerformanceReport(ctx, to, from)
	assert.True(t, utils.IsValidationError(err))
}
