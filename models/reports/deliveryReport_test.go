package reports

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func delivered(driverId int, assigned time.Time, minutes int, fee, earning int64) *models.Delivery {
	done := assigned.Add(time.Duration(minutes) * time.Minute)
	return &models.Delivery{
		DriverId:      &driverId,
		Status:        models.DeliveryStatusDelivered,
		AssignedAt:    &assigned,
		DeliveredAt:   &done,
		DeliveryFee:   decimal.NewFromInt(fee),
		DriverEarning: decimal.NewFromInt(earning),
	}
}

func withStatus(driverId *int, status models.DeliveryStatus) *models.Delivery {
	return &models.Delivery{DriverId: driverId, Status: status}
}

func TestBuildPerformance(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	one, two := 1, 2
	deliveries := []*models.Delivery{
		delivered(1, start, 30, 5000, 1500),
		delivered(1, start, 45, 5000, 1500),
		withStatus(&one, models.DeliveryStatusFailed),
		delivered(2, start, 20, 7000, 2000),
		delivered(2, start, 40, 7000, 2000),
		delivered(2, start, 60, 7000, 2000),
		withStatus(&two, models.DeliveryStatusInTransit),
		withStatus(nil, models.DeliveryStatusPending),
		withStatus(nil, models.DeliveryStatusCancelled),
	}

	rows, totals := buildPerformance(deliveries, map[int]string{1: "Болд", 2: "Сүх"})
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].DriverId)
	assert.Equal(t, "Сүх", rows[0].DriverName)
	assert.Equal(t, 3, rows[0].Delivered)
	assert.Equal(t, 1, rows[0].Open)
	assert.Equal(t, 100.0, rows[0].SuccessRate)
	assert.Equal(t, 40.0, rows[0].AvgDeliveryMinutes)
	assert.True(t, decimal.NewFromInt(21000).Equal(rows[0].DeliveryFees))

	assert.Equal(t, 1, rows[1].DriverId)
	assert.Equal(t, 1, rows[1].Failed)
	assert.Equal(t, 66.67, rows[1].SuccessRate)
	assert.Equal(t, 37.5, rows[1].AvgDeliveryMinutes)
	assert.True(t, decimal.NewFromInt(3000).Equal(rows[1].Earnings))

	assert.Equal(t, 9, totals.Total)
	assert.Equal(t, 5, totals.Delivered)
	assert.Equal(t, 1, totals.Cancelled)
	assert.Equal(t, 2, totals.Open)
	assert.Equal(t, 83.33, totals.SuccessRate)
}

func TestExportDeliveryPerformance(t *testing.T) {
	report := &DeliveryPerformanceReport{
		Drivers: []*DriverPerformance{{DriverName: "Болд", Total: 2, Delivered: 2, SuccessRate: 100}},
		Totals:  DriverPerformance{Total: 2, Delivered: 2, SuccessRate: 100},
	}
	f, err := ExportDeliveryPerformance(report)
	require.NoError(t, err)

	head, err := f.GetCellValue("Performance", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Driver", head)
	name, err := f.GetCellValue("Performance", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Болд", name)
	total, err := f.GetCellValue("Performance", "A3")
	require.NoError(t, err)
	assert.Equal(t, "Total", total)
	earnings, err := f.GetCellValue("Performance", "J3")
	require.NoError(t, err)
	assert.Equal(t, "0.00", earnings)
}
