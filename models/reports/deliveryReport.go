package reports

import (
	"context"
	"math"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type DriverPerformance struct {
	DriverId           int             `json:"driver_id"`
	DriverName         string          `json:"driver_name"`
	Total              int             `json:"total"`
	Delivered          int             `json:"delivered"`
	Failed             int             `json:"failed"`
	Cancelled          int             `json:"cancelled"`
	Open               int             `json:"open"`
	SuccessRate        float64         `json:"success_rate"`
	AvgDeliveryMinutes float64         `json:"avg_delivery_minutes"`
	DeliveryFees       decimal.Decimal `json:"delivery_fees"`
	Earnings           decimal.Decimal `json:"earnings"`

	minutesTotal float64
}

type DeliveryPerformanceReport struct {
	From    time.Time            `json:"from"`
	To      time.Time            `json:"to"`
	Totals  DriverPerformance    `json:"totals"`
	Drivers []*DriverPerformance `json:"drivers"`
}

func (p *DriverPerformance) add(d *models.Delivery) {
	p.Total++
	switch d.Status {
	case models.DeliveryStatusDelivered:
		p.Delivered++
		p.DeliveryFees = p.DeliveryFees.Add(d.DeliveryFee)
		p.Earnings = p.Earnings.Add(d.DriverEarning)
		if d.AssignedAt != nil && d.DeliveredAt != nil {
			p.minutesTotal += d.DeliveredAt.Sub(*d.AssignedAt).Minutes()
		}
	case models.DeliveryStatusFailed:
		p.Failed++
	case models.DeliveryStatusCancelled:
		p.Cancelled++
	default:
		p.Open++
	}
}

// finish computes the success rate over finished attempts and the mean minutes
// from assignment to hand-over.
func (p *DriverPerformance) finish() {
	if done := p.Delivered + p.Failed; done > 0 {
		p.SuccessRate = round2(float64(p.Delivered) * 100 / float64(done))
	}
	if p.Delivered > 0 {
		p.AvgDeliveryMinutes = round2(p.minutesTotal / float64(p.Delivered))
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func buildPerformance(deliveries []*models.Delivery, driverNames map[int]string) ([]*DriverPerformance, DriverPerformance) {
	byDriver := make(map[int]*DriverPerformance)
	var totals DriverPerformance
	for _, d := range deliveries {
		totals.add(d)
		if d.DriverId == nil {
			continue
		}
		p, ok := byDriver[*d.DriverId]
		if !ok {
			p = &DriverPerformance{DriverId: *d.DriverId, DriverName: driverNames[*d.DriverId]}
			byDriver[*d.DriverId] = p
		}
		p.add(d)
	}
	rows := make([]*DriverPerformance, 0, len(byDriver))
	for _, p := range byDriver {
		p.finish()
		rows = append(rows, p)
	}
	totals.finish()
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Delivered != rows[j].Delivered {
			return rows[i].Delivered > rows[j].Delivered
		}
		return rows[i].DriverId < rows[j].DriverId
	})
	return rows, totals
}

// GetDeliveryPerformanceReport summarises deliveries created in [from, to) per driver.
func GetDeliveryPerformanceReport(ctx context.Context, from time.Time, to time.Time) (*DeliveryPerformanceReport, error) {
	storeId, ok := utils.GetStoreIdFromContext(ctx)
	if !ok {
		return nil, utils.ErrorStoreIdRequired
	}
	if !to.After(from) {
		return nil, utils.NewValidationError("to must be after from")
	}
	started := time.Now()
	defer logSlowReport(ctx, "delivery_performance", started, logrus.Fields{"from": from, "to": to})

	cacheKey := reportCacheKey("DeliveryPerformance", storeId, from, to)
	var cached DeliveryPerformanceReport
	if hit, err := cacheGet(cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	var deliveries []*models.Delivery
	if err := config.GetDB().WithContext(ctx).
		Where("store_id = ? AND created_at >= ? AND created_at < ?", storeId, from, to).
		Find(&deliveries).Error; err != nil {
		return nil, err
	}
	drivers, err := models.GetDrivers(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int]string, len(drivers))
	for _, d := range drivers {
		names[d.ID] = d.Name
	}

	rows, totals := buildPerformance(deliveries, names)
	report := &DeliveryPerformanceReport{From: from, To: to, Totals: totals, Drivers: rows}
	cacheSet(cacheKey, report)
	return report, nil
}
