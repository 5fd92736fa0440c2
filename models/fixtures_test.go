package models

import (
	"context"
	"testing"

	"bitbucket.org/mmdatafocus/commerce_backend/testsupport"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testStoreId = "store-test"

type fixture struct {
	db      *gorm.DB
	ctx     context.Context
	store   *Store
	zone    *DeliveryZone
	product *Product
}

// newFixture migrates a fresh database with one store located in central
// Ulaanbaatar, a flat 5000 zone serving "СБД" and one tracked product.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testsupport.OpenDB(t, AllModels()...)
	store := &Store{
		ID:        testStoreId,
		Name:      "Test Shop",
		Slug:      "test-shop",
		Address:   "Сүхбаатарын талбай",
		Latitude:  47.9186,
		Longitude: 106.9176,
		Timezone:  defaultTimezone,
		Currency:  "MNT",
		IsActive:  utils.NewTrue(),
	}
	require.NoError(t, db.Create(store).Error)
	zone := &DeliveryZone{
		StoreId:  testStoreId,
		Name:     "Төв",
		FeeType:  utils.FeeTypeFlat,
		BaseFee:  decimal.NewFromInt(5000),
		Areas:    "СБД, ХУД",
		IsActive: utils.NewTrue(),
	}
	require.NoError(t, db.Create(zone).Error)
	product := &Product{
		StoreId:    testStoreId,
		Name:       "Гутал",
		Price:      decimal.NewFromInt(45000),
		StockQty:   5,
		TrackStock: utils.NewTrue(),
		IsActive:   utils.NewTrue(),
	}
	require.NoError(t, db.Create(product).Error)
	return &fixture{
		db:      db,
		ctx:     testsupport.UserContext(testStoreId, 1, "Owner"),
		store:   store,
		zone:    zone,
		product: product,
	}
}

func (f *fixture) order(t *testing.T, qty int) *Order {
	t.Helper()
	order, err := CreateOrder(f.ctx, &NewOrder{
		CustomerName:    "Бат",
		CustomerPhone:   "99112233",
		Items:           []NewOrderItem{{ProductId: f.product.ID, Qty: qty}},
		ShippingAddress: "СБД 1-р хороо, 5-р байр",
		Area:            "СБД",
	})
	require.NoError(t, err)
	return order
}

func (f *fixture) driver(t *testing.T, phone string, status DriverStatus) *Driver {
	t.Helper()
	driver, err := CreateDriver(f.ctx, &NewDriver{
		Name:              "Болд Дорж",
		Phone:             phone,
		Password:          "secret123",
		CommissionFlat:    decimal.NewFromInt(1000),
		CommissionPercent: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&Driver{}).Where("id = ?", driver.ID).UpdateColumn("status", status).Error)
	driver.Status = status
	return driver
}

func (f *fixture) delivery(t *testing.T) *Delivery {
	t.Helper()
	order := f.order(t, 1)
	delivery, err := CreateDelivery(f.ctx, &NewDelivery{OrderId: order.ID})
	require.NoError(t, err)
	return delivery
}

func (f *fixture) reload(t *testing.T, dest interface{}, id int) {
	t.Helper()
	require.NoError(t, f.db.Where("id = ?", id).Take(dest).Error)
}

func (f *fixture) outboxTypes(t *testing.T, referenceType string, referenceId int) []string {
	t.Helper()
	var rows []OutboxMessage
	require.NoError(t, f.db.Where("reference_type = ? AND reference_id = ?", referenceType, referenceId).
		Order("id").Find(&rows).Error)
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.EventType)
	}
	return out
}
