package models

import (
	"testing"

	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderNumber(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"ORD-000123", 123, true},
		{"#45", 45, true},
		{" 7 ", 7, true},
		{"ORD-", 0, false},
		{"0", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseOrderNumber(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseOrderNumber(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
	assert.Equal(t, "ORD-000123", FormatOrderNumber(123))
}

func TestCreateOrder_ReservesStockAndNumbers(t *testing.T) {
	f := newFixture(t)
	first := f.order(t, 2)
	second, err := CreateOrder(f.ctx, &NewOrder{
		Items: []NewOrderItem{
			{ProductId: f.product.ID, Qty: 1},
			{ProductId: f.product.ID, Qty: 1},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "ORD-000001", first.OrderNumber)
	assert.Equal(t, "ORD-000002", second.OrderNumber)
	require.Len(t, second.Items, 1)
	assert.Equal(t, 2, second.Items[0].Qty)
	assert.True(t, decimal.NewFromInt(90000).Equal(second.Total))
	assert.True(t, second.DeliveryFee.IsZero())
	assert.Nil(t, second.DeliveryZoneId)

	require.NotNil(t, first.CustomerId)
	var customer Customer
	f.reload(t, &customer, *first.CustomerId)
	assert.Equal(t, "+97699112233", customer.Phone)

	var product Product
	f.reload(t, &product, f.product.ID)
	assert.Equal(t, 1, product.StockQty)

	_, err = CreateOrder(f.ctx, &NewOrder{Items: []NewOrderItem{{ProductId: f.product.ID, Qty: 2}}})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	found, err := GetOrderByNumber(f.ctx, testStoreId, "#2")
	require.NoError(t, err)
	assert.Equal(t, second.ID, found.ID)
	_, err = GetOrderByNumber(f.ctx, testStoreId, "ORD-000999")
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)
}

func TestUpdateOrderStatus_GraphAndCancelRestoresStock(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, 3)

	_, err := UpdateOrderStatus(f.ctx, order.ID, OrderStatusCompleted, "")
	assert.ErrorIs(t, err, ErrInvalidOrderTransition)

	updated, err := UpdateOrderStatus(f.ctx, order.ID, OrderStatusConfirmed, "")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusConfirmed, updated.Status)

	d, err := CreateDelivery(f.ctx, &NewDelivery{OrderId: order.ID})
	require.NoError(t, err)
	_, err = UpdateOrderStatus(f.ctx, order.ID, OrderStatusCancelled, "out of stock")
	assert.True(t, utils.IsValidationError(err))

	_, err = CancelDelivery(f.ctx, d.ID, "order cancelled")
	require.NoError(t, err)
	updated, err = UpdateOrderStatus(f.ctx, order.ID, OrderStatusCancelled, "out of stock")
	require.NoError(t, err)
	assert.Equal(t, "out of stock", updated.CancelReason)

	var product Product
	f.reload(t, &product, f.product.ID)
	assert.Equal(t, 5, product.StockQty)

	_, err = CreateDelivery(f.ctx, &NewDelivery{OrderId: order.ID})
	assert.True(t, utils.IsValidationError(err))
}
