package models

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrInvalidOrderTransition = errors.New("order status change is not allowed")

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:      {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing:      {OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:          {OrderStatusOutForDelivery, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusOutForDelivery: {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusCompleted:      {},
	OrderStatusCancelled:      {},
}

func (s OrderStatus) IsValid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) CanMoveTo(next OrderStatus) bool {
	for _, n := range orderTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

type Order struct {
	ID              int             `gorm:"primary_key" json:"id"`
	StoreId         string          `gorm:"size:64;not null;index;uniqueIndex:idx_order_store_seq,priority:1" json:"store_id"`
	SequenceNo      int64           `gorm:"not null;uniqueIndex:idx_order_store_seq,priority:2" json:"sequence_no"`
	OrderNumber     string          `gorm:"size:20;not null;index" json:"order_number"`
	CustomerId      *int            `gorm:"index" json:"customer_id"`
	CustomerName    string          `gorm:"size:100" json:"customer_name"`
	CustomerPhone   string          `gorm:"size:20" json:"customer_phone"`
	Status          OrderStatus     `gorm:"size:20;not null;default:pending;index" json:"status"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	DeliveryFee     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"delivery_fee"`
	Total           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total"`
	DeliveryZoneId  *int            `json:"delivery_zone_id"`
	ShippingAddress string          `gorm:"type:text" json:"shipping_address"`
	Area            string          `gorm:"size:100" json:"area"`
	Latitude        *float64        `json:"latitude"`
	Longitude       *float64        `json:"longitude"`
	Express         bool            `gorm:"not null;default:false" json:"express"`
	Notes           string          `gorm:"type:text" json:"notes"`
	CancelReason    string          `gorm:"type:text" json:"cancel_reason,omitempty"`
	Items           []OrderItem     `gorm:"foreignKey:OrderId" json:"items,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type OrderItem struct {
	ID          int             `gorm:"primary_key" json:"id"`
	StoreId     string          `gorm:"size:64;not null;index" json:"store_id"`
	OrderId     int             `gorm:"not null;index" json:"order_id"`
	ProductId   int             `gorm:"not null;index" json:"product_id"`
	ProductName string          `gorm:"size:150;not null" json:"product_name"`
	Qty         int             `gorm:"not null" json:"qty"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
}

type NewOrderItem struct {
	ProductId int `json:"product_id" binding:"required"`
	Qty       int `json:"qty" binding:"required,gt=0"`
}

type NewOrder struct {
	CustomerId      *int           `json:"customer_id"`
	CustomerName    string         `json:"customer_name" binding:"max=100"`
	CustomerPhone   string         `json:"customer_phone"`
	Items           []NewOrderItem `json:"items" binding:"required,min=1,dive"`
	ShippingAddress string         `json:"shipping_address"`
	Area            string         `json:"area"`
	Latitude        *float64       `json:"latitude" binding:"omitempty,gte=-90,lte=90"`
	Longitude       *float64       `json:"longitude" binding:"omitempty,gte=-180,lte=180"`
	DeliveryZoneId  *int           `json:"delivery_zone_id"`
	Express         bool           `json:"express"`
	Notes           string         `json:"notes"`
}

// FormatOrderNumber renders a sequence as ORD-000123.
func FormatOrderNumber(seq int64) string {
	return fmt.Sprintf("ORD-%06d", seq)
}

var orderNumberDigits = regexp.MustCompile(`\d+`)

// parseOrderNumber accepts "ORD-000123", "#123" or "123".
func parseOrderNumber(number string) (int64, bool) {
	digits := orderNumberDigits.FindString(strings.TrimSpace(number))
	if digits == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (input *NewOrder) wantsDelivery() bool {
	return strings.TrimSpace(input.ShippingAddress) != "" || input.Latitude != nil || input.DeliveryZoneId != nil || input.Area != ""
}

// mergeItems folds repeated products into one line.
func (input *NewOrder) mergeItems() []NewOrderItem {
	qty := make(map[int]int)
	var order []int
	for _, item := range input.Items {
		if _, ok := qty[item.ProductId]; !ok {
			order = append(order, item.ProductId)
		}
		qty[item.ProductId] += item.Qty
	}
	merged := make([]NewOrderItem, 0, len(order))
	for _, id := range order {
		merged = append(merged, NewOrderItem{ProductId: id, Qty: qty[id]})
	}
	return merged
}

func (input *NewOrder) validate(ctx context.Context, storeId string) error {
	if len(input.Items) == 0 {
		return utils.NewValidationError("order needs at least one item")
	}
	for _, item := range input.Items {
		if item.Qty <= 0 {
			return utils.NewValidationError("qty must be positive")
		}
	}
	if input.CustomerId != nil {
		if err := utils.ValidateResourceId[Customer](ctx, storeId, *input.CustomerId); err != nil {
			return errors.New("customer not found")
		}
	}
	if input.CustomerPhone != "" {
		phone, err := utils.NormalizePhoneNumber(input.CustomerPhone, "")
		if err != nil {
			return err
		}
		input.CustomerPhone = phone
	}
	return nil
}

func CreateOrder(ctx context.Context, input *NewOrder) (*Order, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, storeId); err != nil {
		return nil, err
	}
	lines := input.mergeItems()

	productIds := make([]int, 0, len(lines))
	for _, l := range lines {
		productIds = append(productIds, l.ProductId)
	}
	var products []*Product
	if err := config.GetDB().WithContext(ctx).
		Where("store_id = ? AND id IN ? AND is_active = ?", storeId, productIds, true).
		Find(&products).Error; err != nil {
		return nil, err
	}
	byId := make(map[int]*Product, len(products))
	for _, p := range products {
		byId[p.ID] = p
	}

	order := Order{
		StoreId:         storeId,
		CustomerId:      input.CustomerId,
		CustomerName:    strings.TrimSpace(input.CustomerName),
		CustomerPhone:   input.CustomerPhone,
		Status:          OrderStatusPending,
		ShippingAddress: input.ShippingAddress,
		Area:            strings.TrimSpace(input.Area),
		Latitude:        input.Latitude,
		Longitude:       input.Longitude,
		Express:         input.Express,
		Notes:           input.Notes,
	}
	subtotal := decimal.Zero
	for _, l := range lines {
		p, ok := byId[l.ProductId]
		if !ok {
			return nil, fmt.Errorf("product %d not found or inactive", l.ProductId)
		}
		if !p.InStock(l.Qty) {
			return nil, fmt.Errorf("%w for %s", ErrInsufficientStock, p.Name)
		}
		amount := p.Price.Mul(decimal.NewFromInt(int64(l.Qty)))
		subtotal = subtotal.Add(amount)
		order.Items = append(order.Items, OrderItem{
			StoreId:     storeId,
			ProductId:   p.ID,
			ProductName: p.Name,
			Qty:         l.Qty,
			UnitPrice:   p.Price,
			Amount:      amount,
		})
	}
	order.Subtotal = subtotal

	if input.wantsDelivery() {
		quote, err := QuoteDeliveryFee(ctx, QuoteInput{
			ZoneId:    input.DeliveryZoneId,
			Area:      input.Area,
			Latitude:  input.Latitude,
			Longitude: input.Longitude,
			Subtotal:  subtotal,
			Express:   input.Express,
		})
		if err != nil {
			return nil, err
		}
		order.DeliveryFee = quote.Total
		order.DeliveryZoneId = &quote.ZoneId
	}
	order.Total = order.Subtotal.Add(order.DeliveryFee)

	release, err := utils.StoreLock(ctx, "order", storeId, 10*time.Second, "Order", "CreateOrder")
	if err != nil {
		return nil, err
	}
	defer release()

	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if order.CustomerId == nil && order.CustomerPhone != "" {
			customer, err := findOrCreateCustomerByPhone(tx, storeId, order.CustomerName, order.CustomerPhone)
			if err != nil {
				return err
			}
			order.CustomerId = &customer.ID
			if order.CustomerName == "" {
				order.CustomerName = customer.Name
			}
		}
		seq, err := utils.NextSequence[Order](ctx, tx, storeId)
		if err != nil {
			return err
		}
		order.SequenceNo = seq
		order.OrderNumber = FormatOrderNumber(seq)
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		for _, item := range order.Items {
			if err := reserveStock(tx, storeId, item.ProductId, item.Qty); err != nil {
				return err
			}
		}
		return createHistory(tx, "*CREATE*", order.ID, "orders", nil, nil, "created order "+order.OrderNumber)
	})
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		if err := RemoveRedisBoth(*p); err != nil {
			config.LogError(config.GetLogger(), "Order", "CreateOrder", "clear product cache", p.ID, err)
		}
	}
	return &order, nil
}

func GetOrder(ctx context.Context, id int) (*Order, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[Order](ctx, storeId, id, "Items")
}

// GetOrderByNumber finds an order by "ORD-000123", "#123" or "123".
func GetOrderByNumber(ctx context.Context, storeId string, number string) (*Order, error) {
	if storeId == "" {
		return nil, utils.ErrorStoreIdRequired
	}
	seq, ok := parseOrderNumber(number)
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	var order Order
	err := config.GetDB().WithContext(ctx).
		Where("store_id = ? AND sequence_no = ?", storeId, seq).
		Preload("Items").
		Take(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &order, nil
}

type OrderFilter struct {
	Status     *OrderStatus
	CustomerId *int
}

func PaginateOrders(ctx context.Context, limit int, after *string, filter OrderFilter) (*Connection[Order], error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Where("store_id = ?", storeId)
	if filter.Status != nil {
		dbCtx = dbCtx.Where("status = ?", *filter.Status)
	}
	if filter.CustomerId != nil {
		dbCtx = dbCtx.Where("customer_id = ?", *filter.CustomerId)
	}
	return FetchPageById[Order](dbCtx, limit, after)
}

// UpdateOrderStatus moves an order along its status graph. Cancelling restores
// reserved stock and is refused while a delivery is still open; an order out
// for delivery can only be cancelled after its last delivery failed.
func UpdateOrderStatus(ctx context.Context, id int, status OrderStatus, reason string) (*Order, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	if !status.IsValid() {
		return nil, utils.NewValidationError("invalid order status")
	}
	order, err := utils.FetchModel[Order](ctx, storeId, id, "Items")
	if err != nil {
		return nil, err
	}
	if !order.Status.CanMoveTo(status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidOrderTransition, order.Status, status)
	}

	from := order.Status
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if status == OrderStatusCancelled {
			var open int64
			if err := tx.Model(&Delivery{}).
				Where("store_id = ? AND order_id = ? AND status NOT IN ?", storeId, id,
					[]DeliveryStatus{DeliveryStatusDelivered, DeliveryStatusCancelled, DeliveryStatusFailed}).
				Count(&open).Error; err != nil {
				return err
			}
			if open > 0 {
				return utils.NewValidationError("cancel the open delivery first")
			}
			// once out for delivery, only a failed last attempt lets the order go
			if from == OrderStatusOutForDelivery {
				var latest Delivery
				err := tx.Select("id", "status").
					Where("store_id = ? AND order_id = ?", storeId, id).
					Order("id DESC").
					Take(&latest).Error
				if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				}
				if latest.Status != DeliveryStatusFailed {
					return fmt.Errorf("%w: %s to %s", ErrInvalidOrderTransition, from, status)
				}
			}
		}
		res := tx.Model(&Order{}).
			Where("id = ? AND store_id = ? AND status = ?", id, storeId, from).
			Updates(map[string]interface{}{"status": status, "cancel_reason": reason})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidOrderTransition
		}
		if status == OrderStatusCancelled {
			for _, item := range order.Items {
				if err := restoreStock(tx, storeId, item.ProductId, item.Qty); err != nil {
					return err
				}
			}
		}
		return createHistory(tx, "*UPDATE*", id, "orders", from, status, fmt.Sprintf("order %s: %s -> %s", order.OrderNumber, from, status))
	})
	if err != nil {
		return nil, err
	}
	order.Status = status
	order.CancelReason = reason
	return order, nil
}

// syncOrderStatus follows a delivery transition; it only moves forward from
// the listed source statuses and is a no-op otherwise.
func syncOrderStatus(tx *gorm.DB, storeId string, orderId int, to OrderStatus, from ...OrderStatus) error {
	return tx.Model(&Order{}).
		Where("id = ? AND store_id = ? AND status IN ?", orderId, storeId, from).
		UpdateColumn("status", to).Error
}
