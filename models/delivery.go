package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/segmentio/ksuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const driverLocationTTL = 10 * time.Minute

type Delivery struct {
	ID                int             `gorm:"primary_key" json:"id"`
	StoreId           string          `gorm:"size:64;not null;index;index:idx_delivery_store_status,priority:1" json:"store_id"`
	OrderId           int             `gorm:"not null;index" json:"order_id"`
	DriverId          *int            `gorm:"index" json:"driver_id"`
	ZoneId            *int            `gorm:"index" json:"zone_id"`
	TrackingCode      string          `gorm:"size:40;not null;uniqueIndex" json:"tracking_code"`
	Status            DeliveryStatus  `gorm:"size:20;not null;default:pending;index:idx_delivery_store_status,priority:2" json:"status"`
	PickupAddress     string          `gorm:"type:text" json:"pickup_address"`
	DropoffAddress    string          `gorm:"type:text" json:"dropoff_address"`
	DropoffLat        *float64        `json:"dropoff_lat"`
	DropoffLng        *float64        `json:"dropoff_lng"`
	RecipientName     string          `gorm:"size:100" json:"recipient_name"`
	RecipientPhone    string          `gorm:"size:20" json:"recipient_phone"`
	DeliveryFee       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"delivery_fee"`
	DriverEarning     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"driver_earning"`
	DistanceKm        float64         `gorm:"default:0" json:"distance_km"`
	EtaMinutes        int             `gorm:"default:0" json:"eta_minutes"`
	Attempts          int             `gorm:"not null;default:1" json:"attempts"`
	ScheduledAt       *time.Time      `json:"scheduled_at"`
	AssignedAt        *time.Time      `json:"assigned_at"`
	PickedUpAt        *time.Time      `json:"picked_up_at"`
	InTransitAt       *time.Time      `json:"in_transit_at"`
	DeliveredAt       *time.Time      `json:"delivered_at"`
	FailedAt          *time.Time      `json:"failed_at"`
	CancelledAt       *time.Time      `json:"cancelled_at"`
	DelayReason       string          `gorm:"type:text" json:"delay_reason"`
	FailureReason     string          `gorm:"type:text" json:"failure_reason"`
	CancelReason      string          `gorm:"type:text" json:"cancel_reason"`
	ProofPhotoUrl     string          `gorm:"type:text" json:"proof_photo_url"`
	ProofThumbnailUrl string          `gorm:"type:text" json:"proof_thumbnail_url"`
	LastLat           *float64        `json:"last_lat"`
	LastLng           *float64        `json:"last_lng"`
	LastLocationAt    *time.Time      `json:"last_location_at"`
	Notes             string          `gorm:"type:text" json:"notes"`
	CreatedAt         time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewDelivery struct {
	OrderId        int        `json:"order_id" binding:"required"`
	ZoneId         *int       `json:"zone_id"`
	DropoffAddress string     `json:"dropoff_address"`
	DropoffLat     *float64   `json:"dropoff_lat" binding:"omitempty,gte=-90,lte=90"`
	DropoffLng     *float64   `json:"dropoff_lng" binding:"omitempty,gte=-180,lte=180"`
	RecipientName  string     `json:"recipient_name" binding:"max=100"`
	RecipientPhone string     `json:"recipient_phone"`
	ScheduledAt    *time.Time `json:"scheduled_at"`
	Notes          string     `json:"notes"`
}

type DriverLocation struct {
	Lat float64   `json:"lat"`
	Lng float64   `json:"lng"`
	At  time.Time `json:"at"`
}

func driverLocationKey(deliveryId int) string {
	return fmt.Sprintf("DriverLocation:%d", deliveryId)
}

func newTrackingCode() string {
	return ksuid.New().String()
}

// CreateDelivery opens a delivery for an order. Address, recipient and fee
// default to the order's own values.
func CreateDelivery(ctx context.Context, input *NewDelivery) (*Delivery, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	store, err := GetStoreById(ctx, storeId)
	if err != nil {
		return nil, err
	}
	order, err := utils.FetchModel[Order](ctx, storeId, input.OrderId)
	if err != nil {
		return nil, err
	}
	if order.Status == OrderStatusCancelled || order.Status == OrderStatusCompleted {
		return nil, utils.NewValidationError("order is " + string(order.Status))
	}

	delivery := Delivery{
		StoreId:        storeId,
		OrderId:        order.ID,
		TrackingCode:   newTrackingCode(),
		Status:         DeliveryStatusPending,
		PickupAddress:  store.Address,
		DropoffAddress: firstNonEmpty(input.DropoffAddress, order.ShippingAddress),
		DropoffLat:     order.Latitude,
		DropoffLng:     order.Longitude,
		RecipientName:  firstNonEmpty(input.RecipientName, order.CustomerName),
		RecipientPhone: firstNonEmpty(input.RecipientPhone, order.CustomerPhone),
		Attempts:       1,
		ScheduledAt:    input.ScheduledAt,
		Notes:          input.Notes,
	}
	if input.DropoffLat != nil || input.DropoffLng != nil {
		delivery.DropoffLat, delivery.DropoffLng = input.DropoffLat, input.DropoffLng
	}
	if delivery.RecipientPhone != "" {
		phone, err := utils.NormalizePhoneNumber(delivery.RecipientPhone, "")
		if err != nil {
			return nil, err
		}
		delivery.RecipientPhone = phone
	}
	if strings.TrimSpace(delivery.DropoffAddress) == "" && delivery.DropoffLat == nil {
		return nil, utils.NewValidationError("dropoff address is required")
	}

	zoneId := input.ZoneId
	if zoneId == nil {
		zoneId = order.DeliveryZoneId
	}
	quote, err := QuoteDeliveryFee(ctx, QuoteInput{
		ZoneId:    zoneId,
		Area:      order.Area,
		Latitude:  delivery.DropoffLat,
		Longitude: delivery.DropoffLng,
		Subtotal:  order.Subtotal,
		Express:   order.Express,
	})
	if err != nil {
		return nil, err
	}
	delivery.ZoneId = &quote.ZoneId
	delivery.DistanceKm = quote.DistanceKm
	delivery.EtaMinutes = quote.EtaMinutes
	delivery.DeliveryFee = quote.Total
	if order.DeliveryZoneId != nil && input.ZoneId == nil {
		// the customer was charged at order time
		delivery.DeliveryFee = order.DeliveryFee
	}

	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		if err := tx.Model(&Delivery{}).
			Where("store_id = ? AND order_id = ? AND status <> ?", storeId, order.ID, DeliveryStatusCancelled).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return utils.NewValidationError("order already has an open delivery")
		}
		if err := tx.Create(&delivery).Error; err != nil {
			return err
		}
		return recordDeliveryEvent(tx, &delivery, "", "created for "+order.OrderNumber, nil, nil)
	})
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// GetDelivery loads a delivery of the store; a driver only sees their own.
func GetDelivery(ctx context.Context, id int) (*Delivery, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	delivery, err := utils.FetchModel[Delivery](ctx, storeId, id)
	if err != nil {
		return nil, err
	}
	if driverId, ok := utils.GetDriverIdFromContext(ctx); ok {
		if delivery.DriverId == nil || *delivery.DriverId != driverId {
			return nil, utils.ErrorRecordNotFound
		}
	}
	return delivery, nil
}

func GetDeliveryByTrackingCode(ctx context.Context, storeId string, code string) (*Delivery, error) {
	var delivery Delivery
	q := config.GetDB().WithContext(ctx).Where("tracking_code = ?", strings.TrimSpace(code))
	if storeId != "" {
		q = q.Where("store_id = ?", storeId)
	}
	if err := q.Take(&delivery).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &delivery, nil
}

// GetLatestDeliveryForOrder returns the most recent delivery of an order.
func GetLatestDeliveryForOrder(ctx context.Context, storeId string, orderId int) (*Delivery, error) {
	var delivery Delivery
	err := config.GetDB().WithContext(ctx).
		Where("store_id = ? AND order_id = ?", storeId, orderId).
		Order("id DESC").
		Take(&delivery).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &delivery, nil
}

func GetDeliveriesByIds(ctx context.Context, storeId string, ids []int) ([]*Delivery, error) {
	return utils.FetchModelsByIds[Delivery](ctx, storeId, ids)
}

type DeliveryFilter struct {
	Status   *DeliveryStatus
	DriverId *int
	From     *time.Time
	To       *time.Time
}

func PaginateDeliveries(ctx context.Context, limit int, after *string, filter DeliveryFilter) (*Connection[Delivery], error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Where("store_id = ?", storeId)
	if driverId, ok := utils.GetDriverIdFromContext(ctx); ok {
		filter.DriverId = &driverId
	}
	if filter.Status != nil {
		dbCtx = dbCtx.Where("status = ?", *filter.Status)
	}
	if filter.DriverId != nil {
		dbCtx = dbCtx.Where("driver_id = ?", *filter.DriverId)
	}
	if filter.From != nil {
		dbCtx = dbCtx.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		dbCtx = dbCtx.Where("created_at < ?", *filter.To)
	}
	return FetchPageById[Delivery](dbCtx, limit, after)
}

// ListDriverDeliveries is the driver portal's work list: open deliveries,
// plus the last day's closed ones when includeClosed is set.
func ListDriverDeliveries(ctx context.Context, includeClosed bool) ([]*Delivery, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	driverId, ok := utils.GetDriverIdFromContext(ctx)
	if !ok {
		return nil, utils.ErrorUnauthorized
	}
	open := []DeliveryStatus{DeliveryStatusAssigned, DeliveryStatusPickedUp, DeliveryStatusInTransit, DeliveryStatusDelayed}
	q := config.GetDB().WithContext(ctx).Where("store_id = ? AND driver_id = ?", storeId, driverId)
	if includeClosed {
		since := time.Now().UTC().Add(-24 * time.Hour)
		q = q.Where("status IN ? OR (status IN ? AND updated_at >= ?)", open,
			[]DeliveryStatus{DeliveryStatusDelivered, DeliveryStatusFailed}, since)
	} else {
		q = q.Where("status IN ?", open)
	}
	var results []*Delivery
	err = q.Order("id DESC").Find(&results).Error
	return results, err
}

// UpdateDriverLocation stores the carrier's last position while the parcel is moving.
func UpdateDriverLocation(ctx context.Context, id int, lat float64, lng float64) (*DriverLocation, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	driverId, ok := utils.GetDriverIdFromContext(ctx)
	if !ok {
		return nil, utils.ErrorUnauthorized
	}
	p := utils.LatLng{Lat: lat, Lng: lng}
	if !p.Valid() {
		return nil, utils.NewValidationError("invalid coordinates")
	}
	now := time.Now().UTC()
	res := config.GetDB().WithContext(ctx).Model(&Delivery{}).
		Where("id = ? AND store_id = ? AND driver_id = ? AND status IN ?", id, storeId, driverId, activeDeliveryStatuses()).
		Updates(map[string]interface{}{
			"last_lat":         lat,
			"last_lng":         lng,
			"last_location_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrDeliveryStatusConflict
	}
	loc := DriverLocation{Lat: lat, Lng: lng, At: now}
	if err := config.SetRedisObject(driverLocationKey(id), loc, driverLocationTTL); err != nil {
		config.LogError(config.GetLogger(), "Delivery", "UpdateDriverLocation", "cache location", id, err)
	}
	if err := config.GetDB().WithContext(ctx).Model(&Driver{}).
		Where("id = ? AND store_id = ?", driverId, storeId).
		UpdateColumn("last_seen_at", now).Error; err != nil {
		config.LogError(config.GetLogger(), "Delivery", "UpdateDriverLocation", "touch driver", driverId, err)
	}
	return &loc, nil
}

// AttachProofPhoto records the proof-of-delivery image while the parcel is with the driver.
func AttachProofPhoto(ctx context.Context, id int, url string, thumbnailUrl string) (*Delivery, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(url) == "" {
		return nil, utils.NewValidationError("photo url is required")
	}
	delivery, err := GetDelivery(ctx, id)
	if err != nil {
		return nil, err
	}
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&Delivery{}).
			Where("id = ? AND store_id = ? AND status IN ?", id, storeId, activeDeliveryStatuses())
		if driverId, ok := utils.GetDriverIdFromContext(ctx); ok {
			q = q.Where("driver_id = ?", driverId)
		}
		res := q.Updates(map[string]interface{}{
			"proof_photo_url":     url,
			"proof_thumbnail_url": thumbnailUrl,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrDeliveryStatusConflict
		}
		return createHistory(tx, "*UPDATE*", id, "deliveries", nil, url, "attached proof photo")
	})
	if err != nil {
		return nil, err
	}
	delivery.ProofPhotoUrl = url
	delivery.ProofThumbnailUrl = thumbnailUrl
	return delivery, nil
}

type TrackingEvent struct {
	Status DeliveryStatus `json:"status"`
	At     time.Time      `json:"at"`
}

// TrackingInfo is the public view of a delivery; it carries no recipient data.
type TrackingInfo struct {
	TrackingCode    string          `json:"tracking_code"`
	Status          DeliveryStatus  `json:"status"`
	StoreName       string          `json:"store_name"`
	DriverFirstName string          `json:"driver_first_name,omitempty"`
	EtaMinutes      int             `json:"eta_minutes"`
	LastLat         *float64        `json:"last_lat,omitempty"`
	LastLng         *float64        `json:"last_lng,omitempty"`
	LastLocationAt  *time.Time      `json:"last_location_at,omitempty"`
	Timeline        []TrackingEvent `json:"timeline"`
}

func TrackDelivery(ctx context.Context, trackingCode string) (*TrackingInfo, error) {
	trackingCode = strings.TrimSpace(trackingCode)
	if trackingCode == "" {
		return nil, utils.ErrorRecordNotFound
	}
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)
	delivery, err := GetDeliveryByTrackingCode(ctx, "", trackingCode)
	if err != nil {
		return nil, err
	}
	store, err := GetStoreById(ctx, delivery.StoreId)
	if err != nil {
		return nil, err
	}
	info := TrackingInfo{
		TrackingCode: delivery.TrackingCode,
		Status:       delivery.Status,
		StoreName:    store.Name,
		EtaMinutes:   delivery.EtaMinutes,
	}
	if delivery.DriverId != nil {
		var driver Driver
		if err := config.GetDB().WithContext(ctx).Select("id", "name").
			Where("id = ? AND store_id = ?", *delivery.DriverId, delivery.StoreId).
			Take(&driver).Error; err == nil {
			info.DriverFirstName = utils.FirstName(driver.Name)
		}
	}
	if delivery.Status.IsActive() {
		var loc DriverLocation
		if ok, _ := config.GetRedisObject(driverLocationKey(delivery.ID), &loc); ok {
			info.LastLat, info.LastLng, info.LastLocationAt = &loc.Lat, &loc.Lng, &loc.At
		} else {
			info.LastLat, info.LastLng, info.LastLocationAt = delivery.LastLat, delivery.LastLng, delivery.LastLocationAt
		}
	}

	var events []*DeliveryEvent
	if err := config.GetDB().WithContext(ctx).
		Where("store_id = ? AND delivery_id = ?", delivery.StoreId, delivery.ID).
		Order("id").
		Find(&events).Error; err != nil {
		return nil, err
	}
	info.Timeline = make([]TrackingEvent, 0, len(events))
	for _, e := range events {
		info.Timeline = append(info.Timeline, TrackingEvent{Status: e.ToStatus, At: e.CreatedAt})
	}
	return &info, nil
}
