package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"gorm.io/gorm"
)

// DeliveryEvent is one row of a delivery's status timeline.
type DeliveryEvent struct {
	ID         int            `gorm:"primary_key" json:"id"`
	StoreId    string         `gorm:"size:64;not null;index" json:"store_id"`
	DeliveryId int            `gorm:"not null;index" json:"delivery_id"`
	FromStatus DeliveryStatus `gorm:"size:20" json:"from_status"`
	ToStatus   DeliveryStatus `gorm:"size:20;not null" json:"to_status"`
	Note       string         `gorm:"type:text" json:"note"`
	ActorType  ActorType      `gorm:"size:10;not null" json:"actor_type"`
	ActorId    int            `json:"actor_id"`
	ActorName  string         `gorm:"size:100" json:"actor_name"`
	Lat        *float64       `json:"lat"`
	Lng        *float64       `json:"lng"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// DeliveryEventPayload is the outbox body of every delivery.* event.
type DeliveryEventPayload struct {
	DeliveryId    int            `json:"delivery_id"`
	OrderId       int            `json:"order_id"`
	DriverId      *int           `json:"driver_id,omitempty"`
	TrackingCode  string         `json:"tracking_code"`
	FromStatus    DeliveryStatus `json:"from_status,omitempty"`
	ToStatus      DeliveryStatus `json:"to_status"`
	Note          string         `json:"note,omitempty"`
	DeliveryFee   string         `json:"delivery_fee"`
	DriverEarning string         `json:"driver_earning"`
	Attempts      int            `json:"attempts"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

func recordDeliveryEvent(tx *gorm.DB, d *Delivery, from DeliveryStatus, note string, lat, lng *float64) error {
	ctx := tx.Statement.Context
	who := actorFromContext(ctx)
	event := DeliveryEvent{
		StoreId:    d.StoreId,
		DeliveryId: d.ID,
		FromStatus: from,
		ToStatus:   d.Status,
		Note:       note,
		ActorType:  who.Type,
		ActorId:    who.Id,
		ActorName:  who.Name,
		Lat:        lat,
		Lng:        lng,
	}
	if err := tx.Create(&event).Error; err != nil {
		return err
	}
	payload := DeliveryEventPayload{
		DeliveryId:    d.ID,
		OrderId:       d.OrderId,
		DriverId:      d.DriverId,
		TrackingCode:  d.TrackingCode,
		FromStatus:    from,
		ToStatus:      d.Status,
		Note:          note,
		DeliveryFee:   d.DeliveryFee.String(),
		DriverEarning: d.DriverEarning.String(),
		Attempts:      d.Attempts,
		OccurredAt:    event.CreatedAt,
	}
	eventType := DeliveryEventType(d.Status)
	if from == "" {
		eventType = EventDeliveryCreated
	}
	return enqueueOutbox(tx, eventType, "deliveries", d.ID, payload)
}

func GetDeliveryEvents(ctx context.Context, deliveryId int) ([]*DeliveryEvent, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	var events []*DeliveryEvent
	err = config.GetDB().WithContext(ctx).
		Where("store_id = ? AND delivery_id = ?", storeId, deliveryId).
		Order("id").
		Find(&events).Error
	return events, err
}
