package models

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrDeliveryStatusConflict    = errors.New("delivery was changed concurrently, reload and retry")
	ErrInvalidDeliveryTransition = errors.New("delivery status change is not allowed")
	ErrProofPhotoRequired        = errors.New("proof photo is required before marking delivered")
	ErrMaxAttemptsReached        = errors.New("maximum delivery attempts reached")
)

// allowed next statuses; delivered and cancelled are terminal
var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryStatusPending:   {DeliveryStatusAssigned, DeliveryStatusCancelled},
	DeliveryStatusAssigned:  {DeliveryStatusPickedUp, DeliveryStatusPending, DeliveryStatusCancelled},
	DeliveryStatusPickedUp:  {DeliveryStatusInTransit, DeliveryStatusFailed},
	DeliveryStatusInTransit: {DeliveryStatusDelayed, DeliveryStatusDelivered, DeliveryStatusFailed},
	DeliveryStatusDelayed:   {DeliveryStatusInTransit, DeliveryStatusDelivered, DeliveryStatusFailed},
	DeliveryStatusFailed:    {DeliveryStatusPending},
	DeliveryStatusDelivered: {},
	DeliveryStatusCancelled: {},
}

var deliveryStatusOrder = []DeliveryStatus{
	DeliveryStatusPending, DeliveryStatusAssigned, DeliveryStatusPickedUp, DeliveryStatusInTransit,
	DeliveryStatusDelayed, DeliveryStatusDelivered, DeliveryStatusFailed, DeliveryStatusCancelled,
}

// statuses a driver may move their own delivery into
var driverTargets = map[DeliveryStatus]bool{
	DeliveryStatusPickedUp:  true,
	DeliveryStatusInTransit: true,
	DeliveryStatusDelayed:   true,
	DeliveryStatusDelivered: true,
	DeliveryStatusFailed:    true,
}

func (s DeliveryStatus) CanMoveTo(next DeliveryStatus) bool {
	for _, n := range deliveryTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// sourcesOf lists the statuses that may move into to.
func sourcesOf(to DeliveryStatus) []DeliveryStatus {
	var out []DeliveryStatus
	for _, s := range deliveryStatusOrder {
		if s.CanMoveTo(to) {
			out = append(out, s)
		}
	}
	return out
}

func activeDeliveryStatuses() []DeliveryStatus {
	return []DeliveryStatus{DeliveryStatusPickedUp, DeliveryStatusInTransit, DeliveryStatusDelayed}
}

func timestampColumn(to DeliveryStatus) string {
	switch to {
	case DeliveryStatusAssigned:
		return "assigned_at"
	case DeliveryStatusPickedUp:
		return "picked_up_at"
	case DeliveryStatusInTransit:
		return "in_transit_at"
	case DeliveryStatusDelivered:
		return "delivered_at"
	case DeliveryStatusFailed:
		return "failed_at"
	case DeliveryStatusCancelled:
		return "cancelled_at"
	}
	return ""
}

type transition struct {
	to   DeliveryStatus
	note string
	set  map[string]interface{}
	// check runs inside the transaction against the loaded row
	check func(tx *gorm.DB, current *Delivery) error
	// guard narrows the conditional UPDATE
	guard func(q *gorm.DB) *gorm.DB
	after func(tx *gorm.DB, before *Delivery, updated *Delivery) error
}

// runTransition applies one status change: a guarded UPDATE, the timeline
// event, the outbox message and the side effects commit together.
func runTransition(ctx context.Context, id int, t transition) (*Delivery, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	release, err := utils.StoreLock(ctx, "delivery", strconv.Itoa(id), 15*time.Second, "Delivery", "runTransition")
	if err != nil {
		if errors.Is(err, utils.ErrorLockBusy) {
			return nil, ErrDeliveryStatusConflict
		}
		// redis trouble: the guarded update still protects the row
		release = func() {}
	}
	defer release()

	current, err := GetDelivery(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanMoveTo(t.to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidDeliveryTransition, current.Status, t.to)
	}
	driverId, isDriver := utils.GetDriverIdFromContext(ctx)
	if isDriver && !driverTargets[t.to] {
		return nil, utils.ErrorForbidden
	}

	var lat, lng *float64
	if isDriver {
		lat, lng = current.LastLat, current.LastLng
	}

	var updated Delivery
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if t.check != nil {
			if err := t.check(tx, current); err != nil {
				return err
			}
		}
		set := map[string]interface{}{"status": t.to}
		for k, v := range t.set {
			set[k] = v
		}
		if col := timestampColumn(t.to); col != "" {
			set[col] = time.Now().UTC()
		}

		q := tx.Model(&Delivery{}).Where("id = ? AND store_id = ? AND status IN ?", id, storeId, sourcesOf(t.to))
		if isDriver {
			q = q.Where("driver_id = ?", driverId)
		}
		if t.guard != nil {
			q = t.guard(q)
		}
		res := q.Updates(set)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var exists int64
			if err := tx.Model(&Delivery{}).Where("id = ? AND store_id = ?", id, storeId).Count(&exists).Error; err != nil {
				return err
			}
			if exists == 0 {
				return utils.ErrorRecordNotFound
			}
			return ErrDeliveryStatusConflict
		}

		if err := tx.Where("id = ? AND store_id = ?", id, storeId).Take(&updated).Error; err != nil {
			return err
		}
		if err := recordDeliveryEvent(tx, &updated, current.Status, t.note, lat, lng); err != nil {
			return err
		}
		if t.after != nil {
			return t.after(tx, current, &updated)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, d := range []*int{current.DriverId, updated.DriverId} {
		if d != nil {
			clearDriverCache(storeId, *d)
		}
	}
	return &updated, nil
}

func clearDriverCache(storeId string, driverId int) {
	if err := RemoveRedisBoth(Driver{ID: driverId, StoreId: storeId}); err != nil {
		config.LogError(config.GetLogger(), "Delivery", "clearDriverCache", "clear cache", driverId, err)
	}
}

// releaseDriver frees a busy driver once they hold no other open delivery.
func releaseDriver(tx *gorm.DB, storeId string, driverId int, deliveryId int) error {
	open, err := countOpenDeliveries(tx, storeId, driverId, deliveryId)
	if err != nil {
		return err
	}
	if open > 0 {
		return nil
	}
	return tx.Model(&Driver{}).
		Where("id = ? AND store_id = ? AND status = ?", driverId, storeId, DriverStatusBusy).
		UpdateColumn("status", DriverStatusAvailable).Error
}

func releaseAssignedDriver(tx *gorm.DB, before *Delivery, _ *Delivery) error {
	if before.DriverId == nil {
		return nil
	}
	return releaseDriver(tx, before.StoreId, *before.DriverId, before.ID)
}

func requireReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", utils.NewValidationError("reason is required")
	}
	return reason, nil
}

// AssignDriver hands a pending delivery to an active driver who is not offline.
func AssignDriver(ctx context.Context, id int, driverId int) (*Delivery, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	driver, err := utils.FetchModel[Driver](ctx, storeId, driverId)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.NewValidationError("driver not found")
		}
		return nil, err
	}
	return runTransition(ctx, id, transition{
		to:   DeliveryStatusAssigned,
		note: "assigned to " + driver.Name,
		set:  map[string]interface{}{"driver_id": driverId},
		check: func(tx *gorm.DB, _ *Delivery) error {
			// re-read inside the transaction, the driver may have gone offline
			if err := tx.Where("id = ? AND store_id = ?", driverId, storeId).Take(driver).Error; err != nil {
				return err
			}
			if driver.IsActive == nil || !*driver.IsActive || driver.Status == DriverStatusOffline {
				return ErrDriverUnavailable
			}
			return nil
		},
		after: func(tx *gorm.DB, _ *Delivery, updated *Delivery) error {
			earning := driver.EarningFor(updated.DeliveryFee)
			if err := tx.Model(&Delivery{}).Where("id = ? AND store_id = ?", updated.ID, updated.StoreId).
				UpdateColumn("driver_earning", earning).Error; err != nil {
				return err
			}
			updated.DriverEarning = earning
			return tx.Model(&Driver{}).Where("id = ? AND store_id = ?", driver.ID, storeId).
				UpdateColumn("status", DriverStatusBusy).Error
		},
	})
}

// UnassignDriver returns an assigned delivery to the pending pool.
func UnassignDriver(ctx context.Context, id int, reason string) (*Delivery, error) {
	return runTransition(ctx, id, transition{
		to:   DeliveryStatusPending,
		note: strings.TrimSpace(reason),
		set: map[string]interface{}{
			"driver_id":      nil,
			"assigned_at":    nil,
			"driver_earning": decimal.Zero,
		},
		check: func(_ *gorm.DB, current *Delivery) error {
			if current.Status != DeliveryStatusAssigned {
				return fmt.Errorf("%w: %s to %s", ErrInvalidDeliveryTransition, current.Status, DeliveryStatusPending)
			}
			return nil
		},
		guard: func(q *gorm.DB) *gorm.DB { return q.Where("status = ?", DeliveryStatusAssigned) },
		after: releaseAssignedDriver,
	})
}

func MarkPickedUp(ctx context.Context, id int) (*Delivery, error) {
	return runTransition(ctx, id, transition{
		to: DeliveryStatusPickedUp,
		after: func(tx *gorm.DB, _ *Delivery, updated *Delivery) error {
			return syncOrderStatus(tx, updated.StoreId, updated.OrderId, OrderStatusOutForDelivery,
				OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing, OrderStatusReady)
		},
	})
}

func MarkInTransit(ctx context.Context, id int) (*Delivery, error) {
	return runTransition(ctx, id, transition{to: DeliveryStatusInTransit})
}

func MarkDelayed(ctx context.Context, id int, reason string) (*Delivery, error) {
	reason, err := requireReason(reason)
	if err != nil {
		return nil, err
	}
	return runTransition(ctx, id, transition{
		to:   DeliveryStatusDelayed,
		note: reason,
		set:  map[string]interface{}{"delay_reason": reason},
	})
}

// MarkDelivered completes the delivery and its order. With
// DELIVERY_REQUIRE_PROOF_PHOTO on, a proof photo must be attached first.
func MarkDelivered(ctx context.Context, id int) (*Delivery, error) {
	requireProof := config.DeliveryRequiresProofPhoto()
	return runTransition(ctx, id, transition{
		to: DeliveryStatusDelivered,
		check: func(_ *gorm.DB, current *Delivery) error {
			if requireProof && current.ProofPhotoUrl == "" {
				return ErrProofPhotoRequired
			}
			return nil
		},
		guard: func(q *gorm.DB) *gorm.DB {
			if requireProof {
				return q.Where("proof_photo_url <> ''")
			}
			return q
		},
		after: func(tx *gorm.DB, before *Delivery, updated *Delivery) error {
			if err := syncOrderStatus(tx, updated.StoreId, updated.OrderId, OrderStatusCompleted,
				OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing, OrderStatusReady, OrderStatusOutForDelivery); err != nil {
				return err
			}
			return releaseAssignedDriver(tx, before, updated)
		},
	})
}

func MarkFailed(ctx context.Context, id int, reason string) (*Delivery, error) {
	reason, err := requireReason(reason)
	if err != nil {
		return nil, err
	}
	return runTransition(ctx, id, transition{
		to:    DeliveryStatusFailed,
		note:  reason,
		set:   map[string]interface{}{"failure_reason": reason},
		after: releaseAssignedDriver,
	})
}

// RescheduleDelivery sends a failed delivery back to pending for another
// attempt, up to DELIVERY_MAX_ATTEMPTS.
func RescheduleDelivery(ctx context.Context, id int, scheduledAt *time.Time) (*Delivery, error) {
	if scheduledAt != nil && scheduledAt.Before(time.Now().Add(-time.Minute)) {
		return nil, utils.NewValidationError("scheduled time is in the past")
	}
	maxAttempts := config.DeliveryMaxAttempts()
	note := "rescheduled"
	if scheduledAt != nil {
		note = "rescheduled for " + scheduledAt.UTC().Format(time.RFC3339)
	}
	delivery, err := runTransition(ctx, id, transition{
		to:   DeliveryStatusPending,
		note: note,
		set: map[string]interface{}{
			"attempts":            gorm.Expr("attempts + 1"),
			"scheduled_at":        scheduledAt,
			"driver_id":           nil,
			"driver_earning":      decimal.Zero,
			"assigned_at":         nil,
			"picked_up_at":        nil,
			"in_transit_at":       nil,
			"delay_reason":        "",
			"proof_photo_url":     "",
			"proof_thumbnail_url": "",
			"last_lat":            nil,
			"last_lng":            nil,
			"last_location_at":    nil,
		},
		check: func(tx *gorm.DB, current *Delivery) error {
			if current.Status != DeliveryStatusFailed {
				return fmt.Errorf("%w: %s to %s", ErrInvalidDeliveryTransition, current.Status, DeliveryStatusPending)
			}
			if current.Attempts >= maxAttempts {
				return ErrMaxAttemptsReached
			}
			var order Order
			if err := tx.Select("id", "status").Where("id = ? AND store_id = ?", current.OrderId, current.StoreId).
				Take(&order).Error; err == nil && order.Status == OrderStatusCancelled {
				return utils.NewValidationError("order was cancelled")
			}
			return nil
		},
		guard: func(q *gorm.DB) *gorm.DB {
			return q.Where("status = ? AND attempts < ?", DeliveryStatusFailed, maxAttempts)
		},
	})
	if err != nil {
		return nil, err
	}
	// the next attempt must not show the previous driver's position
	if err := config.RemoveRedisKey(driverLocationKey(id)); err != nil {
		config.LogError(config.GetLogger(), "Delivery", "RescheduleDelivery", "clear location", id, err)
	}
	return delivery, nil
}

func CancelDelivery(ctx context.Context, id int, reason string) (*Delivery, error) {
	reason, err := requireReason(reason)
	if err != nil {
		return nil, err
	}
	return runTransition(ctx, id, transition{
		to:    DeliveryStatusCancelled,
		note:  reason,
		set:   map[string]interface{}{"cancel_reason": reason},
		after: releaseAssignedDriver,
	})
}
