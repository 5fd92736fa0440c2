package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"github.com/sirupsen/logrus"
)

// EventHandler reacts to one outbox event. It runs at least once per event,
// so it must be safe to repeat.
type EventHandler func(ctx context.Context, logger *logrus.Logger, msg config.EventMessage) error

var eventHandlers = map[string]EventHandler{
	models.DeliveryEventType(models.DeliveryStatusDelivered): accrueEarningHandler,
	models.DeliveryEventType(models.DeliveryStatusDelayed):   deliveryNotificationHandler(models.NotificationKindDeliveryDelayed),
	models.DeliveryEventType(models.DeliveryStatusFailed):    deliveryNotificationHandler(models.NotificationKindDeliveryFailed),
	models.EventChatHandoff:                                  chatHandoffHandler,
	models.EventPayoutCreated:                                payoutCreatedHandler,
}

// handlerFor returns nil for event types nothing consumes.
func handlerFor(eventType string) EventHandler {
	return eventHandlers[eventType]
}

func accrueEarningHandler(ctx context.Context, logger *logrus.Logger, msg config.EventMessage) error {
	earning, created, err := models.AccrueDriverEarning(ctx, msg.ReferenceId)
	if err != nil {
		return err
	}
	if created && logger != nil {
		logger.WithFields(logrus.Fields{
			"field":       "accrueEarningHandler",
			"store_id":    msg.StoreId,
			"delivery_id": msg.ReferenceId,
			"driver_id":   earning.DriverId,
			"amount":      earning.Amount.String(),
		}).Info("driver earning accrued")
	}
	return nil
}

func deliveryNotificationHandler(kind models.NotificationKind) EventHandler {
	return func(ctx context.Context, logger *logrus.Logger, msg config.EventMessage) error {
		var payload models.DeliveryEventPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return fmt.Errorf("decode delivery payload: %w", err)
		}
		title := fmt.Sprintf("Delivery %s is delayed", payload.TrackingCode)
		if kind == models.NotificationKindDeliveryFailed {
			title = fmt.Sprintf("Delivery %s failed (attempt %d)", payload.TrackingCode, payload.Attempts)
		}
		_, err := models.CreateNotification(ctx, models.NewNotification{
			Kind:          kind,
			Title:         title,
			Body:          payload.Note,
			ReferenceType: msg.ReferenceType,
			ReferenceId:   msg.ReferenceId,
			SourceEventId: msg.ID,
		})
		return err
	}
}

func chatHandoffHandler(ctx context.Context, logger *logrus.Logger, msg config.EventMessage) error {
	var payload models.ChatHandoffPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("decode handoff payload: %w", err)
	}
	who := payload.CustomerName
	if who == "" {
		who = payload.CustomerPhone
	}
	if who == "" {
		who = "A customer"
	}
	_, err := models.CreateNotification(ctx, models.NewNotification{
		Kind:          models.NotificationKindChatHandoff,
		Title:         who + " asked for a person",
		Body:          payload.LastMessage,
		ReferenceType: msg.ReferenceType,
		ReferenceId:   msg.ReferenceId,
		SourceEventId: msg.ID,
	})
	return err
}

func payoutCreatedHandler(ctx context.Context, logger *logrus.Logger, msg config.EventMessage) error {
	var payout models.DriverPayout
	if err := json.Unmarshal(msg.Payload, &payout); err != nil {
		return fmt.Errorf("decode payout payload: %w", err)
	}
	_, err := models.CreateNotification(ctx, models.NewNotification{
		Kind:          models.NotificationKindPayoutCreated,
		Title:         fmt.Sprintf("Payout of %s ready for %d deliveries", payout.TotalAmount.StringFixed(0), payout.DeliveryCount),
		ReferenceType: msg.ReferenceType,
		ReferenceId:   msg.ReferenceId,
		SourceEventId: msg.ID,
	})
	return err
}
