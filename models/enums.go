package models

type UserRole string

const (
	UserRoleAdmin UserRole = "A"
	UserRoleOwner UserRole = "O"
	UserRoleStaff UserRole = "S"
)

func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleAdmin, UserRoleOwner, UserRoleStaff:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusReady          OrderStatus = "ready"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusAssigned  DeliveryStatus = "assigned"
	DeliveryStatusPickedUp  DeliveryStatus = "picked_up"
	DeliveryStatusInTransit DeliveryStatus = "in_transit"
	DeliveryStatusDelayed   DeliveryStatus = "delayed"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
	DeliveryStatusCancelled DeliveryStatus = "cancelled"
)

func (s DeliveryStatus) IsValid() bool {
	_, ok := deliveryTransitions[s]
	return ok
}

// IsTerminal is true for statuses no transition leaves.
func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusDelivered || s == DeliveryStatusCancelled
}

// IsActive is true while a driver is carrying the parcel.
func (s DeliveryStatus) IsActive() bool {
	return s == DeliveryStatusPickedUp || s == DeliveryStatusInTransit || s == DeliveryStatusDelayed
}

type DriverStatus string

const (
	DriverStatusAvailable DriverStatus = "available"
	DriverStatusBusy      DriverStatus = "busy"
	DriverStatusOffline   DriverStatus = "offline"
)

func (s DriverStatus) IsValid() bool {
	return s == DriverStatusAvailable || s == DriverStatusBusy || s == DriverStatusOffline
}

type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeDriver ActorType = "driver"
	ActorTypeSystem ActorType = "system"
)

type PayoutStatus string

const (
	PayoutStatusPending PayoutStatus = "pending"
	PayoutStatusPaid    PayoutStatus = "paid"
	PayoutStatusVoid    PayoutStatus = "void"
)

type ConversationStatus string

const (
	ConversationStatusOpen    ConversationStatus = "open"
	ConversationStatusHandoff ConversationStatus = "handoff"
	ConversationStatusClosed  ConversationStatus = "closed"
)

type ChatSender string

const (
	ChatSenderCustomer ChatSender = "customer"
	ChatSenderBot      ChatSender = "bot"
	ChatSenderStaff    ChatSender = "staff"
)

type NotificationKind string

const (
	NotificationKindDeliveryDelayed NotificationKind = "delivery_delayed"
	NotificationKindDeliveryFailed  NotificationKind = "delivery_failed"
	NotificationKindChatHandoff     NotificationKind = "chat_handoff"
	NotificationKindPayoutCreated   NotificationKind = "payout_created"
	NotificationKindEventDead       NotificationKind = "event_dead"
)
