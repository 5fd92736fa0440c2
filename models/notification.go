package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"gorm.io/gorm"
)

// Notification is an entry in the store's dashboard inbox.
type Notification struct {
	ID            int              `gorm:"primary_key" json:"id"`
	StoreId       string           `gorm:"size:64;not null;index:idx_notification_store_read" json:"store_id"`
	Kind          NotificationKind `gorm:"size:30;not null" json:"kind"`
	Title         string           `gorm:"size:200;not null" json:"title"`
	Body          string           `gorm:"type:text" json:"body"`
	ReferenceType string           `gorm:"size:64" json:"reference_type"`
	ReferenceId   int              `json:"reference_id"`
	SourceEventId int              `gorm:"index" json:"-"`
	IsRead        bool             `gorm:"not null;default:false;index:idx_notification_store_read" json:"is_read"`
	ReadAt        *time.Time       `json:"read_at"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

type NewNotification struct {
	Kind          NotificationKind
	Title         string
	Body          string
	ReferenceType string
	ReferenceId   int
	SourceEventId int
}

// CreateNotification adds an inbox entry. With a SourceEventId it returns the
// entry already made for that event instead of a second one.
func CreateNotification(ctx context.Context, input NewNotification) (*Notification, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB().WithContext(ctx)
	if input.SourceEventId > 0 {
		var existing Notification
		err := db.Where("store_id = ? AND source_event_id = ? AND kind = ?", storeId, input.SourceEventId, input.Kind).
			Take(&existing).Error
		if err == nil {
			return &existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	n := Notification{
		StoreId:       storeId,
		Kind:          input.Kind,
		Title:         input.Title,
		Body:          input.Body,
		ReferenceType: input.ReferenceType,
		ReferenceId:   input.ReferenceId,
		SourceEventId: input.SourceEventId,
	}
	if err := db.Create(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func PaginateNotifications(ctx context.Context, limit int, after *string, unreadOnly bool) (*Connection[Notification], error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Where("store_id = ?", storeId)
	if unreadOnly {
		dbCtx = dbCtx.Where("is_read = ?", false)
	}
	return FetchPageById[Notification](dbCtx, limit, after)
}

func CountUnreadNotifications(ctx context.Context) (int64, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	err = config.GetDB().WithContext(ctx).Model(&Notification{}).
		Where("store_id = ? AND is_read = ?", storeId, false).
		Count(&count).Error
	return count, err
}

// MarkNotificationsRead marks the given ids, or every unread one when ids is empty.
func MarkNotificationsRead(ctx context.Context, ids []int) (int64, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return 0, err
	}
	q := config.GetDB().WithContext(ctx).Model(&Notification{}).
		Where("store_id = ? AND is_read = ?", storeId, false)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	res := q.Updates(map[string]interface{}{"is_read": true, "read_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}
