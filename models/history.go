package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"gorm.io/gorm"
)

// History is the audit trail of dashboard and portal writes.
type History struct {
	ID            int       `gorm:"primary_key" json:"id"`
	StoreId       string    `gorm:"size:64;index;not null" json:"store_id"`
	ActionType    string    `gorm:"size:12;not null" json:"action_type"`
	Before        string    `gorm:"type:text" json:"before"`
	After         string    `gorm:"type:text" json:"after"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	ReferenceID   int       `gorm:"index" json:"reference_id"`
	ReferenceType string    `gorm:"size:64" json:"reference_type"`
	ActorType     ActorType `gorm:"size:10;not null" json:"actor_type"`
	ActorId       int       `gorm:"index" json:"actor_id"`
	ActorName     string    `gorm:"size:100" json:"actor_name"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type actor struct {
	Type ActorType
	Id   int
	Name string
}

// actorFromContext prefers the dashboard user, then the driver, else system.
func actorFromContext(ctx context.Context) actor {
	if userId, ok := utils.GetUserIdFromContext(ctx); ok && userId > 0 {
		name, _ := utils.GetUserNameFromContext(ctx)
		return actor{Type: ActorTypeUser, Id: userId, Name: name}
	}
	if driverId, ok := utils.GetDriverIdFromContext(ctx); ok {
		return actor{Type: ActorTypeDriver, Id: driverId}
	}
	return actor{Type: ActorTypeSystem}
}

func createHistory(tx *gorm.DB,
	actionType string,
	referenceId int,
	referenceType string,
	before interface{},
	after interface{},
	description string) error {

	ctx := tx.Statement.Context
	storeId, ok := utils.GetStoreIdFromContext(ctx)
	if !ok {
		return utils.ErrorStoreIdRequired
	}
	b, _ := json.Marshal(before)
	a, _ := json.Marshal(after)
	who := actorFromContext(ctx)

	history := History{
		StoreId:       storeId,
		ActionType:    actionType,
		Before:        string(b),
		After:         string(a),
		Description:   description,
		ReferenceID:   referenceId,
		ReferenceType: referenceType,
		ActorType:     who.Type,
		ActorId:       who.Id,
		ActorName:     who.Name,
	}
	return tx.Create(&history).Error
}

func GetHistories(ctx context.Context, referenceType string, referenceId int) ([]*History, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	var results []*History
	err = config.GetDB().WithContext(ctx).
		Where("store_id = ? AND reference_type = ? AND reference_id = ?", storeId, referenceType, referenceId).
		Order("id DESC").
		Find(&results).Error
	return results, err
}
