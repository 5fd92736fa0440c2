package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChatConversation struct {
	ID            int                `gorm:"primary_key" json:"id"`
	StoreId       string             `gorm:"size:64;not null;uniqueIndex:uniq_chat_session" json:"store_id"`
	SessionId     string             `gorm:"size:64;not null;uniqueIndex:uniq_chat_session" json:"session_id"`
	CustomerName  string             `gorm:"size:100" json:"customer_name"`
	CustomerPhone string             `gorm:"size:20" json:"customer_phone"`
	Status        ConversationStatus `gorm:"size:10;not null;default:open;index" json:"status"`
	LastIntent    string             `gorm:"size:40" json:"last_intent"`
	LastMessageAt *time.Time         `json:"last_message_at"`
	HandoffAt     *time.Time         `json:"handoff_at"`
	ClosedAt      *time.Time         `json:"closed_at"`
	CreatedAt     time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type ChatMessage struct {
	ID             int        `gorm:"primary_key" json:"id"`
	ConversationId int        `gorm:"not null;index" json:"conversation_id"`
	StoreId        string     `gorm:"size:64;not null;index" json:"store_id"`
	Sender         ChatSender `gorm:"size:10;not null" json:"sender"`
	Body           string     `gorm:"type:text;not null" json:"body"`
	Intent         string     `gorm:"size:40" json:"intent,omitempty"`
	Confidence     float64    `json:"confidence,omitempty"`
	UserId         *int       `json:"user_id,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

type ChatHandoffPayload struct {
	ConversationId int    `json:"conversation_id"`
	SessionId      string `json:"session_id"`
	CustomerName   string `json:"customer_name,omitempty"`
	CustomerPhone  string `json:"customer_phone,omitempty"`
	LastMessage    string `json:"last_message,omitempty"`
}

// GetOrCreateConversation returns the widget session's conversation. A closed
// conversation is reopened when the customer writes again.
func GetOrCreateConversation(ctx context.Context, sessionId string) (*ChatConversation, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	sessionId = strings.TrimSpace(sessionId)
	if sessionId == "" || len(sessionId) > 64 {
		return nil, utils.NewValidationError("invalid session id")
	}
	db := config.GetDB().WithContext(ctx)
	conv := ChatConversation{StoreId: storeId, SessionId: sessionId, Status: ConversationStatusOpen}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "store_id"}, {Name: "session_id"}},
		DoNothing: true,
	}).Create(&conv).Error; err != nil {
		return nil, err
	}
	var result ChatConversation
	if err := db.Where("store_id = ? AND session_id = ?", storeId, sessionId).Take(&result).Error; err != nil {
		return nil, err
	}
	if result.Status == ConversationStatusClosed {
		if err := db.Model(&result).Updates(map[string]interface{}{
			"status":    ConversationStatusOpen,
			"closed_at": nil,
		}).Error; err != nil {
			return nil, err
		}
	}
	return &result, nil
}

// AppendChatMessage stores one message and bumps the conversation's activity.
func AppendChatMessage(ctx context.Context, conv *ChatConversation, msg ChatMessage) (*ChatMessage, error) {
	msg.Body = strings.TrimSpace(msg.Body)
	if msg.Body == "" {
		return nil, utils.NewValidationError("message is empty")
	}
	msg.ConversationId = conv.ID
	msg.StoreId = conv.StoreId
	now := time.Now().UTC()
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		changes := map[string]interface{}{"last_message_at": now}
		if msg.Sender == ChatSenderBot && msg.Intent != "" {
			changes["last_intent"] = msg.Intent
		}
		return tx.Model(conv).Updates(changes).Error
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// RequestHandoff hands the conversation to staff. It returns false when it was
// already waiting for staff.
func RequestHandoff(ctx context.Context, conv *ChatConversation, lastMessage string) (bool, error) {
	now := time.Now().UTC()
	moved := false
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ChatConversation{}).
			Where("id = ? AND store_id = ? AND status = ?", conv.ID, conv.StoreId, ConversationStatusOpen).
			Updates(map[string]interface{}{"status": ConversationStatusHandoff, "handoff_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		moved = true
		return enqueueOutbox(tx, EventChatHandoff, "chat_conversations", conv.ID, ChatHandoffPayload{
			ConversationId: conv.ID,
			SessionId:      conv.SessionId,
			CustomerName:   conv.CustomerName,
			CustomerPhone:  conv.CustomerPhone,
			LastMessage:    lastMessage,
		})
	})
	if err != nil {
		return false, err
	}
	if moved {
		conv.Status = ConversationStatusHandoff
		conv.HandoffAt = &now
	}
	return moved, nil
}

// SetConversationContact records the name and phone a customer typed in the widget.
func SetConversationContact(ctx context.Context, conv *ChatConversation, name, phone string) error {
	changes := map[string]interface{}{}
	if name = strings.TrimSpace(name); name != "" {
		changes["customer_name"] = name
	}
	if phone != "" {
		normalized, err := utils.NormalizePhoneNumber(phone, "")
		if err != nil {
			return err
		}
		changes["customer_phone"] = normalized
	}
	if len(changes) == 0 {
		return nil
	}
	return config.GetDB().WithContext(ctx).Model(conv).Updates(changes).Error
}

type ChatConversationFilter struct {
	Status *ConversationStatus
}

func PaginateConversations(ctx context.Context, limit int, after *string, filter ChatConversationFilter) (*Connection[ChatConversation], error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Where("store_id = ?", storeId)
	if filter.Status != nil {
		dbCtx = dbCtx.Where("status = ?", *filter.Status)
	}
	return FetchPageById[ChatConversation](dbCtx, limit, after)
}

func GetConversation(ctx context.Context, id int) (*ChatConversation, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[ChatConversation](ctx, storeId, id)
}

func GetConversationMessages(ctx context.Context, conversationId int) ([]*ChatMessage, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[ChatConversation](ctx, storeId, conversationId); err != nil {
		return nil, err
	}
	var results []*ChatMessage
	err = config.GetDB().WithContext(ctx).
		Where("store_id = ? AND conversation_id = ?", storeId, conversationId).
		Order("id").Find(&results).Error
	return results, err
}

// StaffReply posts a staff message. resume hands the conversation back to the bot.
func StaffReply(ctx context.Context, conversationId int, body string, resume bool) (*ChatMessage, error) {
	conv, err := GetConversation(ctx, conversationId)
	if err != nil {
		return nil, err
	}
	if conv.Status == ConversationStatusClosed {
		return nil, utils.NewValidationError("conversation is closed")
	}
	msg := ChatMessage{Sender: ChatSenderStaff, Body: body}
	if userId, ok := utils.GetUserIdFromContext(ctx); ok {
		msg.UserId = &userId
	}
	result, err := AppendChatMessage(ctx, conv, msg)
	if err != nil {
		return nil, err
	}
	if resume && conv.Status == ConversationStatusHandoff {
		if err := config.GetDB().WithContext(ctx).Model(conv).
			Updates(map[string]interface{}{"status": ConversationStatusOpen, "handoff_at": nil}).Error; err != nil {
			return nil, err
		}
	}
	return result, nil
}

func CloseConversation(ctx context.Context, conversationId int) (*ChatConversation, error) {
	conv, err := GetConversation(ctx, conversationId)
	if err != nil {
		return nil, err
	}
	if conv.Status == ConversationStatusClosed {
		return conv, nil
	}
	now := time.Now().UTC()
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(conv).Updates(map[string]interface{}{
			"status":    ConversationStatusClosed,
			"closed_at": now,
		}).Error; err != nil {
			return err
		}
		return createHistory(tx, "*UPDATE*", conv.ID, "chat_conversations", nil, nil, "conversation closed")
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}
