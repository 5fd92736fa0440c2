package chatbot

import (
	"context"
	"testing"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/testsupport"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStoreId = "store-chat"

func setupWidget(t *testing.T) *Bot {
	t.Helper()
	db := testsupport.OpenDB(t, models.AllModels()...)
	require.NoError(t, db.Create(&models.Store{
		ID:            testStoreId,
		Name:          "Demo Shop",
		Slug:          "demo",
		Phone:         "+97699112233",
		Address:       "СБД, 1-р хороо",
		BusinessHours: "10:00-20:00",
		Timezone:      "Asia/Ulaanbaatar",
		IsActive:      utils.NewTrue(),
	}).Error)
	require.NoError(t, db.Create(&models.Product{
		StoreId:  testStoreId,
		Name:     "Гутал",
		Price:    decimal.NewFromInt(45000),
		StockQty: 3,
		IsActive: utils.NewTrue(),
	}).Error)
	require.NoError(t, db.Create(&models.DeliveryZone{
		StoreId:  testStoreId,
		Name:     "Төв",
		FeeType:  utils.FeeTypeFlat,
		BaseFee:  decimal.NewFromInt(5000),
		Areas:    "СБД,ХУД",
		IsActive: utils.NewTrue(),
	}).Error)

	rules, err := DefaultRules()
	require.NoError(t, err)
	bot, err := NewBot(rules)
	require.NoError(t, err)
	return bot
}

func countMessages(t *testing.T, conversationId int) int64 {
	t.Helper()
	var n int64
	require.NoError(t, config.GetDB().Model(&models.ChatMessage{}).Where("conversation_id = ?", conversationId).Count(&n).Error)
	return n
}

func TestHandleWidgetMessage_ProductStock(t *testing.T) {
	bot := setupWidget(t)
	ctx := context.Background()

	out, err := bot.HandleWidgetMessage(ctx, "demo", "sess-1", "Гутал байгаа юу?")
	require.NoError(t, err)
	assert.Equal(t, "stock_check", out.Intent)
	assert.Contains(t, out.Reply, "Гутал")
	assert.Contains(t, out.Reply, "45,000₮")
	assert.Contains(t, out.Reply, "3 ширхэг")
	assert.Equal(t, models.ConversationStatusOpen, out.ConversationStatus)
	assert.EqualValues(t, 2, countMessages(t, out.ConversationId))
}

func TestHandleWidgetMessage_DeliveryFeeListsZones(t *testing.T) {
	bot := setupWidget(t)
	out, err := bot.HandleWidgetMessage(context.Background(), "demo", "sess-2", "Хүргэлтийн төлбөр хэд вэ?")
	require.NoError(t, err)
	assert.Equal(t, "delivery_fee", out.Intent)
	assert.Contains(t, out.Reply, "Төв: 5,000₮")
	assert.Contains(t, out.Reply, "СБД, ХУД")
}

func TestHandleWidgetMessage_OrderStatus(t *testing.T) {
	bot := setupWidget(t)
	require.NoError(t, config.GetDB().Create(&models.Order{
		StoreId:     testStoreId,
		SequenceNo:  123,
		OrderNumber: models.FormatOrderNumber(123),
		Status:      models.OrderStatusPreparing,
	}).Error)

	out, err := bot.HandleWidgetMessage(context.Background(), "demo", "sess-3", "ORD-000123 захиалгын статус")
	require.NoError(t, err)
	assert.Equal(t, "order_status", out.Intent)
	assert.Contains(t, out.Reply, "ORD-000123")
	assert.Contains(t, out.Reply, "бэлтгэж байна")

	out, err = bot.HandleWidgetMessage(context.Background(), "demo", "sess-3", "#999 захиалгын статус")
	require.NoError(t, err)
	assert.Contains(t, out.Reply, "999 дугаартай захиалга олдсонгүй")

	out, err = bot.HandleWidgetMessage(context.Background(), "demo", "sess-3", "захиалгын статус")
	require.NoError(t, err)
	assert.Contains(t, out.Reply, "Захиалгын дугаараа бичнэ үү")
}

func TestHandleWidgetMessage_HandoffSilencesBot(t *testing.T) {
	bot := setupWidget(t)
	ctx := context.Background()

	out, err := bot.HandleWidgetMessage(ctx, "demo", "sess-4", "ажилтантай холбогдмоор байна")
	require.NoError(t, err)
	assert.Equal(t, "human_handoff", out.Intent)
	assert.Equal(t, models.ConversationStatusHandoff, out.ConversationStatus)

	var outbox []models.OutboxMessage
	require.NoError(t, config.GetDB().Where("event_type = ?", models.EventChatHandoff).Find(&outbox).Error)
	require.Len(t, outbox, 1)
	assert.Equal(t, out.ConversationId, outbox[0].ReferenceId)

	before := countMessages(t, out.ConversationId)
	out, err = bot.HandleWidgetMessage(ctx, "demo", "sess-4", "сайн уу")
	require.NoError(t, err)
	assert.Empty(t, out.Reply)
	assert.Equal(t, models.ConversationStatusHandoff, out.ConversationStatus)
	assert.Equal(t, before+1, countMessages(t, out.ConversationId))

	// staff resumes the bot
	staff := testsupport.UserContext(testStoreId, 1, "Staff")
	_, err = models.StaffReply(staff, out.ConversationId, "Сайн байна уу, туслая", true)
	require.NoError(t, err)
	out, err = bot.HandleWidgetMessage(ctx, "demo", "sess-4", "сайн уу")
	require.NoError(t, err)
	assert.Equal(t, "greeting", out.Intent)
	assert.NotEmpty(t, out.Reply)
}

func TestHandleWidgetMessage_SavesPhone(t *testing.T) {
	bot := setupWidget(t)
	out, err := bot.HandleWidgetMessage(context.Background(), "demo", "sess-5", "Миний утас 99112244")
	require.NoError(t, err)
	conv, err := models.GetConversation(testsupport.StoreContext(testStoreId), out.ConversationId)
	require.NoError(t, err)
	assert.Equal(t, "+97699112244", conv.CustomerPhone)
}

func TestHandleWidgetMessage_Rejects(t *testing.T) {
	bot := setupWidget(t)
	_, err := bot.HandleWidgetMessage(context.Background(), "missing", "sess", "hi")
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)

	_, err = bot.HandleWidgetMessage(context.Background(), "demo", "sess", "  ")
	assert.True(t, utils.IsValidationError(err))

	_, err = bot.HandleWidgetMessage(context.Background(), "demo", "", "hi")
	assert.True(t, utils.IsValidationError(err))
}

func TestWidgetConfig_Greeting(t *testing.T) {
	bot := setupWidget(t)
	store, err := models.GetStoreBySlug(context.Background(), "demo")
	require.NoError(t, err)
	cfg := bot.WidgetConfig(store)
	assert.Equal(t, "Demo Shop", cfg.StoreName)
	assert.Contains(t, cfg.Greeting, "Demo Shop")
}
