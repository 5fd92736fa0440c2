package models

import (
	"testing"

	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateConversation_ReusesAndReopens(t *testing.T) {
	f := newFixture(t)

	conv, err := GetOrCreateConversation(f.ctx, " sess-1 ")
	require.NoError(t, err)
	assert.Equal(t, ConversationStatusOpen, conv.Status)
	same, err := GetOrCreateConversation(f.ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, same.ID)

	_, err = CloseConversation(f.ctx, conv.ID)
	require.NoError(t, err)
	reopened, err := GetOrCreateConversation(f.ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, reopened.ID)
	assert.Equal(t, ConversationStatusOpen, reopened.Status)

	_, err = GetOrCreateConversation(f.ctx, "")
	assert.True(t, utils.IsValidationError(err))
}

func TestChatHandoffAndStaffReply(t *testing.T) {
	f := newFixture(t)
	conv, err := GetOrCreateConversation(f.ctx, "sess-2")
	require.NoError(t, err)

	_, err = AppendChatMessage(f.ctx, conv, ChatMessage{Sender: ChatSenderCustomer, Body: "хүнтэй ярих"})
	require.NoError(t, err)
	_, err = AppendChatMessage(f.ctx, conv, ChatMessage{Sender: ChatSenderBot, Body: "түр хүлээнэ үү", Intent: "human_handoff", Confidence: 1})
	require.NoError(t, err)
	_, err = AppendChatMessage(f.ctx, conv, ChatMessage{Sender: ChatSenderCustomer, Body: "   "})
	assert.True(t, utils.IsValidationError(err))

	moved, err := RequestHandoff(f.ctx, conv, "хүнтэй ярих")
	require.NoError(t, err)
	assert.True(t, moved)
	moved, err = RequestHandoff(f.ctx, conv, "дахиад")
	require.NoError(t, err)
	assert.False(t, moved)
	assert.Equal(t, []string{EventChatHandoff}, f.outboxTypes(t, "chat_conversations", conv.ID))

	handoff := ConversationStatusHandoff
	page, err := PaginateConversations(f.ctx, 10, nil, ChatConversationFilter{Status: &handoff})
	require.NoError(t, err)
	require.Len(t, page.Edges, 1)
	assert.Equal(t, "human_handoff", page.Edges[0].Node.LastIntent)

	_, err = StaffReply(f.ctx, conv.ID, "Сайн байна уу, би туслая", true)
	require.NoError(t, err)
	reloaded, err := GetConversation(f.ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, ConversationStatusOpen, reloaded.Status)

	messages, err := GetConversationMessages(f.ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, ChatSenderStaff, messages[2].Sender)
	require.NotNil(t, messages[2].UserId)
	assert.Equal(t, 1, *messages[2].UserId)

	_, err = CloseConversation(f.ctx, conv.ID)
	require.NoError(t, err)
	_, err = StaffReply(f.ctx, conv.ID, "late", false)
	assert.True(t, utils.IsValidationError(err))
}

func TestSetConversationContact_NormalizesPhone(t *testing.T) {
	f := newFixture(t)
	conv, err := GetOrCreateConversation(f.ctx, "sess-3")
	require.NoError(t, err)

	require.NoError(t, SetConversationContact(f.ctx, conv, " Сараа ", "9911 2233"))
	reloaded, err := GetConversation(f.ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Сараа", reloaded.CustomerName)
	assert.Equal(t, "+97699112233", reloaded.CustomerPhone)

	assert.Error(t, SetConversationContact(f.ctx, conv, "", "12"))
}

func TestNotifications_MarkRead(t *testing.T) {
	f := newFixture(t)
	var ids []int
	for _, kind := range []NotificationKind{NotificationKindDeliveryDelayed, NotificationKindDeliveryFailed, NotificationKindChatHandoff} {
		n, err := CreateNotification(f.ctx, NewNotification{Kind: kind, Title: string(kind), ReferenceType: "deliveries", ReferenceId: 1})
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}

	count, err := CountUnreadNotifications(f.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	marked, err := MarkNotificationsRead(f.ctx, ids[:1])
	require.NoError(t, err)
	assert.EqualValues(t, 1, marked)

	page, err := PaginateNotifications(f.ctx, 10, nil, true)
	require.NoError(t, err)
	require.Len(t, page.Edges, 2)
	assert.Equal(t, ids[2], page.Edges[0].Node.ID)

	marked, err = MarkNotificationsRead(f.ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, marked)
	count, err = CountUnreadNotifications(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
