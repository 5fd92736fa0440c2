package chatbot

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/sirupsen/logrus"
)

const maxMessageLength = 1000

type Bot struct {
	classifier *Classifier
	responder  *Responder
}

type WidgetReply struct {
	Reply              string                    `json:"reply"`
	Intent             string                    `json:"intent"`
	Confidence         float64                   `json:"confidence"`
	ConversationStatus models.ConversationStatus `json:"conversation_status"`
	ConversationId     int                       `json:"conversation_id"`
}

type WidgetConfig struct {
	StoreName string `json:"store_name"`
	Greeting  string `json:"greeting"`
}

func NewBot(rules *RuleSet) (*Bot, error) {
	responder, err := NewResponder(rules)
	if err != nil {
		return nil, err
	}
	return &Bot{classifier: NewClassifier(rules), responder: responder}, nil
}

var (
	defaultBot     *Bot
	defaultBotErr  error
	defaultBotOnce sync.Once
)

// DefaultBot loads CHAT_INTENTS_FILE, or the embedded rules, once.
func DefaultBot() (*Bot, error) {
	defaultBotOnce.Do(func() {
		rules, err := LoadRules(config.ChatIntentsFile())
		if err != nil {
			defaultBotErr = err
			return
		}
		defaultBot, defaultBotErr = NewBot(rules)
	})
	return defaultBot, defaultBotErr
}

func (b *Bot) Classify(text string) Result {
	return b.classifier.Classify(text)
}

func (b *Bot) WidgetConfig(store *models.Store) WidgetConfig {
	return WidgetConfig{StoreName: store.Name, Greeting: b.responder.Greeting(store)}
}

// HandleWidgetMessage runs one widget turn: store the customer's message,
// answer it unless staff took over, and store the answer.
func (b *Bot) HandleWidgetMessage(ctx context.Context, slug string, sessionId string, text string) (*WidgetReply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, utils.NewValidationError("message is empty")
	}
	if utf8.RuneCountInString(text) > maxMessageLength {
		return nil, utils.NewValidationError("message is too long")
	}
	store, err := models.GetStoreBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	ctx = utils.SystemContext(ctx, store.ID)

	conv, err := models.GetOrCreateConversation(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if _, err := models.AppendChatMessage(ctx, conv, models.ChatMessage{Sender: models.ChatSenderCustomer, Body: text}); err != nil {
		return nil, err
	}
	if conv.Status == models.ConversationStatusHandoff {
		return &WidgetReply{ConversationStatus: conv.Status, ConversationId: conv.ID}, nil
	}

	result := b.classifier.Classify(text)
	if result.Entities.Phone != "" && conv.CustomerPhone == "" {
		if err := models.SetConversationContact(ctx, conv, "", result.Entities.Phone); err != nil {
			config.LogError(config.GetLogger(), "Chatbot", "HandleWidgetMessage", "save phone", conv.ID, err)
		}
	}

	reply, err := b.responder.Respond(ctx, store, conv, text, result)
	if err != nil {
		logReplyError(store.ID, result.Intent, err)
		reply = Reply{Text: b.responder.fallback(store, result)}
	}
	if _, err := models.AppendChatMessage(ctx, conv, models.ChatMessage{
		Sender:     models.ChatSenderBot,
		Body:       reply.Text,
		Intent:     result.Intent,
		Confidence: result.Confidence,
	}); err != nil {
		return nil, err
	}

	config.GetLogger().WithFields(logrus.Fields{
		"store_id":        store.ID,
		"conversation_id": conv.ID,
		"intent":          result.Intent,
		"score":           result.Score,
		"confidence":      result.Confidence,
	}).Debug("widget message classified")

	return &WidgetReply{
		Reply:              reply.Text,
		Intent:             result.Intent,
		Confidence:         result.Confidence,
		ConversationStatus: conv.Status,
		ConversationId:     conv.ID,
	}, nil
}
