package workflow

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"
)

// PubSubSubscription is the pull subscription name; empty disables pulling.
func PubSubSubscription() string {
	return strings.TrimSpace(os.Getenv("PUBSUB_SUBSCRIPTION"))
}

// RunSubscriber pulls events from PUBSUB_SUBSCRIPTION until ctx is done.
// It returns once the subscription exists; receiving continues in the background.
func RunSubscriber(ctx context.Context, logger *logrus.Logger) error {
	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}
	topic, err := config.CreateTopicIfNotExists(ctx, client, config.PubSubTopic())
	if err != nil {
		return err
	}
	sub, err := config.CreateSubscriptionIfNotExists(ctx, client, PubSubSubscription(), topic)
	if err != nil {
		return err
	}
	sub.ReceiveSettings.MaxOutstandingMessages = 10

	callback := func(ctx context.Context, msg *pubsub.Message) {
		var m config.EventMessage
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			config.LogError(logger, "subscriber.go", "RunSubscriber", "Unmarshaling pubsub message", string(msg.Data), err)
			// redelivery cannot fix a malformed envelope
			msg.Ack()
			return
		}

		release := LockStore(ctx, logger, m.StoreId)
		defer release()

		if err := ProcessMessage(ctx, logger, m); err != nil {
			logger.WithFields(logrus.Fields{
				"field":          "Subscriber",
				"store_id":       m.StoreId,
				"event_type":     m.EventType,
				"reference_type": m.ReferenceType,
				"reference_id":   m.ReferenceId,
				"message_id":     msg.ID,
			}).Error("pubsub processing failed: " + err.Error())
			msg.Nack()
			return
		}
		msg.Ack()
	}

	go func() {
		if err := sub.Receive(ctx, callback); err != nil {
			config.LogError(logger, "subscriber.go", "RunSubscriber", "Failed to receive messages", nil, err)
		}
	}()
	return nil
}
