package config

import (
	"os"
	"strings"
)

func boolFromEnv(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "y":
		return true
	case "0", "false", "no", "n":
		return false
	}
	return def
}

// DeliveryRequiresProofPhoto blocks "delivered" until a proof photo is attached.
//
// Set via env:
// - DELIVERY_REQUIRE_PROOF_PHOTO=true
func DeliveryRequiresProofPhoto() bool {
	return boolFromEnv("DELIVERY_REQUIRE_PROOF_PHOTO", false)
}

// DeliveryMaxAttempts caps how many times a failed delivery can be sent back to pending.
func DeliveryMaxAttempts() int {
	n := intFromEnv("DELIVERY_MAX_ATTEMPTS", 3)
	if n < 1 {
		return 1
	}
	return n
}

// ChatWidgetEnabled turns the public widget endpoints on or off. Default on.
func ChatWidgetEnabled() bool {
	return boolFromEnv("CHAT_WIDGET_ENABLED", true)
}

// WidgetRateLimitPerMinute is the per-session message allowance for the widget.
func WidgetRateLimitPerMinute() int {
	return intFromEnv("WIDGET_RATE_LIMIT_PER_MINUTE", 20)
}

// ChatIntentsFile overrides the embedded intent rules when non-empty.
func ChatIntentsFile() string {
	return strings.TrimSpace(os.Getenv("CHAT_INTENTS_FILE"))
}

// OutboxDirectProcessing makes the in-process processor consume outbox rows
// instead of Pub/Sub. Enabled automatically when PUBSUB_TOPIC is unset.
func OutboxDirectProcessing() bool {
	if strings.TrimSpace(os.Getenv("PUBSUB_TOPIC")) == "" {
		return true
	}
	return boolFromEnv("OUTBOX_DIRECT_PROCESSING", false)
}

func SkipMigrations() bool {
	return boolFromEnv("SKIP_MIGRATIONS", false)
}
