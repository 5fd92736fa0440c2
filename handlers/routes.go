package handlers

import (
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/chatbot"
	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/middlewares"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"github.com/gin-gonic/gin"
)

// Options carries the collaborators Register wires in. Zero values use the
// production implementations.
type Options struct {
	Bot     *chatbot.Bot
	Storage objectStore
}

// Register mounts every REST route on r. Session and loader middlewares are
// expected to be installed on r already.
func Register(r gin.IRouter, opts Options) error {
	if opts.Storage == nil {
		opts.Storage = gcsStore{}
	}

	loginLimiter := middlewares.NewRateLimiter("login", 10, time.Minute, nil)
	r.POST("/auth/login", loginLimiter.Middleware(), login)
	r.POST("/driver/login", loginLimiter.Middleware(), driverLogin)
	r.GET("/track/:code", trackDelivery)

	api := r.Group("/api", middlewares.RequireStoreUser())
	api.POST("/auth/logout", logout)
	api.GET("/auth/me", me)
	api.POST("/auth/password", changePassword)

	proofs := &proofUploads{store: opts.Storage}
	scoped := api.Group("", middlewares.RequireStoreScope())
	scoped.GET("/store", getStore)

	scoped.GET("/products", listProducts)
	scoped.GET("/products/:id", getProduct)
	scoped.POST("/products", createProduct)
	scoped.PUT("/products/:id", updateProduct)
	scoped.DELETE("/products/:id", deleteProduct)
	scoped.PATCH("/products/:id/active", toggleProduct)

	scoped.GET("/customers", listCustomers)
	scoped.GET("/customers/:id", getCustomer)
	scoped.POST("/customers", createCustomer)
	scoped.PUT("/customers/:id", updateCustomer)
	scoped.DELETE("/customers/:id", deleteCustomer)
	scoped.PATCH("/customers/:id/active", toggleCustomer)

	scoped.GET("/orders", listOrders)
	scoped.GET("/orders/:id", getOrder)
	scoped.POST("/orders", createOrder)
	scoped.PATCH("/orders/:id/status", updateOrderStatus)

	scoped.GET("/zones", listZones)
	scoped.GET("/zones/:id", getZone)
	scoped.POST("/delivery-quote", quoteDelivery)

	scoped.GET("/drivers", listDrivers)
	scoped.GET("/drivers/:id", getDriver)
	scoped.GET("/drivers/:id/balance", getDriverBalance)
	scoped.GET("/drivers/:id/earnings", listDriverEarnings)

	scoped.GET("/deliveries", listDeliveries)
	scoped.GET("/deliveries/:id", getDelivery)
	scoped.POST("/deliveries", createDelivery)
	scoped.POST("/deliveries/:id/assign", assignDriver)
	scoped.POST("/deliveries/:id/unassign", transitionWithReason("unassignDriver", models.UnassignDriver))
	scoped.POST("/deliveries/:id/reschedule", rescheduleDelivery)
	scoped.POST("/deliveries/:id/cancel", transitionWithReason("cancelDelivery", models.CancelDelivery))
	scoped.POST("/deliveries/:id/delay", transitionWithReason("markDelayed", models.MarkDelayed))
	scoped.POST("/deliveries/:id/fail", transitionWithReason("markFailed", models.MarkFailed))
	// store staff can stand in for a driver without the app
	scoped.POST("/deliveries/:id/picked-up", transition("markPickedUp", models.MarkPickedUp))
	scoped.POST("/deliveries/:id/in-transit", transition("markInTransit", models.MarkInTransit))
	scoped.POST("/deliveries/:id/delivered", transition("markDelivered", models.MarkDelivered))
	scoped.POST("/deliveries/:id/proof", proofs.upload)

	scoped.GET("/notifications", listNotifications)
	scoped.GET("/notifications/unread-count", unreadNotificationCount)
	scoped.POST("/notifications/read", markNotificationsRead)

	scoped.GET("/conversations", listConversations)
	scoped.GET("/conversations/:id/messages", getConversationMessages)
	scoped.POST("/conversations/:id/reply", replyConversation)
	scoped.POST("/conversations/:id/close", closeConversation)

	scoped.GET("/history", listHistory)
	scoped.GET("/ops/outbox", outboxStatus)
	scoped.GET("/ops/outbox/dead", listDeadOutbox)

	owner := scoped.Group("", middlewares.RequireOwner())
	owner.PUT("/store", updateStore)
	owner.GET("/users", listStoreUsers)
	owner.POST("/users", createStaffUser)

	owner.POST("/zones", createZone)
	owner.PUT("/zones/:id", updateZone)
	owner.DELETE("/zones/:id", deleteZone)
	owner.PATCH("/zones/:id/active", toggleZone)

	owner.POST("/drivers", createDriver)
	owner.PUT("/drivers/:id", updateDriver)
	owner.PATCH("/drivers/:id/active", toggleDriver)

	owner.GET("/payouts", listPayouts)
	owner.POST("/payouts", createPayout)
	owner.GET("/payouts/:id", getPayout)
	owner.GET("/payouts/:id/export", exportPayout)
	owner.POST("/payouts/:id/paid", markPayoutPaid)
	owner.POST("/payouts/:id/void", voidPayout)

	owner.GET("/reports/delivery-performance", deliveryPerformance)
	owner.POST("/ops/outbox/reprocess", reprocessOutbox)

	admin := r.Group("", middlewares.RequireStoreUser(), middlewares.RequireAdmin())
	admin.GET("/admin/stores", listStores)
	admin.POST("/admin/stores", createStore)
	admin.PATCH("/admin/stores/:id/active", toggleStore)
	admin.POST("/internal/ops/outbox/replay", replayOutboxRecord)
	admin.POST("/internal/ops/outbox/revert-dead", revertDeadOutbox)

	driver := r.Group("/driver", middlewares.DriverAuthMiddleware())
	driver.GET("/me", driverMe)
	driver.POST("/status", setDriverStatus)
	driver.GET("/deliveries", myDeliveries)
	driver.GET("/deliveries/:id", myDelivery)
	driver.POST("/deliveries/:id/picked-up", transition("markPickedUp", models.MarkPickedUp))
	driver.POST("/deliveries/:id/in-transit", transition("markInTransit", models.MarkInTransit))
	driver.POST("/deliveries/:id/delayed", transitionWithReason("markDelayed", models.MarkDelayed))
	driver.POST("/deliveries/:id/delivered", transition("markDelivered", models.MarkDelivered))
	driver.POST("/deliveries/:id/failed", transitionWithReason("markFailed", models.MarkFailed))
	driver.POST("/deliveries/:id/location", updateLocation)
	driver.POST("/deliveries/:id/proof/sign", proofs.sign)
	driver.POST("/deliveries/:id/proof/complete", proofs.complete)
	driver.POST("/deliveries/:id/proof", proofs.upload)

	if !config.ChatWidgetEnabled() {
		return nil
	}
	bot := opts.Bot
	if bot == nil {
		var err error
		if bot, err = chatbot.DefaultBot(); err != nil {
			return err
		}
	}
	widget := &widgetHandler{bot: bot}
	widgetLimiter := middlewares.NewRateLimiter("widget", int64(config.WidgetRateLimitPerMinute()), time.Minute, widgetSessionKey)
	w := r.Group("/widget/:slug")
	w.GET("/config", widgetStore(), widget.config)
	w.POST("/messages", widgetLimiter.Middleware(), widget.message)
	w.POST("/delivery-quote", widgetStore(), quoteDelivery)
	return nil
}
