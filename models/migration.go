package models

import (
	"log"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"gorm.io/gorm"
)

// AllModels lists every table in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&Store{}, &User{}, &History{},
		&Customer{}, &Product{},
		&Order{}, &OrderItem{},
		&DeliveryZone{}, &Driver{},
		&Delivery{}, &DeliveryEvent{},
		&OutboxMessage{}, &IdempotencyKey{},
		&DriverEarning{}, &DriverPayout{},
		&Notification{},
		&ChatConversation{}, &ChatMessage{},
	}
}

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}

func MigrateTable() {
	if err := AutoMigrateAll(config.GetDB()); err != nil {
		log.Fatal(err)
	}
}
