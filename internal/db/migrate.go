package db

import (
	"blinkbattle/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Match{},
		&models.TapEvent{},
		&models.PaymentIntent{},
	)
}
