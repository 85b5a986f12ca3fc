package database

import (
	"gorm.io/gorm"

	"github.com/techvara/crm/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Lead{},
		&models.Followup{},
		&models.Proposal{},
		&models.Agreement{},
		&models.Project{},
		&models.Payment{},
	)
}
