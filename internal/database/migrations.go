package database

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"complaints-backend-go/internal/models"
)

// Migrate applies the schema migrations in order. Categories are reference
// data and are seeded separately by cmd/seed.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "20251001_create_users_and_otp_codes",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.User{}, &models.OtpCredential{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("otp_codes", "users")
			},
		},
		{
			ID: "20251001_create_categories_and_submissions",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Category{}, &models.Submission{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("submissions", "categories")
			},
		},
	})
	return m.Migrate()
}
