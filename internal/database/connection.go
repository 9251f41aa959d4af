package database

import (
	"github.com/carelink/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func (d *Database) Connect(dsn string) error {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return err
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Organization{},
		&models.Senior{},
		&models.Consultation{},
	)
	if err != nil {
		return err
	}

	d.db = db

	return nil
}
