package database

import (
	"time"

	"github.com/carelink/backend/internal/models"
)

func (d *Database) SaveUser(user *models.User) error {
	if err := d.db.Create(user).Error; err != nil {
		return err
	}
	return nil
}

func (d *Database) GetUser(id int) (*models.User, error) {
	user := models.User{}
	if err := d.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *Database) FindUserByEmail(email string) (*models.User, error) {
	user := models.User{}
	if err := d.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *Database) UpdateLastSeen(id int) error {
	return d.db.Model(&models.User{}).Where("id = ?", id).Update("last_seen_at", time.Now()).Error
}

func (d *Database) GetSenior(id int) (*models.Senior, error) {
	senior := models.Senior{}
	if err := d.db.First(&senior, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &senior, nil
}

func (d *Database) GetOrganization(id int) (*models.Organization, error) {
	org := models.Organization{}
	if err := d.db.First(&org, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// FindSeniorsByUser returns the seniors linked to a user, employee or
// guardian side alike.
func (d *Database) FindSeniorsByUser(userID int) ([]models.Senior, error) {
	var seniors []models.Senior
	err := d.db.
		Joins("JOIN senior_user_relations sur ON sur.senior_id = seniors.id").
		Where("sur.user_id = ?", userID).
		Find(&seniors).Error
	if err != nil {
		return nil, err
	}
	return seniors, nil
}

// UserLinkedToSenior reports whether a relation row exists for the pair.
func (d *Database) UserLinkedToSenior(userID, seniorID int) (bool, error) {
	var count int64
	err := d.db.Table("senior_user_relations").
		Where("user_id = ? AND senior_id = ?", userID, seniorID).
		Count(&count).Error
	return count > 0, err
}
