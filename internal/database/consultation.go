package database

import (
	"errors"
	"time"

	"github.com/carelink/backend/internal/models"
	"gorm.io/gorm"
)

// ErrTimeSlotTaken reports a double-booking: another non-canceled
// consultation already occupies the employee's slot.
var ErrTimeSlotTaken = errors.New("employee already has a consultation at this time")

// CreateConsultation inserts the record, enforcing the one-per-
// (employee, meetingTime) invariant inside a transaction so two racing
// matching passes cannot both commit.
func (d *Database) CreateConsultation(c *models.Consultation) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&models.Consultation{}).
			Where("employee_id = ? AND meeting_time = ? AND status <> ? AND is_deleted = false",
				c.EmployeeID, c.MeetingTime, models.StatusCanceled).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrTimeSlotTaken
		}
		return tx.Create(c).Error
	})
}

func (d *Database) GetConsultation(id int) (*models.Consultation, error) {
	c := models.Consultation{}
	if err := d.db.First(&c, "id = ? AND is_deleted = false", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (d *Database) UpdateConsultation(c *models.Consultation) error {
	return d.db.Save(c).Error
}

// UpdateConsultationStatus writes only the status and updated_at columns.
func (d *Database) UpdateConsultationStatus(id int, status models.ConsultationStatus) error {
	return d.db.Model(&models.Consultation{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()}).Error
}

func (d *Database) UpdateConsultationRecordingURL(id int, url string) error {
	return d.db.Model(&models.Consultation{}).Where("id = ?", id).
		Updates(map[string]interface{}{"recording_url": url, "updated_at": time.Now()}).Error
}

// FindConsultationsByParticipant lists a user's consultations of one meeting
// type inside [start, end], ordered by meeting time, paged.
func (d *Database) FindConsultationsByParticipant(userID int, role models.Role, meetingType string, start, end time.Time, offset, limit int) ([]models.Consultation, int64, error) {
	q := d.db.Model(&models.Consultation{}).
		Where("meeting_type = ? AND meeting_time BETWEEN ? AND ? AND is_deleted = false", meetingType, start, end)

	switch role {
	case models.RoleEmployee:
		q = q.Where("employee_id = ?", userID)
	case models.RoleGuardian:
		q = q.Where("guardian_id = ?", userID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []models.Consultation
	err := q.Order("meeting_time asc").Offset(offset).Limit(limit).Find(&list).Error
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
