package models

import (
	"time"
)

type ConsultationStatus string

const (
	StatusPending   ConsultationStatus = "PENDING"
	StatusConducted ConsultationStatus = "CONDUCTED"
	StatusCanceled  ConsultationStatus = "CANCELED"
)

// Terminal reports whether no further transitions are allowed.
func (s ConsultationStatus) Terminal() bool {
	return s == StatusConducted || s == StatusCanceled
}

// CanTransition encodes the lifecycle: PENDING may move to CONDUCTED or
// CANCELED, terminal states never move.
func (s ConsultationStatus) CanTransition(to ConsultationStatus) bool {
	if s.Terminal() || to == StatusPending {
		return false
	}
	return s == StatusPending
}

const (
	MeetingTypeEmployee = "withEmployee"
	MeetingTypeDoctor   = "withDoctor"
)

// Consultation is the scheduled meeting between one employee, one guardian
// and one senior. StartedAt/EndedAt bound admission into the live session.
type Consultation struct {
	ID         int  `gorm:"primaryKey;autoIncrement"`
	EmployeeID int  `gorm:"not null;index:idx_consultations_employee_time"`
	GuardianID int  `gorm:"not null;index"`
	SeniorID   int  `gorm:"not null;index"`
	Employee   User `gorm:"foreignKey:EmployeeID"`
	Guardian   User `gorm:"foreignKey:GuardianID"`
	Senior     Senior

	MeetingTime time.Time          `gorm:"not null;index:idx_consultations_employee_time"`
	MatchedAt   time.Time          `gorm:"not null"`
	Status      ConsultationStatus `gorm:"type:varchar(16);not null"`

	Title          string
	MeetingType    string `gorm:"type:varchar(16)"`
	Content        string `gorm:"type:text"`
	Classification string
	HospitalName   string
	DoctorName     string
	AlgorithmInfo  string

	StartedAt    time.Time
	EndedAt      time.Time
	RecordingURL string

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
	IsDeleted bool `gorm:"default:false"`
}
