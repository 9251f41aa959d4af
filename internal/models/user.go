package models

import (
	"time"
)

type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleGuardian Role = "GUARDIAN"
	RoleAdmin    Role = "ADMIN"
)

type User struct {
	ID           int    `gorm:"primaryKey;autoIncrement"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	PhoneNumber  string
	Role         Role `gorm:"type:varchar(16);not null;check:role IN ('EMPLOYEE','GUARDIAN','ADMIN')"`
	OrgID        *int
	LastSeenAt   time.Time
	CreatedAt    time.Time

	Organization *Organization `gorm:"foreignKey:OrgID"`
}

type Organization struct {
	ID        int    `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"not null"`
	Address   string
	CreatedAt time.Time
}

type Senior struct {
	ID        int    `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"not null"`
	Gender    string
	BirthDate time.Time
	Note      string
	OrgID     *int
	CreatedAt time.Time

	// Linked caregivers and guardians.
	Users []User `gorm:"many2many:senior_user_relations"`
}
