package models

import (
	"time"
)

// AvailabilityRequest is a guardian's set of requested consultation slots for
// one senior. Held in Redis until matched, canceled or expired.
type AvailabilityRequest struct {
	UserID      int                `json:"userId"`
	SeniorID    int                `json:"seniorId"`
	Slots       []time.Time        `json:"availableTime"`
	RequestedAt time.Time          `json:"requestedAt"`
	Status      ConsultationStatus `json:"status"`
}

// AvailabilitySchedule is an employee's declared open slots, applying to all
// seniors the employee is linked to. Ineligible for matching past ExpiresAt.
type AvailabilitySchedule struct {
	EmployeeID int         `json:"employeeId"`
	SeniorIDs  []int       `json:"seniors"`
	Slots      []time.Time `json:"availableTime"`
	CreatedAt  time.Time   `json:"createdAt"`
	ExpiresAt  time.Time   `json:"expiresAt"`
}

// Expired reports whether the schedule is past its expiry at the given
// instant. Expiry is evaluated lazily at read time.
func (s AvailabilitySchedule) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// MatchedMeeting is the immutable output of one matcher pick and the seed
// for a Consultation record.
type MatchedMeeting struct {
	EmployeeID  int       `json:"employeeId"`
	GuardianID  int       `json:"guardianId"`
	SeniorID    int       `json:"seniorId"`
	MeetingTime time.Time `json:"meetingTime"`
	MatchedAt   time.Time `json:"matchedAt"`
}
