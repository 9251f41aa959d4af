package dto

// GuardianAvailabilityRequest submits the slots a guardian can attend for
// one senior. Timestamps are yyyyMMddHHmmss.
type GuardianAvailabilityRequest struct {
	SeniorID      int      `json:"seniorId" binding:"required"`
	AvailableTime []string `json:"availableTime" binding:"required,min=1"`
}

// EmployeeScheduleRequest declares an employee's open slots for the seniors
// in their care.
type EmployeeScheduleRequest struct {
	Seniors       []int    `json:"seniors" binding:"required,min=1"`
	AvailableTime []string `json:"availableTime" binding:"required,min=1"`
	ExpiresAt     string   `json:"expiresAt"`
}

type GuardianAvailabilityResponse struct {
	UserID        int      `json:"userId"`
	SeniorID      int      `json:"seniorId"`
	AvailableTime []string `json:"availableTime"`
	RequestedAt   string   `json:"requestedAt"`
	Status        string   `json:"status"`
}

type EmployeeScheduleResponse struct {
	EmployeeID    int      `json:"employeeId"`
	Seniors       []int    `json:"seniors"`
	AvailableTime []string `json:"availableTime"`
	CreatedAt     string   `json:"createdAt"`
	ExpiresAt     string   `json:"expiresAt"`
}
