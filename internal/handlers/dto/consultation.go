package dto

// CreateConsultationRequest is the staff path for booking a consultation
// directly, bypassing the matcher.
type CreateConsultationRequest struct {
	EmployeeID  int    `json:"employeeId" binding:"required"`
	GuardianID  int    `json:"guardianId" binding:"required"`
	SeniorID    int    `json:"seniorId" binding:"required"`
	MeetingTime string `json:"meetingTime" binding:"required"`
	Title       string `json:"title"`
	MeetingType string `json:"meetingType" binding:"omitempty,oneof=withEmployee withDoctor"`
}

// DoctorConsultationRequest books an external doctor visit.
type DoctorConsultationRequest struct {
	EmployeeID   int    `json:"employeeId" binding:"required"`
	GuardianID   int    `json:"guardianId" binding:"required"`
	SeniorID     int    `json:"seniorId" binding:"required"`
	MeetingTime  string `json:"meetingTime" binding:"required"`
	Title        string `json:"title"`
	HospitalName string `json:"hospitalName"`
	DoctorName   string `json:"doctorName"`
}

// UpdateConsultationRequest carries partial metadata updates. Absent fields
// stay untouched.
type UpdateConsultationRequest struct {
	Title          *string `json:"title"`
	Content        *string `json:"content"`
	Classification *string `json:"classification"`
	HospitalName   *string `json:"hospitalName"`
	DoctorName     *string `json:"doctorName"`
}

type StatusUpdateRequest struct {
	Status string `json:"status" binding:"required,oneof=CONDUCTED CANCELED"`
}

type ConsultationResponse struct {
	ID             int    `json:"id"`
	EmployeeID     int    `json:"employeeId"`
	GuardianID     int    `json:"guardianId"`
	SeniorID       int    `json:"seniorId"`
	MeetingTime    string `json:"meetingTime"`
	MatchedAt      string `json:"matchedAt"`
	Status         string `json:"status"`
	Title          string `json:"title"`
	MeetingType    string `json:"meetingType"`
	Content        string `json:"content,omitempty"`
	Classification string `json:"classification,omitempty"`
	HospitalName   string `json:"hospitalName,omitempty"`
	DoctorName     string `json:"doctorName,omitempty"`
	StartedAt      string `json:"startedAt"`
	EndedAt        string `json:"endedAt"`
	RecordingURL   string `json:"recordingUrl,omitempty"`
	CreatedAt      string `json:"createdAt"`
}

type ConsultationListResponse struct {
	Items []ConsultationResponse `json:"items"`
	Total int64                  `json:"total"`
	Page  int                    `json:"page"`
	Size  int                    `json:"size"`
}
