package dto

// JoinMeetingRequest exchanges a meeting code for a session token.
type JoinMeetingRequest struct {
	MeetingCode string `json:"meetingCode" binding:"required"`
	UserID      int    `json:"userId" binding:"required"`
	UserType    string `json:"userType" binding:"required,oneof=employee guardian"`
}

type JoinMeetingResponse struct {
	Token      string `json:"token"`
	Room       string `json:"room"`
	Identity   string `json:"identity"`
	MeetingID  int    `json:"meetingId"`
	SeniorName string `json:"seniorName"`
}

type MeetingCodeResponse struct {
	MeetingCode string `json:"meetingCode"`
}

type RecordingRequest struct {
	Room string `json:"room" binding:"required"`
}

// WebhookEvent is the session provider's callback payload. Only egress
// lifecycle events are consumed.
type WebhookEvent struct {
	Event      string `json:"event"`
	EgressInfo *struct {
		EgressID string `json:"egressId"`
		RoomName string `json:"roomName"`
		Status   string `json:"status"`
		FileResults []struct {
			Filename string `json:"filename"`
		} `json:"fileResults"`
	} `json:"egressInfo"`
}

// DrugSummaryResponse acknowledges an uploaded medication photo.
type DrugSummaryResponse struct {
	SeniorID int    `json:"seniorId"`
	ImageURL string `json:"imageUrl"`
}
