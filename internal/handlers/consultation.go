package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/carelink/backend/internal/consultations"
	"github.com/carelink/backend/internal/database"
	"github.com/carelink/backend/internal/handlers/dto"
	"github.com/carelink/backend/internal/middleware"
	"github.com/carelink/backend/internal/models"
	"github.com/carelink/backend/pkg/timefmt"
)

type ConsultationHandler struct {
	svc *consultations.Service
	db  *database.Database
}

func NewConsultationHandler(svc *consultations.Service, db *database.Database) *ConsultationHandler {
	return &ConsultationHandler{svc: svc, db: db}
}

func (h *ConsultationHandler) requester(c *gin.Context) (*models.User, bool) {
	userID := c.MustGet(middleware.UserIDKey).(int)
	user, err := h.db.GetUser(userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return nil, false
	}
	return user, true
}

// GetConsultation returns one consultation. Non-participants get a 404.
func (h *ConsultationHandler) GetConsultation(c *gin.Context) {
	user, ok := h.requester(c)
	if !ok {
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid consultation id"})
		return
	}

	record, err := h.svc.Get(c.Request.Context(), id, user)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, consultationResponse(record))
}

// CreateConsultation books a consultation directly, without the matcher.
func (h *ConsultationHandler) CreateConsultation(c *gin.Context) {
	var req dto.CreateConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meetingTime, err := timefmt.Parse(req.MeetingTime)
	if err != nil {
		respondError(c, err)
		return
	}

	record, err := h.svc.Create(c.Request.Context(), consultations.CreateParams{
		EmployeeID:  req.EmployeeID,
		GuardianID:  req.GuardianID,
		SeniorID:    req.SeniorID,
		MeetingTime: meetingTime,
		Title:       req.Title,
		MeetingType: req.MeetingType,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, consultationResponse(record))
}

// CreateDoctorConsultation books an external doctor visit.
func (h *ConsultationHandler) CreateDoctorConsultation(c *gin.Context) {
	var req dto.DoctorConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meetingTime, err := timefmt.Parse(req.MeetingTime)
	if err != nil {
		respondError(c, err)
		return
	}

	record, err := h.svc.Create(c.Request.Context(), consultations.CreateParams{
		EmployeeID:  req.EmployeeID,
		GuardianID:  req.GuardianID,
		SeniorID:    req.SeniorID,
		MeetingTime: meetingTime,
		Title:       req.Title,
		MeetingType: models.MeetingTypeDoctor,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if req.HospitalName != "" || req.DoctorName != "" {
		record, err = h.svc.UpdateMetadata(c.Request.Context(), record.ID, consultations.Metadata{
			HospitalName: &req.HospitalName,
			DoctorName:   &req.DoctorName,
		})
		if err != nil {
			respondError(c, err)
			return
		}
	}

	c.JSON(http.StatusCreated, consultationResponse(record))
}

// UpdateConsultation applies partial metadata changes.
func (h *ConsultationHandler) UpdateConsultation(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid consultation id"})
		return
	}

	var req dto.UpdateConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.svc.UpdateMetadata(c.Request.Context(), id, consultations.Metadata{
		Title:          req.Title,
		Content:        req.Content,
		Classification: req.Classification,
		HospitalName:   req.HospitalName,
		DoctorName:     req.DoctorName,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, consultationResponse(record))
}

// UpdateStatus moves the consultation through its lifecycle. CONDUCTED is the
// staff confirmation path and requires the meeting time to have passed.
func (h *ConsultationHandler) UpdateStatus(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid consultation id"})
		return
	}

	var req dto.StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch models.ConsultationStatus(req.Status) {
	case models.StatusConducted:
		err = h.svc.Confirm(c.Request.Context(), id)
	case models.StatusCanceled:
		err = h.svc.Cancel(c.Request.Context(), id)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "status updated"})
}

// ListConsultations pages the caller's consultations of one meeting type
// inside a date range.
func (h *ConsultationHandler) ListConsultations(c *gin.Context) {
	user, ok := h.requester(c)
	if !ok {
		return
	}

	meetingType := c.DefaultQuery("meetingType", models.MeetingTypeEmployee)
	if meetingType != models.MeetingTypeEmployee && meetingType != models.MeetingTypeDoctor {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meeting type"})
		return
	}

	start, err := timefmt.ParseDate(c.Query("startDate"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "startDate must be yyyyMMdd"})
		return
	}
	end, err := timefmt.ParseDate(c.Query("endDate"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endDate must be yyyyMMdd"})
		return
	}
	// endDate is inclusive: extend to the end of that day.
	end = end.AddDate(0, 0, 1).Add(-1)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))

	items, total, err := h.svc.ListByType(c.Request.Context(), user, meetingType, start, end, page, size)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.ConsultationListResponse{
		Items: make([]dto.ConsultationResponse, len(items)),
		Total: total,
		Page:  page,
		Size:  size,
	}
	for i := range items {
		resp.Items[i] = consultationResponse(&items[i])
	}

	c.JSON(http.StatusOK, resp)
}

func consultationResponse(r *models.Consultation) dto.ConsultationResponse {
	return dto.ConsultationResponse{
		ID:             r.ID,
		EmployeeID:     r.EmployeeID,
		GuardianID:     r.GuardianID,
		SeniorID:       r.SeniorID,
		MeetingTime:    timefmt.Format(r.MeetingTime),
		MatchedAt:      timefmt.Format(r.MatchedAt),
		Status:         string(r.Status),
		Title:          r.Title,
		MeetingType:    r.MeetingType,
		Content:        r.Content,
		Classification: r.Classification,
		HospitalName:   r.HospitalName,
		DoctorName:     r.DoctorName,
		StartedAt:      timefmt.Format(r.StartedAt),
		EndedAt:        timefmt.Format(r.EndedAt),
		RecordingURL:   r.RecordingURL,
		CreatedAt:      timefmt.Format(r.CreatedAt),
	}
}
