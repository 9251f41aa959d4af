package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carelink/backend/internal/availability"
	"github.com/carelink/backend/internal/database"
	"github.com/carelink/backend/internal/handlers/dto"
	"github.com/carelink/backend/internal/middleware"
	"github.com/carelink/backend/internal/models"
	"github.com/carelink/backend/pkg/timefmt"
)

type AvailabilityHandler struct {
	store availability.Store
	db    *database.Database
	ttl   time.Duration
}

func NewAvailabilityHandler(store availability.Store, db *database.Database, ttl time.Duration) *AvailabilityHandler {
	return &AvailabilityHandler{store: store, db: db, ttl: ttl}
}

// SubmitGuardianRequest registers the guardian's requested slots for one
// senior. Resubmitting replaces the previous pending request.
func (h *AvailabilityHandler) SubmitGuardianRequest(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(int)

	var req dto.GuardianAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	linked, err := h.db.UserLinkedToSenior(userID, req.SeniorID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !linked {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a guardian of this senior"})
		return
	}

	slots, err := timefmt.ParseSlots(req.AvailableTime)
	if err != nil {
		respondError(c, err)
		return
	}

	record := models.AvailabilityRequest{
		UserID:      userID,
		SeniorID:    req.SeniorID,
		Slots:       slots,
		RequestedAt: time.Now().UTC(),
		Status:      models.StatusPending,
	}
	if err := h.store.SubmitGuardianRequest(c.Request.Context(), record); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, guardianResponse(record))
}

// GetGuardianRequest returns the caller's pending request for a senior.
func (h *AvailabilityHandler) GetGuardianRequest(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(int)

	seniorID, err := strconv.Atoi(c.Param("seniorId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid senior id"})
		return
	}

	record, err := h.store.GuardianRequest(c.Request.Context(), seniorID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, guardianResponse(*record))
}

// CancelGuardianRequest withdraws the caller's pending request.
func (h *AvailabilityHandler) CancelGuardianRequest(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(int)

	seniorID, err := strconv.Atoi(c.Param("seniorId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid senior id"})
		return
	}

	if err := h.store.CancelGuardianRequest(c.Request.Context(), seniorID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "request canceled"})
}

// SubmitEmployeeSchedule registers the employee's open slots. Without an
// explicit expiresAt the schedule lives for the store TTL.
func (h *AvailabilityHandler) SubmitEmployeeSchedule(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(int)

	var req dto.EmployeeScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for _, seniorID := range req.Seniors {
		linked, err := h.db.UserLinkedToSenior(userID, seniorID)
		if err != nil {
			respondError(c, err)
			return
		}
		if !linked {
			c.JSON(http.StatusForbidden, gin.H{"error": "not assigned to all listed seniors"})
			return
		}
	}

	slots, err := timefmt.ParseSlots(req.AvailableTime)
	if err != nil {
		respondError(c, err)
		return
	}

	now := time.Now().UTC()
	expiresAt := now.Add(h.ttl)
	if req.ExpiresAt != "" {
		expiresAt, err = timefmt.Parse(req.ExpiresAt)
		if err != nil {
			respondError(c, err)
			return
		}
	}

	record := models.AvailabilitySchedule{
		EmployeeID: userID,
		SeniorIDs:  req.Seniors,
		Slots:      slots,
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
	}
	if err := h.store.SubmitEmployeeSchedule(c.Request.Context(), record); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, scheduleResponse(record))
}

// GetEmployeeSchedule returns the caller's live schedule.
func (h *AvailabilityHandler) GetEmployeeSchedule(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(int)

	record, err := h.store.EmployeeSchedule(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, scheduleResponse(*record))
}

// ListSeniors returns the seniors linked to the caller. Both sides pick a
// senior from this list before submitting availability.
func (h *AvailabilityHandler) ListSeniors(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(int)

	seniors, err := h.db.FindSeniorsByUser(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]gin.H, 0, len(seniors))
	for _, s := range seniors {
		out = append(out, gin.H{
			"id":        s.ID,
			"name":      s.Name,
			"gender":    s.Gender,
			"birthDate": timefmt.FormatDate(s.BirthDate),
		})
	}
	c.JSON(http.StatusOK, gin.H{"seniors": out})
}

func guardianResponse(r models.AvailabilityRequest) dto.GuardianAvailabilityResponse {
	return dto.GuardianAvailabilityResponse{
		UserID:        r.UserID,
		SeniorID:      r.SeniorID,
		AvailableTime: timefmt.FormatSlots(r.Slots),
		RequestedAt:   timefmt.Format(r.RequestedAt),
		Status:        string(r.Status),
	}
}

func scheduleResponse(s models.AvailabilitySchedule) dto.EmployeeScheduleResponse {
	return dto.EmployeeScheduleResponse{
		EmployeeID:    s.EmployeeID,
		Seniors:       s.SeniorIDs,
		AvailableTime: timefmt.FormatSlots(s.Slots),
		CreatedAt:     timefmt.Format(s.CreatedAt),
		ExpiresAt:     timefmt.Format(s.ExpiresAt),
	}
}
