package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/carelink/backend/internal/admission"
	"github.com/carelink/backend/internal/handlers/dto"
	"github.com/carelink/backend/internal/recording"
)

type VideoHandler struct {
	admission   *admission.Controller
	coordinator *recording.Coordinator
}

func NewVideoHandler(adm *admission.Controller, coordinator *recording.Coordinator) *VideoHandler {
	return &VideoHandler{admission: adm, coordinator: coordinator}
}

// IssueMeetingCode creates or returns the join code for a consultation.
func (h *VideoHandler) IssueMeetingCode(c *gin.Context) {
	meetingID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid consultation id"})
		return
	}

	code, err := h.admission.IssueMeetingCode(c.Request.Context(), meetingID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MeetingCodeResponse{MeetingCode: code})
}

// ResolveCode reveals which meeting a code belongs to.
func (h *VideoHandler) ResolveCode(c *gin.Context) {
	info, err := h.admission.ResolveCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// Join exchanges a meeting code for a session token, inside the admission
// window only.
func (h *VideoHandler) Join(c *gin.Context) {
	var req dto.JoinMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.admission.JoinSession(c.Request.Context(), admission.JoinRequest{
		MeetingCode: req.MeetingCode,
		UserID:      req.UserID,
		UserType:    req.UserType,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.JoinMeetingResponse{
		Token:      result.Token,
		Room:       result.Room,
		Identity:   result.Identity,
		MeetingID:  result.Info.MeetingID,
		SeniorName: result.Info.SeniorName,
	})
}

// StartRecording begins the room's audio recording.
func (h *VideoHandler) StartRecording(c *gin.Context) {
	var req dto.RecordingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := h.coordinator.StartRecording(c.Request.Context(), req.Room)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// StopRecording stops the room's recording. Always succeeds when nothing is
// recording.
func (h *VideoHandler) StopRecording(c *gin.Context) {
	var req dto.RecordingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.coordinator.StopRecording(c.Request.Context(), req.Room); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "recording stopped"})
}

// LatestRecording returns the most recent recording metadata for a room.
func (h *VideoHandler) LatestRecording(c *gin.Context) {
	info, ok := h.coordinator.LatestRecording(c.Param("room"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no recording for room"})
		return
	}

	c.JSON(http.StatusOK, info)
}

// Webhook consumes provider callbacks. Only egress_ended drives state; other
// events are acknowledged and dropped.
func (h *VideoHandler) Webhook(c *gin.Context) {
	var event dto.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if event.Event != "egress_ended" || event.EgressInfo == nil {
		c.Status(http.StatusOK)
		return
	}

	ended := recording.EgressEndedEvent{
		EgressID: event.EgressInfo.EgressID,
		RoomName: event.EgressInfo.RoomName,
		Status:   event.EgressInfo.Status,
	}
	if len(event.EgressInfo.FileResults) > 0 {
		ended.FileName = event.EgressInfo.FileResults[0].Filename
	}

	if err := h.coordinator.HandleEgressEnded(c.Request.Context(), ended); err != nil {
		// The provider retries on non-2xx; log and accept so a permanently
		// broken event cannot loop forever.
		log.Error().Err(err).Str("egress_id", ended.EgressID).Msg("egress completion failed")
	}

	c.Status(http.StatusOK)
}
