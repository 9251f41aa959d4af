package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carelink/backend/internal/matching"
	"github.com/carelink/backend/pkg/timefmt"
)

type MatchingHandler struct {
	matcher  *matching.Matcher
	leadDays int
}

func NewMatchingHandler(matcher *matching.Matcher, leadDays int) *MatchingHandler {
	return &MatchingHandler{matcher: matcher, leadDays: leadDays}
}

func (h *MatchingHandler) targetDate(c *gin.Context) (time.Time, bool) {
	raw := c.Query("targetDate")
	if raw == "" {
		return time.Now().UTC().AddDate(0, 0, h.leadDays), true
	}
	t, err := timefmt.ParseDate(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "targetDate must be yyyyMMdd"})
		return time.Time{}, false
	}
	return t, true
}

// RunMatching triggers a matching pass over every senior with pending
// requests. Admin only; the scheduler runs the same pass on its own.
func (h *MatchingHandler) RunMatching(c *gin.Context) {
	target, ok := h.targetDate(c)
	if !ok {
		return
	}

	matched, err := h.matcher.MatchAll(c.Request.Context(), target)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"targetDate": timefmt.FormatDate(target),
		"matched":    len(matched),
	})
}

// MatchSenior triggers a matching pass for one senior.
func (h *MatchingHandler) MatchSenior(c *gin.Context) {
	seniorID, err := strconv.Atoi(c.Param("seniorId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid senior id"})
		return
	}

	target, ok := h.targetDate(c)
	if !ok {
		return
	}

	matched, err := h.matcher.MatchSenior(c.Request.Context(), seniorID, target)
	if err != nil {
		respondError(c, err)
		return
	}

	results := make([]gin.H, len(matched))
	for i, m := range matched {
		results[i] = gin.H{
			"employeeId":  m.EmployeeID,
			"guardianId":  m.GuardianID,
			"seniorId":    m.SeniorID,
			"meetingTime": timefmt.Format(m.MeetingTime),
		}
	}

	c.JSON(http.StatusOK, gin.H{"matched": results})
}
