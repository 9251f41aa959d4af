package handlers

import (
	"errors"
	"net/http"

	"github.com/carelink/backend/internal/admission"
	"github.com/carelink/backend/internal/availability"
	"github.com/carelink/backend/internal/consultations"
	"github.com/carelink/backend/internal/recording"
	"github.com/carelink/backend/internal/session"
	"github.com/carelink/backend/internal/verification"
	"github.com/carelink/backend/pkg/timefmt"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// respondError maps domain errors onto HTTP statuses. Anything unmapped is a
// 500 with a generic body so internals never leak to clients.
func respondError(c *gin.Context, err error) {
	var we *admission.WindowError
	if errors.As(err, &we) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":    we.Error(),
			"opensAt":  timefmt.Format(we.OpensAt),
			"closedAt": timefmt.Format(we.ClosedAt),
			"tooEarly": we.TooEarly,
		})
		return
	}

	switch {
	case availability.IsValidation(err),
		errors.Is(err, timefmt.ErrBadTimestamp),
		errors.Is(err, admission.ErrBadUserType),
		errors.Is(err, verification.ErrCodeInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, admission.ErrIdentityMismatch):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})

	case errors.Is(err, availability.ErrNotFound),
		errors.Is(err, consultations.ErrNotFound),
		errors.Is(err, admission.ErrCodeNotFound),
		errors.Is(err, admission.ErrMeetingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, consultations.ErrConflict),
		errors.Is(err, consultations.ErrCanceled),
		errors.Is(err, consultations.ErrAlreadyConducted),
		errors.Is(err, consultations.ErrNotYetHeld),
		errors.Is(err, consultations.ErrBadTransition),
		errors.Is(err, recording.ErrNoActiveSession),
		errors.Is(err, recording.ErrRecordingInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case session.IsProviderError(err):
		log.Error().Err(err).Msg("session provider call failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "session provider unavailable"})

	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("unhandled error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
