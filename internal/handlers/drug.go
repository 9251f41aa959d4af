package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/carelink/backend/internal/database"
	"github.com/carelink/backend/internal/handlers/dto"
	"github.com/carelink/backend/internal/messaging"
	"github.com/carelink/backend/internal/middleware"
	"github.com/carelink/backend/internal/storage"
)

type DrugHandler struct {
	db        *database.Database
	store     *storage.Store
	publisher *messaging.Publisher
}

func NewDrugHandler(db *database.Database, store *storage.Store, publisher *messaging.Publisher) *DrugHandler {
	return &DrugHandler{db: db, store: store, publisher: publisher}
}

// UploadDrugImage accepts a medication photo for a senior, stores it and
// relays it to the AI pipeline for analysis.
func (h *DrugHandler) UploadDrugImage(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(int)

	seniorID, err := strconv.Atoi(c.Param("seniorId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid senior id"})
		return
	}

	linked, err := h.db.UserLinkedToSenior(userID, seniorID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !linked {
		c.JSON(http.StatusForbidden, gin.H{"error": "not linked to this senior"})
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read image"})
		return
	}
	defer src.Close()

	object := fmt.Sprintf("drugs/%d/%s%s", seniorID, uuid.NewString(), filepath.Ext(file.Filename))
	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if _, err := h.store.Upload(c.Request.Context(), object, src, file.Size, contentType); err != nil {
		respondError(c, err)
		return
	}

	url, err := h.store.PresignedURL(c.Request.Context(), object, 24*time.Hour)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.publisher.PublishDrugSummary(c.Request.Context(), seniorID, url); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.DrugSummaryResponse{SeniorID: seniorID, ImageURL: url})
}
