package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type outboxReferenceRequest struct {
	ReferenceType string `json:"reference_type" binding:"required"`
	ReferenceId   int    `json:"reference_id" binding:"required,gt=0"`
}

type outboxReplayRequest struct {
	StoreId  string `json:"store_id" binding:"required"`
	RecordId int    `json:"record_id" binding:"required,gt=0"`
}

type revertDeadRequest struct {
	StoreId string `json:"store_id" binding:"required"`
}

// listHistory returns the audit trail of one record, newest first.
func listHistory(c *gin.Context) {
	referenceType := strings.TrimSpace(c.Query("reference_type"))
	referenceId, err := strconv.Atoi(c.Query("reference_id"))
	if referenceType == "" || err != nil || referenceId <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reference_type and reference_id are required"})
		return
	}
	histories, err := models.GetHistories(c.Request.Context(), referenceType, referenceId)
	if err != nil {
		respondError(c, "listHistory", err)
		return
	}
	c.JSON(http.StatusOK, histories)
}

func outboxStatus(c *gin.Context) {
	referenceType := strings.TrimSpace(c.Query("reference_type"))
	referenceId, err := strconv.Atoi(c.Query("reference_id"))
	if referenceType == "" || err != nil || referenceId <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reference_type and reference_id are required"})
		return
	}
	status, err := models.GetOutboxStatus(c.Request.Context(), referenceType, referenceId)
	if err != nil {
		respondError(c, "outboxStatus", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func reprocessOutbox(c *gin.Context) {
	var req outboxReferenceRequest
	if !bindJSON(c, &req) {
		return
	}
	status, err := models.ReprocessOutbox(c.Request.Context(), req.ReferenceType, req.ReferenceId)
	if err != nil {
		respondError(c, "reprocessOutbox", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func listDeadOutbox(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := models.ListDeadOutbox(c.Request.Context(), limit)
	if err != nil {
		respondError(c, "listDeadOutbox", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func replayOutboxRecord(c *gin.Context) {
	var req outboxReplayRequest
	if !bindJSON(c, &req) {
		return
	}
	rec, err := models.ReplayOutboxRecord(c.Request.Context(), req.StoreId, req.RecordId)
	if err != nil {
		respondError(c, "replayOutboxRecord", err)
		return
	}
	config.GetLogger().WithFields(logrus.Fields{
		"store_id":  req.StoreId,
		"record_id": req.RecordId,
	}).Info("[outbox.replay]")
	c.JSON(http.StatusOK, gin.H{
		"store_id":                req.StoreId,
		"record_id":               rec.ID,
		"publish_status":          rec.PublishStatus,
		"processing_status":       rec.ProcessingStatus,
		"next_process_attempt_at": formatOptionalTime(rec.NextProcessAttemptAt),
	})
}

func revertDeadOutbox(c *gin.Context) {
	var req revertDeadRequest
	if !bindJSON(c, &req) {
		return
	}
	revived, err := models.RevertDeadOutbox(c.Request.Context(), req.StoreId)
	if err != nil {
		respondError(c, "revertDeadOutbox", err)
		return
	}
	config.GetLogger().WithFields(logrus.Fields{
		"store_id": req.StoreId,
		"revived":  revived,
	}).Info("[outbox.revert_dead]")
	c.JSON(http.StatusOK, gin.H{"store_id": req.StoreId, "revived": revived})
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
