package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/models/reports"
	"github.com/gin-gonic/gin"
)

type createPayoutRequest struct {
	DriverId  int        `json:"driver_id" binding:"required,gt=0"`
	PeriodEnd *time.Time `json:"period_end"`
}

type payReferenceRequest struct {
	Reference string `json:"reference" binding:"max=100"`
}

func listPayouts(c *gin.Context) {
	driverId, ok := optionalIntQuery(c, "driver_id")
	if !ok {
		return
	}
	var status *models.PayoutStatus
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		s := models.PayoutStatus(raw)
		status = &s
	}
	payouts, err := models.GetDriverPayouts(c.Request.Context(), driverId, status)
	if err != nil {
		respondError(c, "listPayouts", err)
		return
	}
	c.JSON(http.StatusOK, payouts)
}

// createPayout bundles the driver's unpaid earnings up to period_end (default now).
func createPayout(c *gin.Context) {
	var req createPayoutRequest
	if !bindJSON(c, &req) {
		return
	}
	periodEnd := time.Now().UTC()
	if req.PeriodEnd != nil {
		periodEnd = req.PeriodEnd.UTC()
	}
	payout, err := models.CreateDriverPayout(c.Request.Context(), req.DriverId, periodEnd)
	if err != nil {
		respondError(c, "createPayout", err)
		return
	}
	c.JSON(http.StatusCreated, payout)
}

func getPayout(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	payout, err := models.GetDriverPayout(c.Request.Context(), id)
	if err != nil {
		respondError(c, "getPayout", err)
		return
	}
	c.JSON(http.StatusOK, payout)
}

func markPayoutPaid(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req payReferenceRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	payout, err := models.MarkPayoutPaid(c.Request.Context(), id, req.Reference)
	if err != nil {
		respondError(c, "markPayoutPaid", err)
		return
	}
	c.JSON(http.StatusOK, payout)
}

func voidPayout(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	payout, err := models.VoidPayout(c.Request.Context(), id)
	if err != nil {
		respondError(c, "voidPayout", err)
		return
	}
	c.JSON(http.StatusOK, payout)
}

func exportPayout(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	f, err := reports.ExportPayoutStatement(c.Request.Context(), id)
	if err != nil {
		respondError(c, "exportPayout", err)
		return
	}
	defer f.Close()
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="payout-%d.xlsx"`, id))
	c.Header("Content-Type", reports.XlsxContentType)
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		respondError(c, "exportPayout", err)
	}
}
