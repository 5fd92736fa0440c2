package handlers

import (
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/models/reports"
	"github.com/gin-gonic/gin"
)

// deliveryPerformance reports [from, to); to defaults to now and from to 30 days before it.
// ?format=xlsx downloads the same report as a workbook.
func deliveryPerformance(c *gin.Context) {
	from, ok := parseDateQuery(c, "from")
	if !ok {
		return
	}
	to, ok := parseDateQuery(c, "to")
	if !ok {
		return
	}
	end := time.Now().UTC()
	if to != nil {
		end = *to
	}
	start := end.AddDate(0, 0, -30)
	if from != nil {
		start = *from
	}

	report, err := reports.GetDeliveryPerformanceReport(c.Request.Context(), start, end)
	if err != nil {
		respondError(c, "deliveryPerformance", err)
		return
	}
	if c.Query("format") != "xlsx" {
		c.JSON(http.StatusOK, report)
		return
	}

	f, err := reports.ExportDeliveryPerformance(report)
	if err != nil {
		respondError(c, "deliveryPerformance", err)
		return
	}
	defer f.Close()
	c.Header("Content-Disposition", `attachment; filename="delivery-performance.xlsx"`)
	c.Header("Content-Type", reports.XlsxContentType)
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		respondError(c, "deliveryPerformance", err)
	}
}
