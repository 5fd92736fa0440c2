package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"github.com/gin-gonic/gin"
)

func listZones(c *gin.Context) {
	zones, err := models.GetDeliveryZones(c.Request.Context())
	if err != nil {
		respondError(c, "listZones", err)
		return
	}
	c.JSON(http.StatusOK, zones)
}

func getZone(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	zone, err := models.GetDeliveryZone(c.Request.Context(), id)
	if err != nil {
		respondError(c, "getZone", err)
		return
	}
	c.JSON(http.StatusOK, zone)
}

func createZone(c *gin.Context) {
	var input models.NewDeliveryZone
	if !bindJSON(c, &input) {
		return
	}
	zone, err := models.CreateDeliveryZone(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "createZone", err)
		return
	}
	c.JSON(http.StatusCreated, zone)
}

func updateZone(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input models.NewDeliveryZone
	if !bindJSON(c, &input) {
		return
	}
	zone, err := models.UpdateDeliveryZone(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, "updateZone", err)
		return
	}
	c.JSON(http.StatusOK, zone)
}

func deleteZone(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	zone, err := models.DeleteDeliveryZone(c.Request.Context(), id)
	if err != nil {
		respondError(c, "deleteZone", err)
		return
	}
	c.JSON(http.StatusOK, zone)
}

func toggleZone(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req toggleActiveRequest
	if !bindJSON(c, &req) {
		return
	}
	zone, err := models.ToggleActiveDeliveryZone(c.Request.Context(), id, *req.IsActive)
	if err != nil {
		respondError(c, "toggleZone", err)
		return
	}
	c.JSON(http.StatusOK, zone)
}

// quoteDelivery serves both the dashboard and the widget; the store is
// already in the request context.
func quoteDelivery(c *gin.Context) {
	var input models.QuoteInput
	if !bindJSON(c, &input) {
		return
	}
	quote, err := models.QuoteDeliveryFee(c.Request.Context(), input)
	if err != nil {
		respondError(c, "quoteDelivery", err)
		return
	}
	c.JSON(http.StatusOK, quote)
}
