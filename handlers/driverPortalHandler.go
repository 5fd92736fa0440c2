package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/gin-gonic/gin"
)

type driverLoginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type driverStatusRequest struct {
	Status models.DriverStatus `json:"status" binding:"required,oneof=available offline"`
}

type locationRequest struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lng *float64 `json:"lng" binding:"required"`
}

func driverLogin(c *gin.Context) {
	var req driverLoginRequest
	if !bindJSON(c, &req) {
		return
	}
	info, err := models.DriverLogin(c.Request.Context(), req.Phone, req.Password)
	if err != nil {
		respondError(c, "driverLogin", err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func driverMe(c *gin.Context) {
	driver, err := models.CurrentDriver(c.Request.Context())
	if err != nil {
		respondError(c, "driverMe", err)
		return
	}
	c.JSON(http.StatusOK, driver)
}

func setDriverStatus(c *gin.Context) {
	var req driverStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	driverId, ok := utils.GetDriverIdFromContext(ctx)
	if !ok {
		respondError(c, "setDriverStatus", utils.ErrorUnauthorized)
		return
	}
	driver, err := models.SetDriverStatus(ctx, driverId, req.Status)
	if err != nil {
		respondError(c, "setDriverStatus", err)
		return
	}
	c.JSON(http.StatusOK, driver)
}

func myDeliveries(c *gin.Context) {
	deliveries, err := models.ListDriverDeliveries(c.Request.Context(), c.Query("include_closed") == "true")
	if err != nil {
		respondError(c, "myDeliveries", err)
		return
	}
	c.JSON(http.StatusOK, deliveries)
}

func myDelivery(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	delivery, err := models.GetDelivery(c.Request.Context(), id)
	if err != nil {
		respondError(c, "myDelivery", err)
		return
	}
	c.JSON(http.StatusOK, delivery)
}

func updateLocation(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req locationRequest
	if !bindJSON(c, &req) {
		return
	}
	loc, err := models.UpdateDriverLocation(c.Request.Context(), id, *req.Lat, *req.Lng)
	if err != nil {
		respondError(c, "updateLocation", err)
		return
	}
	c.JSON(http.StatusOK, loc)
}
