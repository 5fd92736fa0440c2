package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"github.com/gin-gonic/gin"
)

func listDrivers(c *gin.Context) {
	var (
		drivers []*models.Driver
		err     error
	)
	if c.Query("available") == "true" {
		drivers, err = models.ListAvailableDrivers(c.Request.Context())
	} else {
		drivers, err = models.GetDrivers(c.Request.Context())
	}
	if err != nil {
		respondError(c, "listDrivers", err)
		return
	}
	c.JSON(http.StatusOK, drivers)
}

func getDriver(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	driver, err := models.GetDriver(c.Request.Context(), id)
	if err != nil {
		respondError(c, "getDriver", err)
		return
	}
	c.JSON(http.StatusOK, driver)
}

func createDriver(c *gin.Context) {
	var input models.NewDriver
	if !bindJSON(c, &input) {
		return
	}
	driver, err := models.CreateDriver(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "createDriver", err)
		return
	}
	c.JSON(http.StatusCreated, driver)
}

func updateDriver(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input models.NewDriver
	if !bindJSON(c, &input) {
		return
	}
	driver, err := models.UpdateDriver(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, "updateDriver", err)
		return
	}
	c.JSON(http.StatusOK, driver)
}

func toggleDriver(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req toggleActiveRequest
	if !bindJSON(c, &req) {
		return
	}
	driver, err := models.ToggleActiveDriver(c.Request.Context(), id, *req.IsActive)
	if err != nil {
		respondError(c, "toggleDriver", err)
		return
	}
	c.JSON(http.StatusOK, driver)
}

func getDriverBalance(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	balance, err := models.GetDriverBalance(c.Request.Context(), id)
	if err != nil {
		respondError(c, "getDriverBalance", err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

func listDriverEarnings(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	earnings, err := models.ListDriverEarnings(c.Request.Context(), id, c.Query("unpaid") == "true")
	if err != nil {
		respondError(c, "listDriverEarnings", err)
		return
	}
	c.JSON(http.StatusOK, earnings)
}
