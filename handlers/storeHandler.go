package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"github.com/gin-gonic/gin"
)

type toggleActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

func getStore(c *gin.Context) {
	store, err := models.GetStore(c.Request.Context())
	if err != nil {
		respondError(c, "getStore", err)
		return
	}
	c.JSON(http.StatusOK, store)
}

func updateStore(c *gin.Context) {
	var input models.NewStoreProfile
	if !bindJSON(c, &input) {
		return
	}
	store, err := models.UpdateStore(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "updateStore", err)
		return
	}
	c.JSON(http.StatusOK, store)
}

// admin

func createStore(c *gin.Context) {
	var input models.NewStore
	if !bindJSON(c, &input) {
		return
	}
	store, err := models.CreateStore(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "createStore", err)
		return
	}
	c.JSON(http.StatusCreated, store)
}

func listStores(c *gin.Context) {
	stores, err := models.GetStores(c.Request.Context(), c.Query("name"))
	if err != nil {
		respondError(c, "listStores", err)
		return
	}
	c.JSON(http.StatusOK, stores)
}

func toggleStore(c *gin.Context) {
	var req toggleActiveRequest
	if !bindJSON(c, &req) {
		return
	}
	store, err := models.ToggleActiveStore(c.Request.Context(), c.Param("id"), *req.IsActive)
	if err != nil {
		respondError(c, "toggleStore", err)
		return
	}
	c.JSON(http.StatusOK, store)
}
