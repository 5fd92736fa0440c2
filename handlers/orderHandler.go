package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/gin-gonic/gin"
)

type orderStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
	Reason string             `json:"reason"`
}

func listOrders(c *gin.Context) {
	limit, after := pageParams(c)
	var filter models.OrderFilter
	if s := c.Query("status"); s != "" {
		status := models.OrderStatus(s)
		if !status.IsValid() {
			respondError(c, "listOrders", utils.NewValidationError("unknown order status"))
			return
		}
		filter.Status = &status
	}
	customerId, ok := optionalIntQuery(c, "customer_id")
	if !ok {
		return
	}
	filter.CustomerId = customerId

	page, err := models.PaginateOrders(c.Request.Context(), limit, after, filter)
	if err != nil {
		respondError(c, "listOrders", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func getOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	order, err := models.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, "getOrder", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func createOrder(c *gin.Context) {
	var input models.NewOrder
	if !bindJSON(c, &input) {
		return
	}
	order, err := models.CreateOrder(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "createOrder", err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func updateOrderStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req orderStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := models.UpdateOrderStatus(c.Request.Context(), id, req.Status, req.Reason)
	if err != nil {
		respondError(c, "updateOrderStatus", err)
		return
	}
	c.JSON(http.StatusOK, order)
}
