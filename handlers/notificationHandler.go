package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"github.com/gin-gonic/gin"
)

type markReadRequest struct {
	Ids []int `json:"ids"`
}

func listNotifications(c *gin.Context) {
	limit, after := pageParams(c)
	page, err := models.PaginateNotifications(c.Request.Context(), limit, after, c.Query("unread") == "true")
	if err != nil {
		respondError(c, "listNotifications", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func unreadNotificationCount(c *gin.Context) {
	count, err := models.CountUnreadNotifications(c.Request.Context())
	if err != nil {
		respondError(c, "unreadNotificationCount", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

// markNotificationsRead marks the given ids, or every unread notification when ids is empty.
func markNotificationsRead(c *gin.Context) {
	var req markReadRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	marked, err := models.MarkNotificationsRead(c.Request.Context(), req.Ids)
	if err != nil {
		respondError(c, "markNotificationsRead", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": marked})
}
