package handlers

import (
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"github.com/gin-gonic/gin"
)

type staffReplyRequest struct {
	Body   string `json:"body" binding:"required,max=1000"`
	Resume bool   `json:"resume"`
}

func listConversations(c *gin.Context) {
	limit, after := pageParams(c)
	var filter models.ChatConversationFilter
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := models.ConversationStatus(raw)
		filter.Status = &status
	}
	page, err := models.PaginateConversations(c.Request.Context(), limit, after, filter)
	if err != nil {
		respondError(c, "listConversations", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func getConversationMessages(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	conv, err := models.GetConversation(ctx, id)
	if err != nil {
		respondError(c, "getConversationMessages", err)
		return
	}
	messages, err := models.GetConversationMessages(ctx, id)
	if err != nil {
		respondError(c, "getConversationMessages", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv, "messages": messages})
}

func replyConversation(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req staffReplyRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := models.StaffReply(c.Request.Context(), id, req.Body, req.Resume)
	if err != nil {
		respondError(c, "replyConversation", err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func closeConversation(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	conv, err := models.CloseConversation(c.Request.Context(), id)
	if err != nil {
		respondError(c, "closeConversation", err)
		return
	}
	c.JSON(http.StatusOK, conv)
}
