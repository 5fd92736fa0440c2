package handlers

import (
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/commerce_backend/chatbot"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const widgetSessionHeader = "X-Session-Id"

type widgetMessageRequest struct {
	SessionId string `json:"session_id" binding:"max=64"`
	Message   string `json:"message" binding:"required"`
}

// widgetSession reads the visitor session from the header, falling back to
// the body's session_id. The body is cached so the handler can bind it again.
func widgetSession(c *gin.Context) string {
	if session := strings.TrimSpace(c.GetHeader(widgetSessionHeader)); session != "" {
		return session
	}
	var body struct {
		SessionId string `json:"session_id"`
	}
	if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
		return ""
	}
	return strings.TrimSpace(body.SessionId)
}

// widgetSessionKey identifies a widget visitor for rate limiting.
func widgetSessionKey(c *gin.Context) string {
	session := widgetSession(c)
	if session == "" {
		session = c.ClientIP()
	}
	return c.Param("slug") + ":" + session
}

// widgetStore resolves :slug to an active store and scopes the request to it.
func widgetStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		store, err := models.GetStoreBySlug(c.Request.Context(), c.Param("slug"))
		if err != nil {
			respondError(c, "widgetStore", err)
			return
		}
		c.Set("widgetStore", store)
		c.Request = c.Request.WithContext(utils.SystemContext(c.Request.Context(), store.ID))
		c.Next()
	}
}

type widgetHandler struct {
	bot *chatbot.Bot
}

func (h *widgetHandler) config(c *gin.Context) {
	store := c.MustGet("widgetStore").(*models.Store)
	c.JSON(http.StatusOK, h.bot.WidgetConfig(store))
}

func (h *widgetHandler) message(c *gin.Context) {
	var req widgetMessageRequest
	if !bindResult(c, c.ShouldBindBodyWith(&req, binding.JSON)) {
		return
	}
	session := widgetSession(c)
	reply, err := h.bot.HandleWidgetMessage(c.Request.Context(), c.Param("slug"), session, req.Message)
	if err != nil {
		respondError(c, "widgetMessage", err)
		return
	}
	c.JSON(http.StatusOK, reply)
}
