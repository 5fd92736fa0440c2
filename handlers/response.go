package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/gin-gonic/gin"
)

// statusFor maps domain errors to http codes; ok is false for unexpected errors.
func statusFor(err error) (int, bool) {
	switch {
	case utils.IsValidationError(err):
		return http.StatusBadRequest, true
	case errors.Is(err, utils.ErrorRecordNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, utils.ErrorUnauthorized),
		errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized, true
	case errors.Is(err, utils.ErrorForbidden),
		errors.Is(err, models.ErrUserDisabled),
		errors.Is(err, models.ErrStoreDisabled):
		return http.StatusForbidden, true
	case errors.Is(err, utils.ErrorStoreIdRequired):
		return http.StatusBadRequest, true
	case errors.Is(err, models.ErrDeliveryStatusConflict),
		errors.Is(err, models.ErrInvalidDeliveryTransition),
		errors.Is(err, models.ErrInvalidOrderTransition),
		errors.Is(err, models.ErrProofPhotoRequired),
		errors.Is(err, models.ErrMaxAttemptsReached),
		errors.Is(err, models.ErrDriverUnavailable),
		errors.Is(err, utils.ErrorLockBusy):
		return http.StatusConflict, true
	case errors.Is(err, models.ErrOutOfDeliveryRange),
		errors.Is(err, models.ErrInsufficientStock),
		errors.Is(err, models.ErrNoUnpaidEarnings):
		return http.StatusUnprocessableEntity, true
	}
	return http.StatusInternalServerError, false
}

// respondError writes err as {"error": msg}. Unexpected errors are logged
// and hidden from the client.
func respondError(c *gin.Context, funcName string, err error) {
	code, known := statusFor(err)
	if !known {
		config.LogError(config.GetLogger(), "handlers", funcName, c.Request.Method+" "+c.FullPath(), nil, err)
		_ = c.Error(err)
		c.AbortWithStatusJSON(code, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

// bindJSON decodes the body and renders binding failures; false means the
// response is already written.
func bindJSON(c *gin.Context, dest any) bool {
	return bindResult(c, c.ShouldBindJSON(dest))
}

func bindResult(c *gin.Context, err error) bool {
	if err != nil {
		if fields := utils.ProcessValidationErrors(err); len(fields) > 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
			return false
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

func idParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// pageParams reads ?limit=&after= for cursor pagination.
func pageParams(c *gin.Context) (int, *string) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	var after *string
	if v := strings.TrimSpace(c.Query("after")); v != "" {
		after = &v
	}
	return limit, after
}

func optionalIntQuery(c *gin.Context, name string) (*int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return nil, false
	}
	return &v, true
}

// parseDateQuery accepts RFC3339 or a plain date (YYYY-MM-DD, start of day UTC).
func parseDateQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + ", use YYYY-MM-DD"})
		return nil, false
	}
	return &t, true
}
