package middlewares

import (
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/gin-gonic/gin"
)

// DriverAuthMiddleware validates the portal bearer token and scopes the
// request to the driver and their store.
func DriverAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		const bearer = "Bearer "
		if len(auth) <= len(bearer) || !strings.EqualFold(auth[:len(bearer)], bearer) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claim, err := utils.JwtValidateDriver(strings.TrimSpace(auth[len(bearer):]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx := utils.SetStoreIdInContext(c.Request.Context(), claim.StoreId)
		ctx = utils.SetDriverIdInContext(ctx, claim.DriverId)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
