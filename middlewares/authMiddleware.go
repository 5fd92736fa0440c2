package middlewares

import (
	"errors"
	"net/http"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/gin-gonic/gin"
)

const currentUserKey = "currentUser"

// RequireStoreUser loads the session user and scopes the request to the
// store they own or work for. Admins are not bound to a store; they may
// pick one with the x-store-id header.
func RequireStoreUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		username, ok := utils.GetUsernameFromContext(ctx)
		if !ok || username == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		user, err := models.GetUserByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			config.LogError(config.GetLogger(), "authMiddleware.go", "RequireStoreUser", "GetUserByUsername", username, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if user.IsActive == nil || !*user.IsActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": models.ErrUserDisabled.Error()})
			return
		}

		store, err := models.ResolveUserStore(ctx, user)
		switch {
		case errors.Is(err, utils.ErrorForbidden):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "no store for this account"})
			return
		case errors.Is(err, models.ErrStoreDisabled):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		case err != nil:
			config.LogError(config.GetLogger(), "authMiddleware.go", "RequireStoreUser", "ResolveUserStore", user.ID, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		ctx = utils.SetUserIdInContext(ctx, user.ID)
		ctx = utils.SetUserNameInContext(ctx, user.Name)
		if store != nil {
			ctx = utils.SetStoreIdInContext(ctx, store.ID)
		} else {
			ctx = utils.SetIsAdminInContext(ctx, true)
			if storeId := c.GetHeader("x-store-id"); storeId != "" {
				ctx = utils.SetStoreIdInContext(ctx, storeId)
			}
		}
		c.Set(currentUserKey, user)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireOwner must run after RequireStoreUser.
func RequireOwner() gin.HandlerFunc {
	return requireRole(models.UserRoleOwner, models.UserRoleAdmin)
}

// RequireAdmin must run after RequireStoreUser.
func RequireAdmin() gin.HandlerFunc {
	return requireRole(models.UserRoleAdmin)
}

// RequireStoreScope rejects admin requests that did not pick a store.
func RequireStoreScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetStoreIdFromContext(c.Request.Context()); !ok {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": utils.ErrorStoreIdRequired.Error()})
			return
		}
		c.Next()
	}
}

func requireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		for _, r := range roles {
			if user.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

// CurrentUser is the user loaded by RequireStoreUser, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
