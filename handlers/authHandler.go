package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/commerce_backend/middlewares"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

func login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	info, err := models.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func logout(c *gin.Context) {
	ok, err := models.Logout(c.Request.Context())
	if err != nil {
		respondError(c, "logout", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": ok})
}

func me(c *gin.Context) {
	user := middlewares.CurrentUser(c)
	resp := gin.H{"user": user}
	if store, err := models.GetStore(c.Request.Context()); err == nil {
		resp["store"] = store
	}
	c.JSON(http.StatusOK, resp)
}

func changePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := models.ChangePassword(c.Request.Context(), req.OldPassword, req.NewPassword); err != nil {
		respondError(c, "changePassword", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func listStoreUsers(c *gin.Context) {
	users, err := models.GetStoreUsers(c.Request.Context())
	if err != nil {
		respondError(c, "listStoreUsers", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func createStaffUser(c *gin.Context) {
	var input models.NewUser
	if !bindJSON(c, &input) {
		return
	}
	user, err := models.CreateStaffUser(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "createStaffUser", err)
		return
	}
	c.JSON(http.StatusCreated, user)
}
