package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/testsupport"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// asUser stands in for SessionMiddleware, which needs redis.
func asUser(username string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if username != "" {
			c.Request = c.Request.WithContext(utils.SetUsernameInContext(c.Request.Context(), username))
		}
		c.Next()
	}
}

type scope struct {
	StoreId string `json:"store_id"`
	UserId  int    `json:"user_id"`
	IsAdmin bool   `json:"is_admin"`
}

func echoScope(c *gin.Context) {
	ctx := c.Request.Context()
	storeId, _ := utils.GetStoreIdFromContext(ctx)
	userId, _ := utils.GetUserIdFromContext(ctx)
	isAdmin, _ := utils.GetIsAdminFromContext(ctx)
	c.JSON(http.StatusOK, scope{StoreId: storeId, UserId: userId, IsAdmin: isAdmin})
}

func seedStore(t *testing.T) *models.Store {
	t.Helper()
	testsupport.OpenDB(t, models.AllModels()...)
	store, err := models.CreateStore(context.Background(), &models.NewStore{
		NewStoreProfile: models.NewStoreProfile{Name: "Shop", Slug: "shop"},
		OwnerUsername:   "owner",
		OwnerName:       "Owner",
		OwnerPassword:   "secret123",
	})
	require.NoError(t, err)
	return store
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSessionMiddleware_UnknownTokenIsRejected(t *testing.T) {
	r := gin.New()
	r.Use(SessionMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("token", "nope")
	w = serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireStoreUser_ScopesToOwnedStore(t *testing.T) {
	store := seedStore(t)

	for _, tc := range []struct {
		name     string
		username string
		want     int
	}{
		{"no session", "", http.StatusUnauthorized},
		{"unknown user", "ghost", http.StatusUnauthorized},
		{"owner", "owner", http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/", asUser(tc.username), RequireStoreUser(), echoScope)
			w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
			require.Equal(t, tc.want, w.Code, w.Body.String())
			if tc.want == http.StatusOK {
				assert.Contains(t, w.Body.String(), store.ID)
				assert.Contains(t, w.Body.String(), `"is_admin":false`)
			}
		})
	}
}

func TestRequireStoreUser_AdminPicksStore(t *testing.T) {
	store := seedStore(t)
	_, created, err := models.EnsureAdminUser(context.Background(), "root", "Root", "secret123")
	require.NoError(t, err)
	require.True(t, created)

	r := gin.New()
	r.GET("/", asUser("root"), RequireStoreUser(), RequireAdmin(), RequireStoreScope(), echoScope)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("x-store-id", store.ID)
	w = serve(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"is_admin":true`)
	assert.Contains(t, w.Body.String(), store.ID)
}

func TestRequireAdmin_RejectsOwner(t *testing.T) {
	seedStore(t)
	r := gin.New()
	r.GET("/", asUser("owner"), RequireStoreUser(), RequireAdmin(), echoScope)
	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	r = gin.New()
	r.GET("/", asUser("owner"), RequireStoreUser(), RequireOwner(), echoScope)
	w = serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDriverAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/", DriverAuthMiddleware(), func(c *gin.Context) {
		driverId, _ := utils.GetDriverIdFromContext(c.Request.Context())
		storeId, _ := utils.GetStoreIdFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"driver_id": driverId, "store_id": storeId})
	})

	token, err := utils.JwtGenerateDriver(7, "store-a")
	require.NoError(t, err)

	for _, tc := range []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := serve(r, req)
			require.Equal(t, tc.want, w.Code)
			if tc.want == http.StatusOK {
				assert.JSONEq(t, `{"driver_id":7,"store_id":"store-a"}`, w.Body.String())
			}
		})
	}
}

func TestRateLimiter_AllowsWithoutRedis(t *testing.T) {
	r := gin.New()
	r.GET("/", NewRateLimiter("test", 1, time.Minute, nil).Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	for i := 0; i < 3; i++ {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}
