package models

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	StoreId   string    `gorm:"size:64;index" json:"store_id"`
	Username  string    `gorm:"size:100;not null;unique" json:"username"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     *string   `gorm:"size:100;unique" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      UserRole  `gorm:"size:1;not null;default:S" json:"role"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username string `json:"username" binding:"required,max=100"`
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

/*
caches:
	User:$username
	Token:$token -> username
*/

type LoginInfo struct {
	Token     string `json:"token"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	StoreId   string `json:"store_id,omitempty"`
	StoreName string `json:"store_name,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
}

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserDisabled       = errors.New("user is disabled")
	ErrStoreDisabled      = errors.New("store is disabled")
)

func sessionLifespan() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// fetchUserWithPassword always reads the db; the cached copy has no password hash.
func fetchUserWithPassword(ctx context.Context, username string) (*User, error) {
	var user User
	if err := config.GetDB().WithContext(ctx).Where("username = ?", username).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

func validateNewUsername(ctx context.Context, username, email string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return utils.NewValidationError("username is required")
	}
	if email != "" && !utils.IsValidEmail(email) {
		return utils.NewValidationError("invalid email address")
	}
	var count int64
	q := config.GetDB().WithContext(ctx).Model(&User{}).Where("username = ?", username)
	if email != "" {
		q = q.Or("email = ?", strings.ToLower(email))
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return utils.NewValidationError("duplicate username or email")
	}
	return nil
}

// GetUserByUsername reads the cached user, falling back to the db.
func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return nil, err
	}
	if exists {
		return &user, nil
	}
	if err := config.GetDB().WithContext(ctx).Where("username = ?", username).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if err := config.SetRedisObject("User:"+username, &user, sessionLifespan()); err != nil {
		return nil, err
	}
	return &user, nil
}

// ResolveUserStore finds the store a dashboard user acts on, by ownership first.
func ResolveUserStore(ctx context.Context, user *User) (*Store, error) {
	if user.Role == UserRoleAdmin {
		return nil, nil
	}
	var (
		store *Store
		err   error
	)
	if user.Role == UserRoleOwner {
		store, err = GetStoreByOwner(ctx, user.ID)
	} else {
		if user.StoreId == "" {
			return nil, utils.ErrorForbidden
		}
		store, err = GetStoreById(ctx, user.StoreId)
	}
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.ErrorForbidden
		}
		return nil, err
	}
	if store.IsActive == nil || !*store.IsActive {
		return nil, ErrStoreDisabled
	}
	return store, nil
}

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {
	user, err := fetchUserWithPassword(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := utils.ComparePassword(user.Password, password); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.IsActive == nil || !*user.IsActive {
		return nil, ErrUserDisabled
	}

	result := LoginInfo{
		Token: uuid.NewString(),
		Name:  user.Name,
		Role:  string(user.Role),
	}
	store, err := ResolveUserStore(ctx, user)
	if err != nil {
		return nil, err
	}
	if store != nil {
		result.StoreId = store.ID
		result.StoreName = store.Name
		result.Timezone = store.Timezone
	}

	if err := config.SetRedisValue("Token:"+result.Token, user.Username, sessionLifespan()); err != nil {
		return nil, err
	}
	return &result, nil
}

// destroy current session
func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, errors.New("token is required")
	}
	if err := config.RemoveRedisKey("Token:" + token); err != nil {
		return false, err
	}
	return true, nil
}

// CreateStaffUser adds a staff account to the current store (owner only).
func CreateStaffUser(ctx context.Context, input *NewUser) (*User, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateNewUsername(ctx, input.Username, input.Email); err != nil {
		return nil, err
	}
	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := User{
		StoreId:  storeId,
		Username: strings.TrimSpace(input.Username),
		Name:     input.Name,
		Email:    utils.NilIfEmpty(strings.ToLower(input.Email)),
		Password: string(hashedPassword),
		Role:     UserRoleStaff,
		IsActive: utils.NewTrue(),
	}
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return createHistory(tx, "*CREATE*", user.ID, "users", nil, nil, "created staff "+user.Username)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func GetStoreUsers(ctx context.Context) ([]*User, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	var results []*User
	err = config.GetDB().WithContext(ctx).Where("store_id = ?", storeId).Order("id").Find(&results).Error
	return results, err
}

func ChangePassword(ctx context.Context, oldPassword string, newPassword string) error {
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return utils.ErrorUnauthorized
	}
	user, err := fetchUserWithPassword(ctx, username)
	if err != nil {
		return err
	}
	if err := utils.ComparePassword(user.Password, oldPassword); err != nil {
		return ErrInvalidCredentials
	}
	hashed, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := config.GetDB().WithContext(ctx).Model(&User{}).Where("id = ?", user.ID).
		UpdateColumn("password", string(hashed)).Error; err != nil {
		return err
	}
	return RemoveRedisBoth(*user)
}

// EnsureAdminUser creates the platform admin if the username is free. Used by the seeder.
func EnsureAdminUser(ctx context.Context, username, name, password string) (*User, bool, error) {
	existing, err := fetchUserWithPassword(ctx, username)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, false, err
	}
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return nil, false, err
	}
	user := User{
		Username: username,
		Name:     name,
		Password: string(hashed),
		Role:     UserRoleAdmin,
		IsActive: utils.NewTrue(),
	}
	if err := config.GetDB().WithContext(ctx).Create(&user).Error; err != nil {
		return nil, false, err
	}
	return &user, true, nil
}
