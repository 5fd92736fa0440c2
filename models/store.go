package models

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultTimezone = "Asia/Ulaanbaatar"

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type Store struct {
	ID             string    `gorm:"primaryKey;size:64" json:"id"`
	OwnerUserId    int       `gorm:"index" json:"owner_user_id"`
	Name           string    `gorm:"size:150;not null" json:"name"`
	Slug           string    `gorm:"size:100;not null;uniqueIndex" json:"slug"`
	Phone          string    `gorm:"size:20" json:"phone"`
	Email          string    `gorm:"size:100" json:"email"`
	Address        string    `gorm:"type:text" json:"address"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Timezone       string    `gorm:"size:64;not null" json:"timezone"`
	Currency       string    `gorm:"size:3;not null;default:MNT" json:"currency"`
	BusinessHours  string    `gorm:"size:255" json:"business_hours"`
	WidgetGreeting string    `gorm:"type:text" json:"widget_greeting"`
	ReturnPolicy   string    `gorm:"type:text" json:"return_policy"`
	PaymentInfo    string    `gorm:"type:text" json:"payment_info"`
	IsActive       *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Location is the pickup point used for distance pricing.
func (s Store) Location() utils.LatLng {
	return utils.LatLng{Lat: s.Latitude, Lng: s.Longitude}
}

type NewStoreProfile struct {
	Name           string  `json:"name" binding:"required,max=150"`
	Slug           string  `json:"slug" binding:"required,max=100"`
	Phone          string  `json:"phone"`
	Email          string  `json:"email"`
	Address        string  `json:"address"`
	Latitude       float64 `json:"latitude" binding:"gte=-90,lte=90"`
	Longitude      float64 `json:"longitude" binding:"gte=-180,lte=180"`
	Timezone       string  `json:"timezone"`
	BusinessHours  string  `json:"business_hours"`
	WidgetGreeting string  `json:"widget_greeting"`
	ReturnPolicy   string  `json:"return_policy"`
	PaymentInfo    string  `json:"payment_info"`
}

type NewStore struct {
	NewStoreProfile
	OwnerUsername string `json:"owner_username" binding:"required"`
	OwnerName     string `json:"owner_name" binding:"required"`
	OwnerEmail    string `json:"owner_email"`
	OwnerPassword string `json:"owner_password" binding:"required"`
}

func (input *NewStoreProfile) validate(ctx context.Context, id string) error {
	input.Slug = strings.ToLower(strings.TrimSpace(input.Slug))
	if !slugPattern.MatchString(input.Slug) {
		return utils.NewValidationError("slug may contain only lowercase letters, digits and dashes")
	}
	var count int64
	q := config.GetDB().WithContext(ctx).Model(&Store{}).Where("slug = ?", input.Slug)
	if id != "" {
		q = q.Where("id <> ?", id)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return utils.NewValidationError("duplicate slug")
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return utils.NewValidationError("invalid email address")
	}
	if input.Phone != "" {
		phone, err := utils.NormalizePhoneNumber(input.Phone, "")
		if err != nil {
			return err
		}
		input.Phone = phone
	}
	if input.Timezone == "" {
		input.Timezone = defaultTimezone
	}
	if _, err := time.LoadLocation(input.Timezone); err != nil {
		return utils.NewValidationError("invalid timezone")
	}
	return nil
}

// CreateStore creates a store together with its owner account (admin only).
func CreateStore(ctx context.Context, input *NewStore) (*Store, error) {
	if err := input.NewStoreProfile.validate(ctx, ""); err != nil {
		return nil, err
	}
	if err := validateNewUsername(ctx, input.OwnerUsername, input.OwnerEmail); err != nil {
		return nil, err
	}
	hashedPassword, err := utils.HashPassword(input.OwnerPassword)
	if err != nil {
		return nil, err
	}

	store := Store{
		ID:             uuid.NewString(),
		Name:           input.Name,
		Slug:           input.Slug,
		Phone:          input.Phone,
		Email:          input.Email,
		Address:        input.Address,
		Latitude:       input.Latitude,
		Longitude:      input.Longitude,
		Timezone:       input.Timezone,
		Currency:       "MNT",
		BusinessHours:  input.BusinessHours,
		WidgetGreeting: input.WidgetGreeting,
		ReturnPolicy:   input.ReturnPolicy,
		PaymentInfo:    input.PaymentInfo,
		IsActive:       utils.NewTrue(),
	}
	ctx = utils.SetStoreIdInContext(ctx, store.ID)

	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&store).Error; err != nil {
			return err
		}
		owner := User{
			StoreId:  store.ID,
			Username: strings.TrimSpace(input.OwnerUsername),
			Name:     input.OwnerName,
			Email:    utils.NilIfEmpty(strings.ToLower(input.OwnerEmail)),
			Password: string(hashedPassword),
			Role:     UserRoleOwner,
			IsActive: utils.NewTrue(),
		}
		if err := tx.Create(&owner).Error; err != nil {
			return err
		}
		store.OwnerUserId = owner.ID
		if err := tx.Model(&store).UpdateColumn("owner_user_id", owner.ID).Error; err != nil {
			return err
		}
		return createHistory(tx, "*CREATE*", 0, "stores", nil, store, "created store "+store.Name)
	})
	if err != nil {
		return nil, err
	}
	return &store, nil
}

func UpdateStore(ctx context.Context, input *NewStoreProfile) (*Store, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	store, err := GetStoreById(ctx, storeId)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, storeId); err != nil {
		return nil, err
	}
	before := *store
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(store).Updates(map[string]interface{}{
			"name":            input.Name,
			"slug":            input.Slug,
			"phone":           input.Phone,
			"email":           input.Email,
			"address":         input.Address,
			"latitude":        input.Latitude,
			"longitude":       input.Longitude,
			"timezone":        input.Timezone,
			"business_hours":  input.BusinessHours,
			"widget_greeting": input.WidgetGreeting,
			"return_policy":   input.ReturnPolicy,
			"payment_info":    input.PaymentInfo,
		}).Error; err != nil {
			return err
		}
		return createHistory(tx, "*UPDATE*", 0, "stores", before, store, "updated store profile")
	})
	if err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(before); err != nil {
		config.LogError(config.GetLogger(), "Store", "UpdateStore", "clear cache", storeId, err)
	}
	return store, nil
}

func GetStoreById(ctx context.Context, id string) (*Store, error) {
	var store Store
	exists, err := config.GetRedisObject("Store:"+id, &store)
	if err != nil {
		return nil, err
	}
	if exists {
		return &store, nil
	}
	if err := config.GetDB().WithContext(ctx).Where("id = ?", id).Take(&store).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if err := config.SetRedisObject("Store:"+id, &store, utils.GetCacheLifespan()); err != nil {
		return nil, err
	}
	return &store, nil
}

// GetStore returns the store of the current request.
func GetStore(ctx context.Context) (*Store, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	return GetStoreById(ctx, storeId)
}

// GetStoreBySlug resolves the public widget slug to an active store.
func GetStoreBySlug(ctx context.Context, slug string) (*Store, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	var store Store
	exists, err := config.GetRedisObject("StoreSlug:"+slug, &store)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := config.GetDB().WithContext(ctx).Where("slug = ?", slug).Take(&store).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, utils.ErrorRecordNotFound
			}
			return nil, err
		}
		if err := config.SetRedisObject("StoreSlug:"+slug, &store, utils.GetCacheLifespan()); err != nil {
			return nil, err
		}
	}
	if store.IsActive == nil || !*store.IsActive {
		return nil, utils.ErrorRecordNotFound
	}
	return &store, nil
}

// GetStoreByOwner looks up the store a user owns.
func GetStoreByOwner(ctx context.Context, userId int) (*Store, error) {
	var store Store
	key := fmt.Sprintf("StoreOwner:%d", userId)
	exists, err := config.GetRedisObject(key, &store)
	if err != nil {
		return nil, err
	}
	if exists {
		return &store, nil
	}
	if err := config.GetDB().WithContext(ctx).Where("owner_user_id = ?", userId).Take(&store).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if err := config.SetRedisObject(key, &store, utils.GetCacheLifespan()); err != nil {
		return nil, err
	}
	return &store, nil
}

func GetStores(ctx context.Context, name string) ([]*Store, error) {
	var results []*Store
	dbCtx := config.GetDB().WithContext(ctx)
	if name != "" {
		dbCtx = dbCtx.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(name)+"%")
	}
	err := dbCtx.Order("name").Find(&results).Error
	return results, err
}

func ToggleActiveStore(ctx context.Context, id string, isActive bool) (*Store, error) {
	store, err := GetStoreById(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := config.GetDB().WithContext(ctx).Model(store).UpdateColumn("is_active", isActive).Error; err != nil {
		return nil, err
	}
	store.IsActive = &isActive
	if err := RemoveRedisBoth(*store); err != nil {
		return nil, err
	}
	return store, nil
}
