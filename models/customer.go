package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"gorm.io/gorm"
)

type Customer struct {
	ID        int       `gorm:"primary_key" json:"id"`
	StoreId   string    `gorm:"size:64;index;not null" json:"store_id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Phone     string    `gorm:"size:20;index" json:"phone"`
	Email     string    `gorm:"size:100" json:"email"`
	Address   string    `gorm:"type:text" json:"address"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
	Notes     string    `gorm:"type:text" json:"notes"`
	SearchKey string    `gorm:"size:255;index" json:"-"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name      string   `json:"name" binding:"required,max=100"`
	Phone     string   `json:"phone"`
	Email     string   `json:"email"`
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude" binding:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" binding:"omitempty,gte=-180,lte=180"`
	Notes     string   `json:"notes"`
}

func (c *Customer) BeforeSave(tx *gorm.DB) error {
	c.SearchKey = utils.SearchKey(c.Name, c.Phone)
	return nil
}

func (input *NewCustomer) validate(ctx context.Context, storeId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Customer](ctx, storeId, id); err != nil {
			return err
		}
	}
	if input.Phone != "" {
		phone, err := utils.NormalizePhoneNumber(input.Phone, "")
		if err != nil {
			return err
		}
		input.Phone = phone
		if err := utils.ValidateUnique[Customer](ctx, storeId, "phone", input.Phone, id); err != nil {
			return err
		}
	}
	if input.Email != "" {
		input.Email = strings.ToLower(strings.TrimSpace(input.Email))
		if !utils.IsValidEmail(input.Email) {
			return utils.NewValidationError("invalid email address")
		}
	}
	if (input.Latitude == nil) != (input.Longitude == nil) {
		return utils.NewValidationError("latitude and longitude must be given together")
	}
	return nil
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, storeId, 0); err != nil {
		return nil, err
	}
	customer := Customer{
		StoreId:   storeId,
		Name:      strings.TrimSpace(input.Name),
		Phone:     input.Phone,
		Email:     input.Email,
		Address:   input.Address,
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
		Notes:     input.Notes,
		IsActive:  utils.NewTrue(),
	}
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&customer).Error; err != nil {
			return err
		}
		return createHistory(tx, "*CREATE*", customer.ID, "customers", nil, nil, "created customer "+customer.Name)
	})
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func UpdateCustomer(ctx context.Context, id int, input *NewCustomer) (*Customer, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, storeId, id); err != nil {
		return nil, err
	}
	customer, err := utils.FetchModel[Customer](ctx, storeId, id)
	if err != nil {
		return nil, err
	}
	before := *customer
	customer.Name = strings.TrimSpace(input.Name)
	customer.Phone = input.Phone
	customer.Email = input.Email
	customer.Address = input.Address
	customer.Latitude = input.Latitude
	customer.Longitude = input.Longitude
	customer.Notes = input.Notes

	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("name", "phone", "email", "address", "latitude", "longitude", "notes", "search_key").
			Save(customer).Error; err != nil {
			return err
		}
		return createHistory(tx, "*UPDATE*", id, "customers", before, customer, "updated customer "+customer.Name)
	})
	if err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(*customer); err != nil {
		config.LogError(config.GetLogger(), "Customer", "UpdateCustomer", "clear cache", id, err)
	}
	return customer, nil
}

// DeleteCustomer refuses customers referenced by orders.
func DeleteCustomer(ctx context.Context, id int) (*Customer, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	customer, err := utils.FetchModel[Customer](ctx, storeId, id)
	if err != nil {
		return nil, err
	}
	count, err := utils.ResourceCountWhere[Order](ctx, storeId, "customer_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewValidationError("customer is used in orders")
	}
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(customer).Error; err != nil {
			return err
		}
		return createHistory(tx, "*DELETE*", id, "customers", customer, nil, "deleted customer "+customer.Name)
	})
	if err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(*customer); err != nil {
		config.LogError(config.GetLogger(), "Customer", "DeleteCustomer", "clear cache", id, err)
	}
	return customer, nil
}

func GetCustomer(ctx context.Context, id int) (*Customer, error) {
	return GetResource[Customer](ctx, id)
}

func ToggleActiveCustomer(ctx context.Context, id int, isActive bool) (*Customer, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	return ToggleActiveModel[Customer](ctx, storeId, id, isActive)
}

// PaginateCustomers lists customers newest first, optionally filtered by name or phone.
func PaginateCustomers(ctx context.Context, limit int, after *string, query string) (*Connection[Customer], error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Where("store_id = ?", storeId)
	if key := utils.SearchKey(query); key != "" {
		dbCtx = dbCtx.Where("search_key LIKE ?", "%"+key+"%")
	}
	return FetchPageById[Customer](dbCtx, limit, after)
}

// findOrCreateCustomerByPhone links widget and order contacts to one customer row.
func findOrCreateCustomerByPhone(tx *gorm.DB, storeId, name, phone string) (*Customer, error) {
	var customer Customer
	err := tx.Where("store_id = ? AND phone = ?", storeId, phone).Take(&customer).Error
	if err == nil {
		return &customer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = phone
	}
	customer = Customer{StoreId: storeId, Name: name, Phone: phone, IsActive: utils.NewTrue()}
	if err := tx.Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}
