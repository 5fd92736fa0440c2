package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrDriverUnavailable = errors.New("driver is not available")

type Driver struct {
	ID                int             `gorm:"primary_key" json:"id"`
	StoreId           string          `gorm:"size:64;not null;index;uniqueIndex:idx_driver_store_phone,priority:1" json:"store_id"`
	Name              string          `gorm:"size:100;not null" json:"name"`
	Phone             string          `gorm:"size:20;not null;uniqueIndex:idx_driver_store_phone,priority:2" json:"phone"`
	Password          string          `gorm:"size:255;not null" json:"-"`
	VehicleType       string          `gorm:"size:30" json:"vehicle_type"`
	PlateNumber       string          `gorm:"size:20" json:"plate_number"`
	Status            DriverStatus    `gorm:"size:10;not null;default:offline;index" json:"status"`
	CommissionFlat    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"commission_flat"`
	CommissionPercent decimal.Decimal `gorm:"type:decimal(7,4);default:0" json:"commission_percent"`
	IsActive          *bool           `gorm:"not null;default:true" json:"is_active"`
	LastSeenAt        *time.Time      `json:"last_seen_at"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewDriver struct {
	Name              string          `json:"name" binding:"required,max=100"`
	Phone             string          `json:"phone" binding:"required"`
	Password          string          `json:"password"`
	VehicleType       string          `json:"vehicle_type" binding:"max=30"`
	PlateNumber       string          `json:"plate_number" binding:"max=20"`
	CommissionFlat    decimal.Decimal `json:"commission_flat"`
	CommissionPercent decimal.Decimal `json:"commission_percent"`
}

type DriverLoginInfo struct {
	Token     string `json:"token"`
	DriverId  int    `json:"driver_id"`
	Name      string `json:"name"`
	StoreId   string `json:"store_id"`
	StoreName string `json:"store_name"`
}

// EarningFor is the driver's cut of a delivery fee: flat + fee*percent/100.
func (d Driver) EarningFor(fee decimal.Decimal) decimal.Decimal {
	pct := fee.Mul(d.CommissionPercent).Div(decimal.NewFromInt(100))
	return d.CommissionFlat.Add(pct).Round(2)
}

func (input *NewDriver) validate(ctx context.Context, storeId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Driver](ctx, storeId, id); err != nil {
			return err
		}
	}
	phone, err := utils.NormalizePhoneNumber(input.Phone, "")
	if err != nil {
		return err
	}
	input.Phone = phone
	if err := utils.ValidateUnique[Driver](ctx, storeId, "phone", input.Phone, id); err != nil {
		return err
	}
	if id == 0 && input.Password == "" {
		return utils.NewValidationError("password is required")
	}
	if input.CommissionFlat.IsNegative() {
		return utils.NewValidationError("commission_flat cannot be negative")
	}
	if input.CommissionPercent.IsNegative() || input.CommissionPercent.GreaterThan(decimal.NewFromInt(100)) {
		return utils.NewValidationError("commission_percent must be between 0 and 100")
	}
	return nil
}

func CreateDriver(ctx context.Context, input *NewDriver) (*Driver, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, storeId, 0); err != nil {
		return nil, err
	}
	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	driver := Driver{
		StoreId:           storeId,
		Name:              strings.TrimSpace(input.Name),
		Phone:             input.Phone,
		Password:          string(hashed),
		VehicleType:       input.VehicleType,
		PlateNumber:       input.PlateNumber,
		Status:            DriverStatusOffline,
		CommissionFlat:    input.CommissionFlat,
		CommissionPercent: input.CommissionPercent,
		IsActive:          utils.NewTrue(),
	}
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&driver).Error; err != nil {
			return err
		}
		return createHistory(tx, "*CREATE*", driver.ID, "drivers", nil, nil, "created driver "+driver.Name)
	})
	if err != nil {
		return nil, err
	}
	if err := driver.RemoveAllRedis(); err != nil {
		config.LogError(config.GetLogger(), "Driver", "CreateDriver", "clear cache", driver.ID, err)
	}
	return &driver, nil
}

func UpdateDriver(ctx context.Context, id int, input *NewDriver) (*Driver, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, storeId, id); err != nil {
		return nil, err
	}
	driver, err := utils.FetchModel[Driver](ctx, storeId, id)
	if err != nil {
		return nil, err
	}
	before := *driver
	updates := map[string]interface{}{
		"name":               strings.TrimSpace(input.Name),
		"phone":              input.Phone,
		"vehicle_type":       input.VehicleType,
		"plate_number":       input.PlateNumber,
		"commission_flat":    input.CommissionFlat,
		"commission_percent": input.CommissionPercent,
	}
	if input.Password != "" {
		hashed, err := utils.HashPassword(input.Password)
		if err != nil {
			return nil, err
		}
		updates["password"] = string(hashed)
	}
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(driver).Updates(updates).Error; err != nil {
			return err
		}
		return createHistory(tx, "*UPDATE*", id, "drivers", before, driver, "updated driver "+driver.Name)
	})
	if err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(*driver); err != nil {
		config.LogError(config.GetLogger(), "Driver", "UpdateDriver", "clear cache", id, err)
	}
	return driver, nil
}

func GetDriver(ctx context.Context, id int) (*Driver, error) {
	return GetResource[Driver](ctx, id)
}

func GetDrivers(ctx context.Context) ([]*Driver, error) {
	return ListAllResource[Driver](ctx, "name", "id")
}

// ListAvailableDrivers returns active drivers that can take a delivery now.
func ListAvailableDrivers(ctx context.Context) ([]*Driver, error) {
	drivers, err := GetDrivers(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]*Driver, 0, len(drivers))
	for _, d := range drivers {
		if d.IsActive != nil && *d.IsActive && d.Status == DriverStatusAvailable {
			results = append(results, d)
		}
	}
	return results, nil
}

func ToggleActiveDriver(ctx context.Context, id int, isActive bool) (*Driver, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	if !isActive {
		open, err := countOpenDeliveries(config.GetDB().WithContext(ctx), storeId, id, 0)
		if err != nil {
			return nil, err
		}
		if open > 0 {
			return nil, utils.NewValidationError("driver still has open deliveries")
		}
	}
	return ToggleActiveModel[Driver](ctx, storeId, id, isActive)
}

// DriverLogin checks phone and password; the same phone may drive for several
// stores, the first active match with the right password wins.
func DriverLogin(ctx context.Context, phone string, password string) (*DriverLoginInfo, error) {
	normalized, err := utils.NormalizePhoneNumber(phone, "")
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	var candidates []*Driver
	if err := config.GetDB().WithContext(ctx).
		Where("phone = ? AND is_active = ?", normalized, true).
		Order("id").
		Find(&candidates).Error; err != nil {
		return nil, err
	}
	for _, d := range candidates {
		if utils.ComparePassword(d.Password, password) != nil {
			continue
		}
		store, err := GetStoreById(ctx, d.StoreId)
		if err != nil {
			return nil, err
		}
		if store.IsActive == nil || !*store.IsActive {
			continue
		}
		token, err := utils.JwtGenerateDriver(d.ID, d.StoreId)
		if err != nil {
			return nil, err
		}
		return &DriverLoginInfo{
			Token:     token,
			DriverId:  d.ID,
			Name:      d.Name,
			StoreId:   d.StoreId,
			StoreName: store.Name,
		}, nil
	}
	return nil, ErrInvalidCredentials
}

// CurrentDriver loads the driver of a portal request.
func CurrentDriver(ctx context.Context) (*Driver, error) {
	driverId, ok := utils.GetDriverIdFromContext(ctx)
	if !ok {
		return nil, utils.ErrorUnauthorized
	}
	return GetDriver(ctx, driverId)
}

// SetDriverStatus is the driver's own availability switch. A driver with
// open deliveries stays busy and cannot go offline.
func SetDriverStatus(ctx context.Context, driverId int, status DriverStatus) (*Driver, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	if status != DriverStatusAvailable && status != DriverStatusOffline {
		return nil, utils.NewValidationError("status must be available or offline")
	}
	driver, err := utils.FetchModel[Driver](ctx, storeId, driverId)
	if err != nil {
		return nil, err
	}
	if driver.IsActive == nil || !*driver.IsActive {
		return nil, ErrDriverUnavailable
	}

	now := time.Now().UTC()
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		open, err := countOpenDeliveries(tx, storeId, driverId, 0)
		if err != nil {
			return err
		}
		next := status
		if open > 0 {
			if status == DriverStatusOffline {
				return utils.NewValidationError("finish open deliveries before going offline")
			}
			next = DriverStatusBusy
		}
		driver.Status = next
		driver.LastSeenAt = &now
		return tx.Model(driver).Updates(map[string]interface{}{
			"status":       next,
			"last_seen_at": &now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(*driver); err != nil {
		config.LogError(config.GetLogger(), "Driver", "SetDriverStatus", "clear cache", driverId, err)
	}
	return driver, nil
}

// countOpenDeliveries counts deliveries the driver still holds, except one.
func countOpenDeliveries(tx *gorm.DB, storeId string, driverId int, exceptDeliveryId int) (int64, error) {
	var count int64
	q := tx.Model(&Delivery{}).
		Where("store_id = ? AND driver_id = ?", storeId, driverId).
		Where("status IN ?", []DeliveryStatus{
			DeliveryStatusAssigned, DeliveryStatusPickedUp, DeliveryStatusInTransit, DeliveryStatusDelayed,
		})
	if exceptDeliveryId > 0 {
		q = q.Where("id <> ?", exceptDeliveryId)
	}
	err := q.Count(&count).Error
	return count, err
}
