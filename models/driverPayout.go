package models

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNoUnpaidEarnings = errors.New("driver has no unpaid earnings in the period")

// DriverEarning is accrued once per delivered delivery.
type DriverEarning struct {
	ID         int             `gorm:"primary_key" json:"id"`
	StoreId    string          `gorm:"size:64;not null;index" json:"store_id"`
	DriverId   int             `gorm:"not null;index" json:"driver_id"`
	DeliveryId int             `gorm:"not null;uniqueIndex" json:"delivery_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	EarnedAt   time.Time       `gorm:"not null;index" json:"earned_at"`
	PayoutId   *int            `gorm:"index" json:"payout_id"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type DriverPayout struct {
	ID            int             `gorm:"primary_key" json:"id"`
	StoreId       string          `gorm:"size:64;not null;index" json:"store_id"`
	DriverId      int             `gorm:"not null;index" json:"driver_id"`
	PeriodStart   time.Time       `gorm:"not null" json:"period_start"`
	PeriodEnd     time.Time       `gorm:"not null" json:"period_end"`
	DeliveryCount int             `gorm:"not null;default:0" json:"delivery_count"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	Status        PayoutStatus    `gorm:"size:10;not null;default:pending;index" json:"status"`
	PaidAt        *time.Time      `json:"paid_at"`
	VoidedAt      *time.Time      `json:"voided_at"`
	Reference     string          `gorm:"size:100" json:"reference"`
	Earnings      []DriverEarning `gorm:"foreignKey:PayoutId" json:"earnings,omitempty"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type DriverBalance struct {
	DriverId      int             `json:"driver_id"`
	UnpaidCount   int             `json:"unpaid_count"`
	UnpaidAmount  decimal.Decimal `json:"unpaid_amount"`
	PendingPayout decimal.Decimal `json:"pending_payout"`
}

func sumEarnings(earnings []*DriverEarning) decimal.Decimal {
	total := decimal.Zero
	for _, e := range earnings {
		total = total.Add(e.Amount)
	}
	return total
}

// AccrueDriverEarning books the driver's cut of a delivered delivery. It is
// safe to call more than once for the same delivery.
func AccrueDriverEarning(ctx context.Context, deliveryId int) (*DriverEarning, bool, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, false, err
	}
	delivery, err := utils.FetchModel[Delivery](ctx, storeId, deliveryId)
	if err != nil {
		return nil, false, err
	}
	if delivery.Status != DeliveryStatusDelivered || delivery.DriverId == nil {
		return nil, false, nil
	}
	earnedAt := time.Now().UTC()
	if delivery.DeliveredAt != nil {
		earnedAt = *delivery.DeliveredAt
	}
	earning := DriverEarning{
		StoreId:    storeId,
		DriverId:   *delivery.DriverId,
		DeliveryId: delivery.ID,
		Amount:     delivery.DriverEarning,
		EarnedAt:   earnedAt,
	}
	res := config.GetDB().WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "delivery_id"}}, DoNothing: true}).
		Create(&earning)
	if res.Error != nil {
		return nil, false, res.Error
	}
	return &earning, res.RowsAffected > 0, nil
}

func ListDriverEarnings(ctx context.Context, driverId int, unpaidOnly bool) ([]*DriverEarning, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	q := config.GetDB().WithContext(ctx).Where("store_id = ? AND driver_id = ?", storeId, driverId)
	if unpaidOnly {
		q = q.Where("payout_id IS NULL")
	}
	var results []*DriverEarning
	err = q.Order("earned_at, id").Find(&results).Error
	return results, err
}

func GetDriverBalance(ctx context.Context, driverId int) (*DriverBalance, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Driver](ctx, storeId, driverId); err != nil {
		return nil, err
	}
	unpaid, err := ListDriverEarnings(ctx, driverId, true)
	if err != nil {
		return nil, err
	}
	var pending []*DriverPayout
	if err := config.GetDB().WithContext(ctx).
		Where("store_id = ? AND driver_id = ? AND status = ?", storeId, driverId, PayoutStatusPending).
		Find(&pending).Error; err != nil {
		return nil, err
	}
	pendingTotal := decimal.Zero
	for _, p := range pending {
		pendingTotal = pendingTotal.Add(p.TotalAmount)
	}
	return &DriverBalance{
		DriverId:      driverId,
		UnpaidCount:   len(unpaid),
		UnpaidAmount:  sumEarnings(unpaid),
		PendingPayout: pendingTotal,
	}, nil
}

// CreateDriverPayout bundles every unpaid earning up to periodEnd into one payout.
func CreateDriverPayout(ctx context.Context, driverId int, periodEnd time.Time) (*DriverPayout, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Driver](ctx, storeId, driverId); err != nil {
		return nil, err
	}
	release, err := utils.StoreLock(ctx, "payout", storeId+":"+strconv.Itoa(driverId), 30*time.Second, "DriverPayout", "CreateDriverPayout")
	if err != nil {
		return nil, err
	}
	defer release()

	var payout DriverPayout
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var earnings []*DriverEarning
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("store_id = ? AND driver_id = ? AND payout_id IS NULL AND earned_at <= ?", storeId, driverId, periodEnd).
			Order("earned_at, id").
			Find(&earnings).Error; err != nil {
			return err
		}
		if len(earnings) == 0 {
			return ErrNoUnpaidEarnings
		}
		ids := make([]int, 0, len(earnings))
		for _, e := range earnings {
			ids = append(ids, e.ID)
		}
		payout = DriverPayout{
			StoreId:       storeId,
			DriverId:      driverId,
			PeriodStart:   earnings[0].EarnedAt,
			PeriodEnd:     periodEnd,
			DeliveryCount: len(earnings),
			TotalAmount:   sumEarnings(earnings),
			Status:        PayoutStatusPending,
		}
		if err := tx.Create(&payout).Error; err != nil {
			return err
		}
		res := tx.Model(&DriverEarning{}).
			Where("id IN ? AND payout_id IS NULL", ids).
			UpdateColumn("payout_id", payout.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(ids)) {
			return fmt.Errorf("earnings changed while creating payout, retry")
		}
		if err := createHistory(tx, "*CREATE*", payout.ID, "driver_payouts", nil, payout,
			fmt.Sprintf("payout of %s for %d deliveries", utils.FormatMNT(payout.TotalAmount), payout.DeliveryCount)); err != nil {
			return err
		}
		return enqueueOutbox(tx, EventPayoutCreated, "driver_payouts", payout.ID, payout)
	})
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func GetDriverPayout(ctx context.Context, id int) (*DriverPayout, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[DriverPayout](ctx, storeId, id, "Earnings")
}

func GetDriverPayouts(ctx context.Context, driverId *int, status *PayoutStatus) ([]*DriverPayout, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	q := config.GetDB().WithContext(ctx).Where("store_id = ?", storeId)
	if driverId != nil {
		q = q.Where("driver_id = ?", *driverId)
	}
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	var results []*DriverPayout
	err = q.Order("id DESC").Find(&results).Error
	return results, err
}

func MarkPayoutPaid(ctx context.Context, id int, reference string) (*DriverPayout, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&DriverPayout{}).
			Where("id = ? AND store_id = ? AND status = ?", id, storeId, PayoutStatusPending).
			Updates(map[string]interface{}{
				"status":    PayoutStatusPaid,
				"paid_at":   now,
				"reference": strings.TrimSpace(reference),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return payoutNotPending(tx, storeId, id)
		}
		return createHistory(tx, "*UPDATE*", id, "driver_payouts", PayoutStatusPending, PayoutStatusPaid, "payout marked paid")
	})
	if err != nil {
		return nil, err
	}
	return GetDriverPayout(ctx, id)
}

// VoidPayout cancels a pending payout and frees its earnings for the next one.
func VoidPayout(ctx context.Context, id int) (*DriverPayout, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&DriverPayout{}).
			Where("id = ? AND store_id = ? AND status = ?", id, storeId, PayoutStatusPending).
			Updates(map[string]interface{}{"status": PayoutStatusVoid, "voided_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return payoutNotPending(tx, storeId, id)
		}
		if err := tx.Model(&DriverEarning{}).
			Where("store_id = ? AND payout_id = ?", storeId, id).
			UpdateColumn("payout_id", nil).Error; err != nil {
			return err
		}
		return createHistory(tx, "*UPDATE*", id, "driver_payouts", PayoutStatusPending, PayoutStatusVoid, "payout voided")
	})
	if err != nil {
		return nil, err
	}
	var payout DriverPayout
	if err := config.GetDB().WithContext(ctx).Where("id = ? AND store_id = ?", id, storeId).Take(&payout).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func payoutNotPending(tx *gorm.DB, storeId string, id int) error {
	var payout DriverPayout
	if err := tx.Where("id = ? AND store_id = ?", id, storeId).Take(&payout).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorRecordNotFound
		}
		return err
	}
	return utils.NewValidationError("payout is already " + string(payout.Status))
}
