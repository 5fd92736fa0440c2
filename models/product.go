package models

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrInsufficientStock = errors.New("insufficient stock")

type Product struct {
	ID          int             `gorm:"primary_key" json:"id"`
	StoreId     string          `gorm:"size:64;index;not null" json:"store_id"`
	Name        string          `gorm:"size:150;not null" json:"name"`
	Sku         string          `gorm:"size:100" json:"sku"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	StockQty    int             `gorm:"not null;default:0" json:"stock_qty"`
	TrackStock  *bool           `gorm:"not null;default:true" json:"track_stock"`
	SearchKey   string          `gorm:"size:400;index" json:"-"`
	IsActive    *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name        string          `json:"name" binding:"required,max=150"`
	Sku         string          `json:"sku" binding:"max=100"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	StockQty    int             `json:"stock_qty" binding:"gte=0"`
	TrackStock  *bool           `json:"track_stock"`
}

func (p *Product) BeforeSave(tx *gorm.DB) error {
	p.SearchKey = utils.SearchKey(p.Name, p.Sku)
	return nil
}

// InStock is true when the product is untracked or has at least qty left.
func (p Product) InStock(qty int) bool {
	if p.TrackStock != nil && !*p.TrackStock {
		return true
	}
	return p.StockQty >= qty
}

func (input *NewProduct) validate(ctx context.Context, storeId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Product](ctx, storeId, id); err != nil {
			return err
		}
	}
	if input.Price.IsNegative() {
		return utils.NewValidationError("price cannot be negative")
	}
	input.Sku = strings.TrimSpace(input.Sku)
	if input.Sku != "" {
		if err := utils.ValidateUnique[Product](ctx, storeId, "sku", input.Sku, id); err != nil {
			return err
		}
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, storeId, 0); err != nil {
		return nil, err
	}
	product := Product{
		StoreId:     storeId,
		Name:        strings.TrimSpace(input.Name),
		Sku:         input.Sku,
		Description: input.Description,
		Price:       input.Price,
		StockQty:    input.StockQty,
		TrackStock:  input.TrackStock,
		IsActive:    utils.NewTrue(),
	}
	if product.TrackStock == nil {
		product.TrackStock = utils.NewTrue()
	}
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&product).Error; err != nil {
			return err
		}
		return createHistory(tx, "*CREATE*", product.ID, "products", nil, nil, "created product "+product.Name)
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, storeId, id); err != nil {
		return nil, err
	}
	product, err := utils.FetchModel[Product](ctx, storeId, id)
	if err != nil {
		return nil, err
	}
	before := *product
	product.Name = strings.TrimSpace(input.Name)
	product.Sku = input.Sku
	product.Description = input.Description
	product.Price = input.Price
	product.StockQty = input.StockQty
	if input.TrackStock != nil {
		product.TrackStock = input.TrackStock
	}
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("name", "sku", "description", "price", "stock_qty", "track_stock", "search_key").
			Save(product).Error; err != nil {
			return err
		}
		return createHistory(tx, "*UPDATE*", id, "products", before, product, "updated product "+product.Name)
	})
	if err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(*product); err != nil {
		config.LogError(config.GetLogger(), "Product", "UpdateProduct", "clear cache", id, err)
	}
	return product, nil
}

func DeleteProduct(ctx context.Context, id int) (*Product, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	product, err := utils.FetchModel[Product](ctx, storeId, id)
	if err != nil {
		return nil, err
	}
	count, err := utils.ResourceCountWhere[OrderItem](ctx, storeId, "product_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("used in orders, deactivate it instead")
	}
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(product).Error; err != nil {
			return err
		}
		return createHistory(tx, "*DELETE*", id, "products", product, nil, "deleted product "+product.Name)
	})
	if err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(*product); err != nil {
		config.LogError(config.GetLogger(), "Product", "DeleteProduct", "clear cache", id, err)
	}
	return product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	return GetResource[Product](ctx, id)
}

func ToggleActiveProduct(ctx context.Context, id int, isActive bool) (*Product, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	return ToggleActiveModel[Product](ctx, storeId, id, isActive)
}

func PaginateProducts(ctx context.Context, limit int, after *string, query string) (*Connection[Product], error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Where("store_id = ?", storeId)
	if key := utils.SearchKey(query); key != "" {
		dbCtx = dbCtx.Where("search_key LIKE ?", "%"+key+"%")
	}
	return FetchPageById[Product](dbCtx, limit, after)
}

// SearchProducts finds active products matching any of the terms, best match first.
// Terms are compared in folded form, so "гутал" also finds "Гутал" and "gutal" must be
// transliterated by the caller.
func SearchProducts(ctx context.Context, storeId string, terms []string, limit int) ([]*Product, error) {
	if storeId == "" {
		return nil, utils.ErrorStoreIdRequired
	}
	keys := make([]string, 0, len(terms))
	for _, t := range terms {
		if k := utils.SearchKey(t); k != "" {
			keys = append(keys, k)
		}
	}
	keys = utils.UniqueSlice(keys)
	if len(keys) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > 20 {
		limit = 5
	}

	conds := make([]string, 0, len(keys))
	args := make([]interface{}, 0, len(keys))
	for _, k := range keys {
		conds = append(conds, "search_key LIKE ?")
		args = append(args, "%"+k+"%")
	}
	var candidates []*Product
	err := config.GetDB().WithContext(ctx).
		Where("store_id = ? AND is_active = ?", storeId, true).
		Where(strings.Join(conds, " OR "), args...).
		Order("id").
		Limit(100).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	score := func(p *Product) int {
		n := 0
		for _, k := range keys {
			if strings.Contains(p.SearchKey, k) {
				n++
			}
		}
		return n
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return score(candidates[i]) > score(candidates[j])
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// reserveStock decrements tracked stock, refusing to go below zero.
func reserveStock(tx *gorm.DB, storeId string, productId int, qty int) error {
	res := tx.Model(&Product{}).
		Where("id = ? AND store_id = ?", productId, storeId).
		Where("track_stock = ? OR stock_qty >= ?", false, qty).
		UpdateColumn("stock_qty", gorm.Expr("CASE WHEN track_stock THEN stock_qty - ? ELSE stock_qty END", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w for product %d", ErrInsufficientStock, productId)
	}
	return nil
}

func restoreStock(tx *gorm.DB, storeId string, productId int, qty int) error {
	return tx.Model(&Product{}).
		Where("id = ? AND store_id = ? AND track_stock = ?", productId, storeId, true).
		UpdateColumn("stock_qty", gorm.Expr("stock_qty + ?", qty)).Error
}
