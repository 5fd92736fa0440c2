package models

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrOutOfDeliveryRange = utils.ErrOutOfDeliveryRange

type DeliveryZone struct {
	ID               int              `gorm:"primary_key" json:"id"`
	StoreId          string           `gorm:"size:64;index;not null" json:"store_id"`
	Name             string           `gorm:"size:100;not null" json:"name"`
	FeeType          string           `gorm:"size:10;not null;default:flat" json:"fee_type"`
	BaseFee          decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"base_fee"`
	PerKmFee         decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"per_km_fee"`
	IncludedKm       float64          `gorm:"default:0" json:"included_km"`
	MaxDistanceKm    float64          `gorm:"default:0" json:"max_distance_km"`
	MinOrderForFree  *decimal.Decimal `gorm:"type:decimal(20,4)" json:"min_order_for_free"`
	ExpressFee       decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"express_fee"`
	RoundingUnit     decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"rounding_unit"`
	EstimatedMinutes int              `gorm:"default:0" json:"estimated_minutes"`
	MinutesPerKm     float64          `gorm:"default:0" json:"minutes_per_km"`
	Areas            string           `gorm:"type:text" json:"areas"`
	Priority         int              `gorm:"not null;default:0" json:"priority"`
	IsActive         *bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewDeliveryZone struct {
	Name             string           `json:"name" binding:"required,max=100"`
	FeeType          string           `json:"fee_type" binding:"required,oneof=flat distance free"`
	BaseFee          decimal.Decimal  `json:"base_fee"`
	PerKmFee         decimal.Decimal  `json:"per_km_fee"`
	IncludedKm       float64          `json:"included_km"`
	MaxDistanceKm    float64          `json:"max_distance_km"`
	MinOrderForFree  *decimal.Decimal `json:"min_order_for_free"`
	ExpressFee       decimal.Decimal  `json:"express_fee"`
	RoundingUnit     decimal.Decimal  `json:"rounding_unit"`
	EstimatedMinutes int              `json:"estimated_minutes"`
	MinutesPerKm     float64          `json:"minutes_per_km"`
	Areas            []string         `json:"areas"`
	Priority         int              `json:"priority"`
}

func (z DeliveryZone) FeeRule() utils.FeeRule {
	return utils.FeeRule{
		FeeType:          z.FeeType,
		BaseFee:          z.BaseFee,
		PerKmFee:         z.PerKmFee,
		IncludedKm:       z.IncludedKm,
		MaxDistanceKm:    z.MaxDistanceKm,
		MinOrderForFree:  z.MinOrderForFree,
		ExpressFee:       z.ExpressFee,
		RoundingUnit:     z.RoundingUnit,
		EstimatedMinutes: z.EstimatedMinutes,
		MinutesPerKm:     z.MinutesPerKm,
	}
}

// AreaList returns the configured area names.
func (z DeliveryZone) AreaList() []string {
	var out []string
	for _, a := range strings.Split(z.Areas, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// ServesArea compares area names in folded form.
func (z DeliveryZone) ServesArea(area string) bool {
	key := utils.SearchKey(area)
	if key == "" {
		return false
	}
	for _, a := range z.AreaList() {
		if utils.SearchKey(a) == key {
			return true
		}
	}
	return false
}

func (input *NewDeliveryZone) rule() utils.FeeRule {
	return DeliveryZone{
		FeeType:          input.FeeType,
		BaseFee:          input.BaseFee,
		PerKmFee:         input.PerKmFee,
		IncludedKm:       input.IncludedKm,
		MaxDistanceKm:    input.MaxDistanceKm,
		MinOrderForFree:  input.MinOrderForFree,
		ExpressFee:       input.ExpressFee,
		RoundingUnit:     input.RoundingUnit,
		EstimatedMinutes: input.EstimatedMinutes,
		MinutesPerKm:     input.MinutesPerKm,
	}.FeeRule()
}

func (input *NewDeliveryZone) validate(ctx context.Context, storeId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[DeliveryZone](ctx, storeId, id); err != nil {
			return err
		}
	}
	input.Name = strings.TrimSpace(input.Name)
	if err := utils.ValidateUnique[DeliveryZone](ctx, storeId, "name", input.Name, id); err != nil {
		return err
	}
	if err := input.rule().Validate(); err != nil {
		return err
	}
	if input.MinOrderForFree != nil && input.MinOrderForFree.IsNegative() {
		return utils.NewValidationError("min_order_for_free cannot be negative")
	}
	if input.FeeType == utils.FeeTypeDistance && !input.PerKmFee.IsPositive() {
		return utils.NewValidationError("per_km_fee is required for distance pricing")
	}
	cleaned := make([]string, 0, len(input.Areas))
	for _, a := range input.Areas {
		a = strings.TrimSpace(strings.ReplaceAll(a, ",", " "))
		if a != "" {
			cleaned = append(cleaned, a)
		}
	}
	input.Areas = utils.UniqueSlice(cleaned)
	return nil
}

func (input *NewDeliveryZone) apply(zone *DeliveryZone) {
	zone.Name = input.Name
	zone.FeeType = input.FeeType
	zone.BaseFee = input.BaseFee
	zone.PerKmFee = input.PerKmFee
	zone.IncludedKm = input.IncludedKm
	zone.MaxDistanceKm = input.MaxDistanceKm
	zone.MinOrderForFree = input.MinOrderForFree
	zone.ExpressFee = input.ExpressFee
	zone.RoundingUnit = input.RoundingUnit
	zone.EstimatedMinutes = input.EstimatedMinutes
	zone.MinutesPerKm = input.MinutesPerKm
	zone.Areas = strings.Join(input.Areas, ",")
	zone.Priority = input.Priority
}

func CreateDeliveryZone(ctx context.Context, input *NewDeliveryZone) (*DeliveryZone, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, storeId, 0); err != nil {
		return nil, err
	}
	zone := DeliveryZone{StoreId: storeId, IsActive: utils.NewTrue()}
	input.apply(&zone)

	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&zone).Error; err != nil {
			return err
		}
		return createHistory(tx, "*CREATE*", zone.ID, "delivery_zones", nil, zone, "created delivery zone "+zone.Name)
	})
	if err != nil {
		return nil, err
	}
	if err := zone.RemoveAllRedis(); err != nil {
		config.LogError(config.GetLogger(), "DeliveryZone", "CreateDeliveryZone", "clear cache", zone.ID, err)
	}
	return &zone, nil
}

func UpdateDeliveryZone(ctx context.Context, id int, input *NewDeliveryZone) (*DeliveryZone, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, storeId, id); err != nil {
		return nil, err
	}
	zone, err := utils.FetchModel[DeliveryZone](ctx, storeId, id)
	if err != nil {
		return nil, err
	}
	before := *zone
	input.apply(zone)

	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("*").Omit("id", "store_id", "is_active", "created_at").Save(zone).Error; err != nil {
			return err
		}
		return createHistory(tx, "*UPDATE*", id, "delivery_zones", before, zone, "updated delivery zone "+zone.Name)
	})
	if err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(*zone); err != nil {
		config.LogError(config.GetLogger(), "DeliveryZone", "UpdateDeliveryZone", "clear cache", id, err)
	}
	return zone, nil
}

func DeleteDeliveryZone(ctx context.Context, id int) (*DeliveryZone, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	zone, err := utils.FetchModel[DeliveryZone](ctx, storeId, id)
	if err != nil {
		return nil, err
	}
	count, err := utils.ResourceCountWhere[Delivery](ctx, storeId, "zone_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("used in deliveries, deactivate it instead")
	}
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(zone).Error; err != nil {
			return err
		}
		return createHistory(tx, "*DELETE*", id, "delivery_zones", zone, nil, "deleted delivery zone "+zone.Name)
	})
	if err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(*zone); err != nil {
		config.LogError(config.GetLogger(), "DeliveryZone", "DeleteDeliveryZone", "clear cache", id, err)
	}
	return zone, nil
}

func GetDeliveryZone(ctx context.Context, id int) (*DeliveryZone, error) {
	return GetResource[DeliveryZone](ctx, id)
}

func GetDeliveryZones(ctx context.Context) ([]*DeliveryZone, error) {
	return ListAllResource[DeliveryZone](ctx, "priority", "id")
}

func ToggleActiveDeliveryZone(ctx context.Context, id int, isActive bool) (*DeliveryZone, error) {
	storeId, err := requireStoreId(ctx)
	if err != nil {
		return nil, err
	}
	return ToggleActiveModel[DeliveryZone](ctx, storeId, id, isActive)
}

// ListActiveZones returns active zones ordered by priority then id.
func ListActiveZones(ctx context.Context) ([]*DeliveryZone, error) {
	zones, err := GetDeliveryZones(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]*DeliveryZone, 0, len(zones))
	for _, z := range zones {
		if z.IsActive != nil && *z.IsActive {
			active = append(active, z)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority < active[j].Priority
		}
		return active[i].ID < active[j].ID
	})
	return active, nil
}

type ZoneQuery struct {
	ZoneId *int
	Area   string
	// Origin is the store location; Destination is nil when no coordinates are known.
	Origin      utils.LatLng
	Destination *utils.LatLng
}

// ResolveDeliveryZone picks the zone for a destination: an explicit zone id,
// then an area-name match, then the best covering zone.
func ResolveDeliveryZone(ctx context.Context, q ZoneQuery) (*DeliveryZone, error) {
	zones, err := ListActiveZones(ctx)
	if err != nil {
		return nil, err
	}
	return pickZone(zones, q)
}

func pickZone(zones []*DeliveryZone, q ZoneQuery) (*DeliveryZone, error) {
	if q.ZoneId != nil && *q.ZoneId > 0 {
		for _, z := range zones {
			if z.ID == *q.ZoneId {
				return z, nil
			}
		}
		return nil, utils.NewValidationError("delivery zone not found or inactive")
	}
	if strings.TrimSpace(q.Area) != "" {
		for _, z := range zones {
			if z.ServesArea(q.Area) {
				return z, nil
			}
		}
	}

	var best *DeliveryZone
	for _, z := range zones {
		if q.Destination == nil {
			// no coordinates: only unlimited zones can serve
			if z.MaxDistanceKm > 0 {
				continue
			}
		} else if !z.FeeRule().Covers(utils.HaversineKm(q.Origin, *q.Destination)) {
			continue
		}
		if best == nil || betterZone(z, best) {
			best = z
		}
	}
	if best == nil {
		return nil, ErrOutOfDeliveryRange
	}
	return best, nil
}

// betterZone orders by lower priority, then the tighter radius (0 is unlimited).
func betterZone(a, b *DeliveryZone) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	ar, br := a.MaxDistanceKm, b.MaxDistanceKm
	if ar == 0 {
		ar = 1e9
	}
	if br == 0 {
		br = 1e9
	}
	if ar != br {
		return ar < br
	}
	return a.ID < b.ID
}

type QuoteInput struct {
	ZoneId    *int            `json:"zone_id"`
	Area      string          `json:"area"`
	Latitude  *float64        `json:"latitude" binding:"omitempty,gte=-90,lte=90"`
	Longitude *float64        `json:"longitude" binding:"omitempty,gte=-180,lte=180"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Express   bool            `json:"express"`
}

type DeliveryQuote struct {
	ZoneId   int    `json:"zone_id"`
	ZoneName string `json:"zone_name"`
	utils.FeeBreakdown
	TotalText string `json:"total_text"`
}

func (input QuoteInput) destination() (*utils.LatLng, error) {
	if input.Latitude == nil && input.Longitude == nil {
		return nil, nil
	}
	if input.Latitude == nil || input.Longitude == nil {
		return nil, utils.NewValidationError("latitude and longitude must be given together")
	}
	p := utils.LatLng{Lat: *input.Latitude, Lng: *input.Longitude}
	if !p.Valid() {
		return nil, utils.NewValidationError("invalid coordinates")
	}
	return &p, nil
}

// QuoteDeliveryFee resolves the zone and prices the delivery from the store location.
func QuoteDeliveryFee(ctx context.Context, input QuoteInput) (*DeliveryQuote, error) {
	store, err := GetStore(ctx)
	if err != nil {
		return nil, err
	}
	dest, err := input.destination()
	if err != nil {
		return nil, err
	}
	origin := store.Location()
	if dest != nil && !origin.Valid() {
		return nil, utils.NewValidationError("store location is not set")
	}
	if input.Subtotal.IsNegative() {
		return nil, utils.NewValidationError("subtotal cannot be negative")
	}

	zone, err := ResolveDeliveryZone(ctx, ZoneQuery{
		ZoneId:      input.ZoneId,
		Area:        input.Area,
		Origin:      origin,
		Destination: dest,
	})
	if err != nil {
		return nil, err
	}
	breakdown, err := utils.CalculateDeliveryFee(zone.FeeRule(), utils.FeeInput{
		Origin:      origin,
		Destination: dest,
		Subtotal:    input.Subtotal,
		Express:     input.Express,
	})
	if err != nil {
		return nil, err
	}
	return &DeliveryQuote{
		ZoneId:       zone.ID,
		ZoneName:     zone.Name,
		FeeBreakdown: breakdown,
		TotalText:    utils.FormatMNT(breakdown.Total),
	}, nil
}
