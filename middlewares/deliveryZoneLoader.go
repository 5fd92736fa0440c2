package middlewares

import (
	"context"

	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"github.com/graph-gophers/dataloader/v7"
)

type deliveryZoneReader struct{}

func (r *deliveryZoneReader) getZones(ctx context.Context, ids []int) []*dataloader.Result[*models.DeliveryZone] {
	return fetchByIds[models.DeliveryZone](ctx, ids)
}

func GetDeliveryZone(ctx context.Context, id int) (*models.DeliveryZone, error) {
	loaders := For(ctx)
	return loaders.zoneLoader.Load(ctx, id)()
}

func GetDeliveryZones(ctx context.Context, ids []int) ([]*models.DeliveryZone, []error) {
	loaders := For(ctx)
	return loaders.zoneLoader.LoadMany(ctx, ids)()
}
