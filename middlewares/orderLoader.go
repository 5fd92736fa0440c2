package middlewares

import (
	"context"

	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"github.com/graph-gophers/dataloader/v7"
)

type orderReader struct{}

func (r *orderReader) getOrders(ctx context.Context, ids []int) []*dataloader.Result[*models.Order] {
	return fetchByIds[models.Order](ctx, ids)
}

func GetOrder(ctx context.Context, id int) (*models.Order, error) {
	loaders := For(ctx)
	return loaders.orderLoader.Load(ctx, id)()
}

func GetOrders(ctx context.Context, ids []int) ([]*models.Order, []error) {
	loaders := For(ctx)
	return loaders.orderLoader.LoadMany(ctx, ids)()
}
