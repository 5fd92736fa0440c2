package middlewares

import (
	"context"

	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"github.com/graph-gophers/dataloader/v7"
)

type customerReader struct{}

func (r *customerReader) getCustomers(ctx context.Context, ids []int) []*dataloader.Result[*models.Customer] {
	return fetchByIds[models.Customer](ctx, ids)
}

func GetCustomer(ctx context.Context, id int) (*models.Customer, error) {
	loaders := For(ctx)
	return loaders.customerLoader.Load(ctx, id)()
}
