package middlewares

import (
	"context"

	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"github.com/graph-gophers/dataloader/v7"
)

type driverReader struct{}

func (r *driverReader) getDrivers(ctx context.Context, ids []int) []*dataloader.Result[*models.Driver] {
	return fetchByIds[models.Driver](ctx, ids)
}

func GetDriver(ctx context.Context, id int) (*models.Driver, error) {
	loaders := For(ctx)
	return loaders.driverLoader.Load(ctx, id)()
}

func GetDrivers(ctx context.Context, ids []int) ([]*models.Driver, []error) {
	loaders := For(ctx)
	return loaders.driverLoader.LoadMany(ctx, ids)()
}
