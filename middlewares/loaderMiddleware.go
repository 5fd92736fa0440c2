package middlewares

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders batch the per-row lookups made while rendering delivery lists.
// They are created per request and read the store scope from the context
// of the first Load in a batch.
type Loaders struct {
	driverLoader   *dataloader.Loader[int, *models.Driver]
	zoneLoader     *dataloader.Loader[int, *models.DeliveryZone]
	orderLoader    *dataloader.Loader[int, *models.Order]
	customerLoader *dataloader.Loader[int, *models.Customer]
}

func NewLoaders() *Loaders {
	driverReader := &driverReader{}
	zoneReader := &deliveryZoneReader{}
	orderReader := &orderReader{}
	customerReader := &customerReader{}

	return &Loaders{
		driverLoader:   dataloader.NewBatchedLoader(driverReader.getDrivers, dataloader.WithWait[int, *models.Driver](time.Millisecond)),
		zoneLoader:     dataloader.NewBatchedLoader(zoneReader.getZones, dataloader.WithWait[int, *models.DeliveryZone](time.Millisecond)),
		orderLoader:    dataloader.NewBatchedLoader(orderReader.getOrders, dataloader.WithWait[int, *models.Order](time.Millisecond)),
		customerLoader: dataloader.NewBatchedLoader(customerReader.getCustomers, dataloader.WithWait[int, *models.Customer](time.Millisecond)),
	}
}

func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithValue(c.Request.Context(), loadersKey, NewLoaders())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// For returns the request loaders; background callers get a fresh set.
func For(ctx context.Context) *Loaders {
	if l, ok := ctx.Value(loadersKey).(*Loaders); ok {
		return l
	}
	return NewLoaders()
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

// fetchByIds loads one store's rows; ids outside the store come back as not found.
func fetchByIds[T models.Identifier](ctx context.Context, ids []int) []*dataloader.Result[*T] {
	storeId, ok := utils.GetStoreIdFromContext(ctx)
	if !ok {
		return handleError[*T](len(ids), utils.ErrorStoreIdRequired)
	}
	results, err := utils.FetchModelsByIds[T](ctx, storeId, ids)
	if err != nil {
		return handleError[*T](len(ids), err)
	}
	return generateLoaderResults(results, ids)
}

// turns results from db into dataloader results, in the order of ids
func generateLoaderResults[T models.Identifier](results []*T, ids []int) []*dataloader.Result[*T] {
	resultMap := make(map[int]*T, len(results))
	for _, result := range results {
		resultMap[(*result).GetId()] = result
	}

	loaderResults := make([]*dataloader.Result[*T], 0, len(ids))
	for _, id := range ids {
		data, ok := resultMap[id]
		if !ok {
			loaderResults = append(loaderResults, &dataloader.Result[*T]{Error: utils.ErrorRecordNotFound})
			continue
		}
		loaderResults = append(loaderResults, &dataloader.Result[*T]{Data: data})
	}
	return loaderResults
}
