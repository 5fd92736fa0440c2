package middlewares

import (
	"context"
	"testing"

	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/testsupport"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLoaderResults_KeepsIdOrder(t *testing.T) {
	rows := []*models.Customer{{ID: 3, Name: "c"}, {ID: 1, Name: "a"}}
	results := generateLoaderResults(rows, []int{1, 2, 3})
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].Data.Name)
	assert.ErrorIs(t, results[1].Error, utils.ErrorRecordNotFound)
	assert.Equal(t, "c", results[2].Data.Name)
}

func TestLoaders_AreStoreScoped(t *testing.T) {
	db := testsupport.OpenDB(t, models.AllModels()...)
	mine := &models.Customer{StoreId: "store-a", Name: "Бат", Phone: "+97699112233"}
	theirs := &models.Customer{StoreId: "store-b", Name: "Дорж", Phone: "+97688112233"}
	require.NoError(t, db.Create(mine).Error)
	require.NoError(t, db.Create(theirs).Error)

	ctx := context.WithValue(testsupport.StoreContext("store-a"), loadersKey, NewLoaders())
	loaders := For(ctx)
	first := loaders.customerLoader.Load(ctx, mine.ID)
	second := loaders.customerLoader.Load(ctx, theirs.ID)
	got, err := first()
	require.NoError(t, err)
	assert.Equal(t, "Бат", got.Name)
	_, err = second()
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)

	_, err = GetCustomer(context.Background(), mine.ID)
	assert.ErrorIs(t, err, utils.ErrorStoreIdRequired)
}
