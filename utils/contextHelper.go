package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/commerce_backend/appctx"
)

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, appctx.ContextKeyToken)
}

func GetStoreIdFromContext(ctx context.Context) (string, bool) {
	v, ok := appctx.GetString(ctx, appctx.ContextKeyStoreId)
	return v, ok && v != ""
}

func GetUsernameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, appctx.ContextKeyUsername)
}

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, appctx.ContextKeyUserId)
}

func GetUserNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, appctx.ContextKeyUserName)
}

func GetDriverIdFromContext(ctx context.Context) (int, bool) {
	v, ok := appctx.GetInt(ctx, appctx.ContextKeyDriverId)
	return v, ok && v > 0
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, appctx.ContextKeyCorrelationId)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyToken, token)
}

func SetStoreIdInContext(ctx context.Context, storeId string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyStoreId, storeId)
}

func SetUsernameInContext(ctx context.Context, username string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyUsername, username)
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyUserId, userId)
}

func SetUserNameInContext(ctx context.Context, userName string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyUserName, userName)
}

func SetDriverIdInContext(ctx context.Context, driverId int) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyDriverId, driverId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyCorrelationId, correlationId)
}

func GetIsAdminFromContext(ctx context.Context) (bool, bool) {
	return appctx.GetBool(ctx, appctx.ContextKeyIsAdmin)
}

func SetIsAdminInContext(ctx context.Context, isAdmin bool) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyIsAdmin, isAdmin)
}

// SystemContext scopes event handlers and workers to the store that owns the event.
func SystemContext(ctx context.Context, storeId string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyStoreId, storeId)
}

func SetSkipTenantScopeInContext(ctx context.Context, skip bool) context.Context {
	return appctx.Set(ctx, appctx.ContextKeySkipTenantScope, skip)
}
