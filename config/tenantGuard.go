package config

import (
	"context"
	"strings"

	"bitbucket.org/mmdatafocus/commerce_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TenantColumn is the column every store-owned table carries.
const TenantColumn = "store_id"

// TenantGuardPlugin scopes queries, updates and deletes to the request's store
// whenever the model has a store_id column.
//
// Raw SQL is not covered; raw statements must filter store_id themselves.
// Admin/internal bypass is explicit via context flags.
type TenantGuardPlugin struct {
	column string
}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{column: TenantColumn} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		name     string
		register func(string, func(*gorm.DB)) error
	}{
		{"tenant_guard:query", cb.Query().Before("gorm:query").Register},
		{"tenant_guard:row", cb.Row().Before("gorm:row").Register},
		{"tenant_guard:update", cb.Update().Before("gorm:update").Register},
		{"tenant_guard:delete", cb.Delete().Before("gorm:delete").Register},
	}
	for _, h := range hooks {
		if err := h.register(h.name, p.scope); err != nil {
			return err
		}
	}
	return nil
}

func (p *TenantGuardPlugin) scope(db *gorm.DB) {
	if db == nil || db.Statement == nil || db.Statement.Context == nil || db.Statement.Schema == nil {
		return
	}
	ctx := db.Statement.Context
	if BypassTenantScope(ctx) {
		return
	}
	storeId := StoreIdFromContext(ctx)
	if storeId == "" {
		return
	}
	if db.Statement.Schema.LookUpField(p.column) == nil {
		return
	}
	if where, ok := db.Statement.Clauses["WHERE"].Expression.(clause.Where); ok && p.mentions(where.Exprs) {
		return
	}
	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Table: db.Statement.Table, Name: p.column}, Value: storeId},
		},
	})
}

// mentions reports whether the tenant column is already filtered explicitly.
func (p *TenantGuardPlugin) mentions(exprs []clause.Expression) bool {
	for _, e := range exprs {
		var col any
		switch v := e.(type) {
		case clause.Eq:
			col = v.Column
		case clause.Neq:
			col = v.Column
		case clause.IN:
			col = v.Column
		case clause.AndConditions:
			if p.mentions(v.Exprs) {
				return true
			}
			continue
		case clause.OrConditions:
			if p.mentions(v.Exprs) {
				return true
			}
			continue
		case clause.Expr:
			if strings.Contains(strings.ToLower(v.SQL), p.column) {
				return true
			}
			continue
		case clause.NamedExpr:
			if strings.Contains(strings.ToLower(v.SQL), p.column) {
				return true
			}
			continue
		default:
			continue
		}
		switch c := col.(type) {
		case string:
			if strings.EqualFold(c, p.column) {
				return true
			}
		case clause.Column:
			if strings.EqualFold(c.Name, p.column) {
				return true
			}
		}
	}
	return false
}

func StoreIdFromContext(ctx context.Context) string {
	if v, ok := appctx.GetString(ctx, appctx.ContextKeyStoreId); ok {
		return v
	}
	return ""
}

func BypassTenantScope(ctx context.Context) bool {
	if v, ok := appctx.GetBool(ctx, appctx.ContextKeySkipTenantScope); ok && v {
		return true
	}
	if v, ok := appctx.GetBool(ctx, appctx.ContextKeyIsAdmin); ok && v {
		return true
	}
	return false
}
