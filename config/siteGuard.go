package config

import (
	"context"
	"strings"

	"github.com/mmdatafocus/pos_ledger/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SiteGuardPlugin scopes catalog reads, updates and deletes to the site in the
// request context when the model carries a site_id column. Several sites can
// share one catalog database; one site never sees another's archives.
//
// Raw SQL is not scoped.
type SiteGuardPlugin struct{}

func NewSiteGuardPlugin() *SiteGuardPlugin { return &SiteGuardPlugin{} }

func (p *SiteGuardPlugin) Name() string { return "site_guard" }

func (p *SiteGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("site_guard:query", siteGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("site_guard:row", siteGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("site_guard:update", siteGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("site_guard:delete", siteGuardCallback); err != nil {
		return err
	}
	return nil
}

func siteGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil || db.Statement.Context == nil {
		return
	}
	ctx := db.Statement.Context
	if v, ok := appctx.GetBool(ctx, appctx.ContextKeyAllSites); ok && v {
		return
	}
	siteID := siteIdFromContext(ctx)
	if siteID == "" || db.Statement.Schema == nil {
		return
	}
	if db.Statement.Schema.LookUpField("site_id") == nil {
		return
	}
	if whereHasSiteID(db.Statement.Clauses["WHERE"]) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: "site_id"},
				Value:  siteID,
			},
		},
	})
}

func siteIdFromContext(ctx context.Context) string {
	v, _ := appctx.GetString(ctx, appctx.ContextKeySiteId)
	return strings.TrimSpace(v)
}

func whereHasSiteID(c clause.Clause) bool {
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasSiteID(e) {
			return true
		}
	}
	return false
}

func exprHasSiteID(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsSiteID(v.Column)
	case clause.IN:
		return colIsSiteID(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasSiteID(x) {
				return true
			}
		}
	case clause.Expr:
		return strings.Contains(strings.ToLower(v.SQL), "site_id")
	}
	return false
}

func colIsSiteID(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, "site_id")
	case clause.Column:
		return strings.EqualFold(c.Name, "site_id")
	}
	return false
}
