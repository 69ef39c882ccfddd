package utils

import (
	"context"

	"github.com/mmdatafocus/pos_ledger/appctx"
)

func GetSiteIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, appctx.ContextKeySiteId)
}

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, appctx.ContextKeyUserId)
}

func GetTerminalHostFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, appctx.ContextKeyTerminalHost)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, appctx.ContextKeyCorrelationId)
}

func SetSiteIdInContext(ctx context.Context, siteId string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeySiteId, siteId)
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyUserId, userId)
}

func SetTerminalHostInContext(ctx context.Context, host string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyTerminalHost, host)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyCorrelationId, correlationId)
}
