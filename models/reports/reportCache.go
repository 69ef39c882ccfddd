package reports

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/pos_ledger/config"
	"github.com/mmdatafocus/pos_ledger/models"
	"github.com/mmdatafocus/pos_ledger/utils"
	"github.com/sirupsen/logrus"
)

func reportCacheEnabled() bool {
	v := strings.TrimSpace(os.Getenv("ENABLE_REPORT_CACHE"))
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes") || strings.EqualFold(v, "on")
}

func reportCacheTTL() time.Duration {
	// Env: REPORT_CACHE_TTL_SECONDS (default 120s)
	ttl := 120
	if v := strings.TrimSpace(os.Getenv("REPORT_CACHE_TTL_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ttl = n
		}
	}
	return time.Duration(ttl) * time.Second
}

func reportSlowMs() int64 {
	// Env: REPORT_SLOW_MS (default 500ms)
	ms := int64(500)
	if v := strings.TrimSpace(os.Getenv("REPORT_SLOW_MS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			ms = n
		}
	}
	return ms
}

func logSlowReport(ctx context.Context, name string, started time.Time, extra map[string]any) {
	d := time.Since(started)
	if d.Milliseconds() < reportSlowMs() {
		return
	}
	site, _ := utils.GetSiteIdFromContext(ctx)
	host, _ := utils.GetTerminalHostFromContext(ctx)
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	config.GetLogger().WithFields(logrus.Fields{
		"field":          "slow_report",
		"name":           name,
		"ms":             d.Milliseconds(),
		"site_id":        site,
		"host":           host,
		"correlation_id": cid,
		"extra":          extra,
	}).Warn("slow report")
}

func cacheGet[T any](ctx context.Context, key string, dest *T) (bool, error) {
	return config.GetRedisObject(ctx, key, dest)
}

func cacheSet(ctx context.Context, key string, obj any, ttl time.Duration) error {
	return config.SetRedisObject(ctx, key, obj, ttl)
}

func archiveSummaryKey(host string, id int) string {
	return fmt.Sprintf("ledger:%s:archive-summary:%d", host, id)
}

// ArchiveSummary returns the summary of sealed archive id, loading it through
// the chain on a cache miss. The caller must hold the ledger for the call.
func ArchiveSummary(ctx context.Context, sys *models.System, id int) (*models.ArchiveSummary, error) {
	started := time.Now()
	defer logSlowReport(ctx, "ArchiveSummary", started, map[string]any{"archive_id": id})

	key := archiveSummaryKey(sys.Host, id)
	if reportCacheEnabled() {
		var cached models.ArchiveSummary
		if ok, err := cacheGet(ctx, key, &cached); err == nil && ok {
			return &cached, nil
		}
	}

	a := sys.Archives.FindByID(id)
	if a == nil {
		return nil, nil
	}
	if !a.IsLoaded() {
		if err := sys.Archives.Load(a); err != nil {
			return nil, err
		}
	}
	summary := a.Summary()

	if reportCacheEnabled() {
		_ = cacheSet(ctx, key, summary, reportCacheTTL())
	}
	return &summary, nil
}

// InvalidateArchiveSummary drops the cached summary of archive id.
func InvalidateArchiveSummary(ctx context.Context, host string, id int) error {
	return config.RemoveRedisKey(ctx, archiveSummaryKey(host, id))
}
