package reports

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
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
	ms := int64(500)
	if v := strings.TrimSpace(os.Getenv("REPORT_SLOW_MS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			ms = n
		}
	}
	return ms
}

func logSlowReport(ctx context.Context, name string, started time.Time, extra logrus.Fields) {
	d := time.Since(started)
	if d.Milliseconds() < reportSlowMs() {
		return
	}
	storeId, _ := utils.GetStoreIdFromContext(ctx)
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	fields := logrus.Fields{
		"report":         name,
		"ms":             d.Milliseconds(),
		"store_id":       storeId,
		"correlation_id": cid,
	}
	for k, v := range extra {
		fields[k] = v
	}
	config.GetLogger().WithFields(fields).Warn("slow report")
}

func reportCacheKey(name, storeId string, from, to time.Time) string {
	return fmt.Sprintf("Report:%s:%s:%d:%d", name, storeId, from.Unix(), to.Unix())
}

func cacheGet[T any](key string, dest *T) (bool, error) {
	if !reportCacheEnabled() {
		return false, nil
	}
	return config.GetRedisObject(key, dest)
}

func cacheSet(key string, obj any) {
	if !reportCacheEnabled() {
		return
	}
	if err := config.SetRedisObject(key, obj, reportCacheTTL()); err != nil {
		config.LogError(config.GetLogger(), "Reports", "cacheSet", key, nil, err)
	}
}
