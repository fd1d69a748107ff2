package cli

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/wasmerio/wapm-cli-sub000/pkg/observability"
)

// logHooks traces pipeline, cache and registry activity at debug level.
type logHooks struct {
	logger *log.Logger
}

func registerLogHooks(logger *log.Logger) {
	h := logHooks{logger: logger}
	observability.SetPipelineHooks(h)
	observability.SetCacheHooks(h)
	observability.SetHTTPHooks(h)
}

func (h logHooks) OnStageStart(_ context.Context, stage string, count int) {
	h.logger.Debug("stage started", "stage", stage, "count", count)
}

func (h logHooks) OnStageComplete(_ context.Context, stage string, count int, dur time.Duration, err error) {
	if err != nil {
		h.logger.Debug("stage failed", "stage", stage, "duration", dur.Round(time.Millisecond), "err", err)
		return
	}
	h.logger.Debug("stage done", "stage", stage, "count", count, "duration", dur.Round(time.Millisecond))
}

func (h logHooks) OnPackageInstalled(_ context.Context, pkg string, dur time.Duration, err error) {
	if err != nil {
		h.logger.Debug("install failed", "package", pkg, "err", err)
		return
	}
	h.logger.Debug("installed", "package", pkg, "duration", dur.Round(time.Millisecond))
}

func (h logHooks) OnCacheHit(_ context.Context, key string) {
	h.logger.Debug("cache hit", "key", key)
}

func (h logHooks) OnCacheMiss(_ context.Context, key string) {
	h.logger.Debug("cache miss", "key", key)
}

func (h logHooks) OnCacheSet(_ context.Context, key string, size int) {
	h.logger.Debug("cache set", "key", key, "bytes", size)
}

func (h logHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debug("request", "method", method, "host", host, "path", path)
}

func (h logHooks) OnResponse(_ context.Context, method, host, path string, status int, dur time.Duration) {
	h.logger.Debug("response", "method", method, "host", host, "path", path, "status", status, "duration", dur.Round(time.Millisecond))
}

func (h logHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Debug("request failed", "method", method, "host", host, "path", path, "err", err)
}

var (
	_ observability.PipelineHooks = logHooks{}
	_ observability.CacheHooks    = logHooks{}
	_ observability.HTTPHooks     = logHooks{}
)
