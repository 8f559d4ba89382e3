package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/tarfetch/internal/cache"
	"github.com/any-hub/tarfetch/internal/logging"
)

// ErrDownloadFailed 表示上游返回错误状态、空响应体或网络不可达。
var ErrDownloadFailed = errors.New("download failed")

// Fetcher 负责 “读旁路元数据 → HEAD 再验证 → GET 写缓存” 的全流程。
type Fetcher struct {
	client *http.Client
	store  cache.Store
	logger *logrus.Logger
}

// Result 描述一次 Fetch 的结果。
type Result struct {
	Path     string
	CacheHit bool
	ETag     string
}

// NewFetcher constructs a fetcher with shared HTTP client/store/logger.
func NewFetcher(client *http.Client, store cache.Store, logger *logrus.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Fetcher{
		client: client,
		store:  store,
		logger: logger,
	}
}

// Store 返回底层缓存，供编排层检查条目是否存在。
func (f *Fetcher) Store() cache.Store {
	return f.store
}

// Fetch 确保 locator 对应的缓存文件与 url 一致。HEAD 返回的 ETag 与旁路记录一致且正文存在时
// 不会产生任何 GET；HEAD 失败只代表无法判断，会继续走 GET。
func (f *Fetcher) Fetch(ctx context.Context, url string, locator cache.Locator, headers map[string]string) (Result, error) {
	filePath, err := f.store.Path(locator)
	if err != nil {
		return Result{}, err
	}
	result := Result{Path: filePath}

	meta := f.store.ReadMeta(locator)
	etag := f.revalidationToken(ctx, url, headers)
	if etag != "" && etag == meta.ETag && f.store.Exists(locator) {
		result.CacheHit = true
		result.ETag = etag
		f.logger.WithFields(logging.FetchFields(url, filePath, true)).Debug("fetch_cache_hit")
		return result, nil
	}

	resp, err := Do(ctx, f.client, http.MethodGet, url, headers)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return result, fmt.Errorf("%w: %s: %s", ErrDownloadFailed, url, resp.Status)
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return result, fmt.Errorf("%w: %s: empty response body", ErrDownloadFailed, url)
	}

	entry, err := f.store.Put(ctx, locator, resp.Body, cache.PutOptions{ModTime: extractModTime(resp.Header)})
	if err != nil {
		return result, fmt.Errorf("%w: %s: %w", ErrDownloadFailed, url, err)
	}

	if etag == "" {
		etag = normalizeETag(resp.Header.Get("Etag"))
	}
	if etag != "" {
		if err := f.store.WriteMeta(locator, cache.Meta{ETag: etag}); err != nil {
			f.logger.WithError(err).WithFields(logging.FetchFields(url, filePath, false)).Warn("fetch_meta_write_failed")
		}
	}
	result.ETag = etag

	fields := logging.FetchFields(url, filePath, false)
	fields["size_bytes"] = entry.SizeBytes
	fields["upstream_status"] = resp.StatusCode
	f.logger.WithFields(fields).Debug("fetch_complete")
	return result, nil
}

// revalidationToken 发起 HEAD 并返回 ETag；任何失败都视为未知（空字符串）。
func (f *Fetcher) revalidationToken(ctx context.Context, url string, headers map[string]string) string {
	resp, err := Head(ctx, f.client, url, headers)
	if err != nil {
		f.logger.WithError(err).WithField("url", url).Debug("fetch_head_failed")
		return ""
	}
	if resp.StatusCode >= 400 {
		return ""
	}
	return normalizeETag(resp.Header.Get("Etag"))
}

func extractModTime(header http.Header) time.Time {
	if header == nil {
		return time.Time{}
	}
	if value := header.Get("Last-Modified"); value != "" {
		if parsed, err := http.ParseTime(value); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}

func normalizeETag(value string) string {
	return strings.TrimSpace(value)
}
