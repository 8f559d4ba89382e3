package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/any-hub/tarfetch/internal/config"
	"github.com/any-hub/tarfetch/internal/version"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   16,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewClient 返回共享 http.Client，用于 provider 探测、归档下载与校验。
func NewClient(cfg *config.Config) *http.Client {
	timeout := 60 * time.Second
	if cfg != nil && cfg.Global.HTTPTimeout.DurationValue() > 0 {
		timeout = cfg.Global.HTTPTimeout.DurationValue()
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: defaultTransport.Clone(),
	}
}

// NewRequest 构建携带模板 headers 的请求，并统一 User-Agent。
func NewRequest(ctx context.Context, method, url string, headers map[string]string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	for key, value := range headers {
		if value == "" {
			continue
		}
		req.Header.Set(key, value)
	}
	return req, nil
}

// Do 发起请求；传输层错误会带上 URL 便于定位。调用方负责关闭 Body。
func Do(ctx context.Context, client *http.Client, method, url string, headers map[string]string) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := NewRequest(ctx, method, url, headers)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	return resp, nil
}

// Head 发起 HEAD 请求并立即丢弃响应体，只保留状态码与头部。
func Head(ctx context.Context, client *http.Client, url string, headers map[string]string) (*http.Response, error) {
	resp, err := Do(ctx, client, http.MethodHead, url, headers)
	if err != nil {
		return nil, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp, nil
}
