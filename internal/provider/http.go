package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/any-hub/tarfetch/internal/fetch"
)

var archiveSuffixes = []string{".tar.gz", ".tgz", ".tar"}

// HTTP 处理 http:// 与 https:// 输入：URL 本身即归档，或指向一个 JSON 模板描述。
type HTTP struct{}

// Resolve implements Resolver.
func (HTTP) Resolve(ctx context.Context, source string, opts Options) (*Template, error) {
	u, err := url.Parse(source)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}
	href := u.String()
	headers := authHeader(opts.Auth)

	isJSON := strings.HasSuffix(strings.ToLower(u.Path), ".json")
	var disposition string
	if !isJSON && !opts.Offline {
		resp, err := fetch.Head(ctx, opts.Client, href, headers)
		switch {
		case err != nil:
			opts.logger().WithError(err).WithField("url", href).Debug("http_probe_failed")
		case resp.StatusCode < 400:
			isJSON = isJSONContentType(resp.Header.Get("Content-Type"))
			disposition = resp.Header.Get("Content-Disposition")
		}
	}

	if isJSON {
		return fetchDescriptor(ctx, u, headers, opts)
	}

	name := dispositionName(disposition)
	if name == "" {
		name = path.Base(u.Path)
	}
	name = trimArchiveSuffix(name)
	if name == "." || name == "/" {
		name = ""
	}

	return &Template{
		Name:       name,
		URL:        href,
		Tar:        href,
		DefaultDir: name,
		Headers:    headers,
	}, nil
}

// fetchDescriptor 下载并解析远端模板描述。相对的 tar 地址按描述所在 URL 解析；
// 令牌只会附加到与描述同源的归档地址。
func fetchDescriptor(ctx context.Context, u *url.URL, headers map[string]string, opts Options) (*Template, error) {
	href := u.String()
	resp, err := fetch.Do(ctx, opts.Client, http.MethodGet, href, mergeHeaders(headers, map[string]string{
		"Accept": "application/json",
	}))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s returned %d", ErrInvalidDescriptor, href, resp.StatusCode)
	}

	var tpl Template
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxMetadataBytes)).Decode(&tpl); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDescriptor, href, err)
	}
	if tpl.Name == "" || tpl.Tar == "" {
		return nil, fmt.Errorf("%w: %s must provide name and tar", ErrInvalidDescriptor, href)
	}

	tarURL, err := u.Parse(tpl.Tar)
	if err != nil {
		return nil, fmt.Errorf("%w: tar %q: %w", ErrInvalidDescriptor, tpl.Tar, err)
	}
	tpl.Tar = tarURL.String()

	if tpl.Headers == nil && tarURL.Host == u.Host {
		tpl.Headers = cloneHeaders(headers)
	}
	return &tpl, nil
}

func isJSONContentType(value string) bool {
	if value == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func dispositionName(value string) string {
	if value == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(value)
	if err != nil {
		return ""
	}
	return path.Base(params["filename"])
}

func trimArchiveSuffix(name string) string {
	lower := strings.ToLower(name)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(lower, suffix) && len(name) > len(suffix) {
			return name[:len(name)-len(suffix)]
		}
	}
	return name
}
