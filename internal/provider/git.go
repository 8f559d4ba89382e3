package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/tarfetch/internal/fetch"
	"github.com/any-hub/tarfetch/internal/gituri"
)

// FallbackRef 在未指定 ref 且无法查询默认分支时使用。
const FallbackRef = "main"

const (
	defaultGitHubAPI    = "https://api.github.com"
	defaultGitHubWeb    = "https://github.com"
	defaultGitLabWeb    = "https://gitlab.com"
	defaultBitbucketAPI = "https://api.bitbucket.org"
	defaultBitbucketWeb = "https://bitbucket.org"
	defaultSourcehutWeb = "https://git.sr.ht"

	// 限制默认分支接口响应体的读取量。
	maxMetadataBytes = 1 << 20
)

// repoInfo 兼容 GitHub/GitLab 的 default_branch 与 Bitbucket 的 mainbranch.name。
type repoInfo struct {
	DefaultBranch string `json:"default_branch"`
	MainBranch    struct {
		Name string `json:"name"`
	} `json:"mainbranch"`
}

func parseRepo(source string) (gituri.URI, error) {
	uri := gituri.Parse(source)
	if !uri.Valid() {
		return uri, fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}
	return uri, nil
}

// repoName 把 owner/name 转为 owner-name，作为缓存与目录名。
func repoName(uri gituri.URI) string {
	return strings.Replace(uri.Repo, "/", "-", 1)
}

func baseOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return strings.TrimRight(value, "/")
}

// resolveRef 优先使用输入中的 ref；否则在线查询默认分支，失败或离线时回退到 main。
func resolveRef(ctx context.Context, uri gituri.URI, opts Options, lookup func(context.Context) (string, bool)) string {
	if uri.Ref != "" {
		return uri.Ref
	}
	if !opts.Offline && lookup != nil {
		if ref, ok := lookup(ctx); ok {
			return ref
		}
	}
	return FallbackRef
}

// defaultBranch 请求仓库元数据接口。任何失败都返回 ("", false)，由调用方回退。
func defaultBranch(ctx context.Context, opts Options, endpoint string, headers map[string]string, pick func(repoInfo) string) (string, bool) {
	log := opts.logger().WithField("endpoint", endpoint)

	resp, err := fetch.Do(ctx, opts.Client, http.MethodGet, endpoint, headers)
	if err != nil {
		log.WithError(err).Debug("default_branch_failed")
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.WithField("status", resp.StatusCode).Debug("default_branch_failed")
		return "", false
	}

	var info repoInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxMetadataBytes)).Decode(&info); err != nil {
		log.WithError(err).Debug("default_branch_failed")
		return "", false
	}
	ref := strings.TrimSpace(pick(info))
	if ref == "" {
		return "", false
	}
	log.WithFields(logrus.Fields{"ref": ref}).Debug("default_branch_resolved")
	return ref, true
}

// GitHub 解析 github.com 或 GitHub Enterprise 仓库。
type GitHub struct {
	// APIBase 默认 https://api.github.com；GHE 通常为 https://host/api/v3。
	APIBase string
	WebBase string
	Headers map[string]string
}

// Resolve implements Resolver.
func (g GitHub) Resolve(ctx context.Context, source string, opts Options) (*Template, error) {
	uri, err := parseRepo(source)
	if err != nil {
		return nil, err
	}
	api := baseOr(g.APIBase, defaultGitHubAPI)
	web := baseOr(g.WebBase, defaultGitHubWeb)

	headers := mergeHeaders(
		authHeader(opts.Auth),
		map[string]string{
			"Accept":               "application/vnd.github+json",
			"X-GitHub-Api-Version": "2022-11-28",
		},
		g.Headers,
	)

	ref := resolveRef(ctx, uri, opts, func(ctx context.Context) (string, bool) {
		return defaultBranch(ctx, opts, api+"/repos/"+uri.Repo, headers, func(info repoInfo) string {
			return info.DefaultBranch
		})
	})

	return &Template{
		Name:    repoName(uri),
		Version: ref,
		Subdir:  uri.Subdir,
		Headers: headers,
		URL:     fmt.Sprintf("%s/%s/tree/%s%s", web, uri.Repo, ref, uri.Subdir),
		Tar:     fmt.Sprintf("%s/repos/%s/tarball/%s", api, uri.Repo, ref),
	}, nil
}

// GitLab 解析 gitlab.com 或自建 GitLab 仓库。
type GitLab struct {
	WebBase string
	// APIBase 默认为 WebBase + /api/v4。
	APIBase string
	Headers map[string]string
}

// Resolve implements Resolver.
func (g GitLab) Resolve(ctx context.Context, source string, opts Options) (*Template, error) {
	uri, err := parseRepo(source)
	if err != nil {
		return nil, err
	}
	web := baseOr(g.WebBase, defaultGitLabWeb)
	api := baseOr(g.APIBase, web+"/api/v4")

	headers := mergeHeaders(
		authHeader(opts.Auth),
		map[string]string{"sec-fetch-mode": "same-origin"},
		g.Headers,
	)

	ref := resolveRef(ctx, uri, opts, func(ctx context.Context) (string, bool) {
		endpoint := api + "/projects/" + url.PathEscape(uri.Repo)
		return defaultBranch(ctx, opts, endpoint, headers, func(info repoInfo) string {
			return info.DefaultBranch
		})
	})

	return &Template{
		Name:    repoName(uri),
		Version: ref,
		Subdir:  uri.Subdir,
		Headers: headers,
		URL:     fmt.Sprintf("%s/%s/tree/%s%s", web, uri.Repo, ref, uri.Subdir),
		Tar:     fmt.Sprintf("%s/%s/-/archive/%s.tar.gz", web, uri.Repo, ref),
	}, nil
}

// Bitbucket 解析 bitbucket.org 仓库。
type Bitbucket struct {
	APIBase string
	WebBase string
	Headers map[string]string
}

// Resolve implements Resolver.
func (b Bitbucket) Resolve(ctx context.Context, source string, opts Options) (*Template, error) {
	uri, err := parseRepo(source)
	if err != nil {
		return nil, err
	}
	api := baseOr(b.APIBase, defaultBitbucketAPI)
	web := baseOr(b.WebBase, defaultBitbucketWeb)
	headers := mergeHeaders(authHeader(opts.Auth), b.Headers)

	ref := resolveRef(ctx, uri, opts, func(ctx context.Context) (string, bool) {
		return defaultBranch(ctx, opts, api+"/2.0/repositories/"+uri.Repo, headers, func(info repoInfo) string {
			return info.MainBranch.Name
		})
	})

	return &Template{
		Name:    repoName(uri),
		Version: ref,
		Subdir:  uri.Subdir,
		Headers: headers,
		URL:     fmt.Sprintf("%s/%s/src/%s%s", web, uri.Repo, ref, uri.Subdir),
		Tar:     fmt.Sprintf("%s/%s/get/%s.tar.gz", web, uri.Repo, ref),
	}, nil
}

// Sourcehut 解析 git.sr.ht 仓库。sourcehut 没有公开的默认分支接口，未指定 ref 时固定为 main。
type Sourcehut struct {
	WebBase string
	Headers map[string]string
}

// Resolve implements Resolver.
func (s Sourcehut) Resolve(_ context.Context, source string, opts Options) (*Template, error) {
	uri, err := parseRepo(source)
	if err != nil {
		return nil, err
	}
	web := baseOr(s.WebBase, defaultSourcehutWeb)
	ref := uri.Ref
	if ref == "" {
		ref = FallbackRef
	}

	return &Template{
		Name:    repoName(uri),
		Version: ref,
		Subdir:  uri.Subdir,
		Headers: mergeHeaders(authHeader(opts.Auth), s.Headers),
		URL:     fmt.Sprintf("%s/~%s/tree/%s/item%s", web, uri.Repo, ref, uri.Subdir),
		Tar:     fmt.Sprintf("%s/~%s/archive/%s.tar.gz", web, uri.Repo, ref),
	}, nil
}
