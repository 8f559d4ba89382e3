package provider

import (
	"context"
	"strings"

	"github.com/any-hub/tarfetch/internal/config"
)

// URLTemplate 通过字符串模板描述任意托管服务，支持 {repo} {owner} {name} {ref} {subdir} 占位符。
type URLTemplate struct {
	Tar        string
	URL        string
	DefaultRef string
	Headers    map[string]string
}

// Resolve implements Resolver.
func (t URLTemplate) Resolve(_ context.Context, source string, opts Options) (*Template, error) {
	uri, err := parseRepo(source)
	if err != nil {
		return nil, err
	}
	ref := uri.Ref
	if ref == "" {
		ref = t.DefaultRef
	}
	if ref == "" {
		ref = FallbackRef
	}

	r := strings.NewReplacer(
		"{repo}", uri.Repo,
		"{owner}", uri.Owner(),
		"{name}", uri.Name(),
		"{ref}", ref,
		"{subdir}", uri.Subdir,
	)

	return &Template{
		Name:    repoName(uri),
		Version: ref,
		Subdir:  uri.Subdir,
		Tar:     r.Replace(t.Tar),
		URL:     r.Replace(t.URL),
		Headers: mergeHeaders(authHeader(opts.Auth), t.Headers),
	}, nil
}

// FromConfig 把配置中的 [[Provider]] 转换为 Resolver，键为小写名称。
func FromConfig(providers []config.ProviderConfig) map[string]Resolver {
	if len(providers) == 0 {
		return nil
	}
	out := make(map[string]Resolver, len(providers))
	for _, p := range providers {
		var r Resolver
		switch p.Type {
		case config.ProviderTypeGitHub:
			r = GitHub{APIBase: p.APIBase, WebBase: p.WebBase, Headers: p.Headers}
		case config.ProviderTypeGitLab:
			r = GitLab{APIBase: p.APIBase, WebBase: p.WebBase, Headers: p.Headers}
		case config.ProviderTypeBitbucket:
			r = Bitbucket{APIBase: p.APIBase, WebBase: p.WebBase, Headers: p.Headers}
		case config.ProviderTypeSourcehut:
			r = Sourcehut{WebBase: p.WebBase, Headers: p.Headers}
		default:
			r = URLTemplate{Tar: p.Tar, URL: p.URL, DefaultRef: p.DefaultRef, Headers: p.Headers}
		}
		out[normalizeName(p.Name)] = r
	}
	return out
}
