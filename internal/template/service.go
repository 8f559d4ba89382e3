package template

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/tarfetch/internal/cache"
	"github.com/any-hub/tarfetch/internal/config"
	"github.com/any-hub/tarfetch/internal/extract"
	"github.com/any-hub/tarfetch/internal/fetch"
	"github.com/any-hub/tarfetch/internal/logging"
	"github.com/any-hub/tarfetch/internal/provider"
)

// Service 持有共享的 HTTP 客户端、缓存与 provider 注册表，可被 CLI 与镜像服务并发复用。
type Service struct {
	registry *provider.Registry
	fetcher  *fetch.Fetcher
	client   *http.Client
	logger   *logrus.Logger
	defaults Defaults
}

// New 组装 Service。registry 为 nil 时使用内置 provider。
func New(client *http.Client, store cache.Store, registry *provider.Registry, logger *logrus.Logger, defaults Defaults) *Service {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if registry == nil {
		registry = provider.NewRegistry(nil)
	}
	return &Service{
		registry: registry,
		fetcher:  fetch.NewFetcher(client, store, logger),
		client:   client,
		logger:   logger,
		defaults: defaults,
	}
}

// NewFromConfig 根据配置构建客户端、磁盘缓存与包含自定义 provider 的注册表。
func NewFromConfig(cfg *config.Config, logger *logrus.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	store, err := cache.NewStore(cfg.Global.CacheDir)
	if err != nil {
		return nil, err
	}
	registry := provider.NewRegistry(provider.FromConfig(cfg.Providers))
	return New(fetch.NewClient(cfg), store, registry, logger, Defaults{
		Provider: cfg.Global.DefaultProvider,
		Offline:  cfg.Global.Offline,
		Auth:     cfg.Global.Auth,
	}), nil
}

// Registry 返回 provider 注册表，供诊断接口列出名称。
func (s *Service) Registry() *provider.Registry {
	return s.registry
}

// Store 返回底层归档缓存。
func (s *Service) Store() cache.Store {
	return s.fetcher.Store()
}

// Prepare 解析输入并保证对应归档已在缓存中，不触碰目标目录。
func (s *Service) Prepare(ctx context.Context, input string, opts Options) (*Archive, error) {
	opts = s.defaults.apply(opts)

	tpl, name, source, err := s.resolve(ctx, input, opts, opts.Offline.Offline())
	if err != nil {
		return nil, err
	}

	store := s.fetcher.Store()
	locator := cache.Locator{Provider: name, Name: tpl.Name, Version: tpl.Version}
	blob, err := store.Path(locator)
	if err != nil {
		return nil, fmt.Errorf("cache path for %s: %w", tpl.Name, err)
	}

	archive := &Archive{
		Template: tpl,
		Provider: name,
		Source:   source,
		Locator:  locator,
		Path:     blob,
	}
	fields := logging.TemplateFields(name, tpl.Name, tpl.Version)
	fields["offline"] = opts.Offline.String()

	cached := store.Exists(locator)
	if opts.Offline.ShouldFetch(cached) {
		if tpl.Tar == "" {
			return nil, fmt.Errorf("%w: %s provider returned no tar url", ErrResolution, name)
		}
		res, err := s.fetcher.Fetch(ctx, tpl.Tar, locator, tpl.Headers)
		switch {
		case err == nil:
			archive.CacheHit = res.CacheHit
		case ctx.Err() != nil:
			return nil, err
		case store.Exists(locator):
			s.logger.WithFields(fields).WithError(err).Warn("download_stale_cache")
			archive.CacheHit = true
			archive.Stale = true
		default:
			return nil, err
		}
	} else {
		archive.CacheHit = cached
	}

	if !store.Exists(locator) {
		return nil, fmt.Errorf("%w: %s (offline: %s)", ErrTarballNotFound, blob, opts.Offline)
	}

	fields["cache_hit"] = archive.CacheHit
	fields["cache_path"] = blob
	s.logger.WithFields(fields).Debug("archive_ready")
	return archive, nil
}

// Download 解析、缓存并把模板展开到目标目录。
func (s *Service) Download(ctx context.Context, input string, opts Options) (*Result, error) {
	opts = s.defaults.apply(opts)

	archive, err := s.Prepare(ctx, input, opts)
	if err != nil {
		return nil, err
	}

	dest, err := destination(opts, archive.Template)
	if err != nil {
		return nil, err
	}
	if err := prepareDestination(dest, opts.Force); err != nil {
		return nil, err
	}

	stats, err := extract.Extract(ctx, archive.Path, dest, archive.Template.Subdir, extract.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}

	fields := logging.TemplateFields(archive.Provider, archive.Template.Name, archive.Template.Version)
	fields["dest"] = dest
	fields["files"] = stats.Files
	fields["cache_hit"] = archive.CacheHit
	s.logger.WithFields(fields).Info("download_complete")

	return &Result{
		Template: archive.Template,
		Provider: archive.Provider,
		Source:   archive.Source,
		Dir:      dest,
		Archive:  archive.Path,
		CacheHit: archive.CacheHit,
	}, nil
}

// Verify 检查模板的浏览地址是否可访问。verify 总是需要网络，忽略 Offline。
// 模板没有 URL 时，只要 provider 能解析即视为有效。
func (s *Service) Verify(ctx context.Context, input string, opts Options) (bool, error) {
	opts = s.defaults.apply(opts)

	tpl, name, _, err := s.resolve(ctx, input, opts, false)
	if err != nil {
		return false, err
	}
	if tpl.URL == "" {
		return true, nil
	}

	resp, err := fetch.Head(ctx, s.client, tpl.URL, tpl.Headers)
	if err != nil {
		return false, err
	}
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300

	fields := logging.TemplateFields(name, tpl.Name, tpl.Version)
	fields["url"] = tpl.URL
	fields["upstream_status"] = resp.StatusCode
	s.logger.WithFields(fields).Debug("verify_complete")
	return ok, nil
}

func (s *Service) resolve(ctx context.Context, input string, opts Options, offline bool) (provider.Template, string, string, error) {
	source, name := provider.Split(input, opts.Provider)

	resolver, ok := s.registry.With(opts.Providers).Lookup(name)
	if !ok {
		return provider.Template{}, name, source, fmt.Errorf("%w: %s", ErrUnsupportedProvider, name)
	}

	tpl, err := resolver.Resolve(ctx, source, provider.Options{
		Auth:    opts.Auth,
		Offline: offline,
		Client:  s.client,
		Logger:  s.logger,
	})
	if err != nil {
		return provider.Template{}, name, source, fmt.Errorf("%w: %s provider: %w", ErrResolution, name, err)
	}
	if tpl == nil {
		return provider.Template{}, name, source, fmt.Errorf("%w: %s provider returned no template", ErrResolution, name)
	}
	return tpl.Sanitized(), name, source, nil
}

// destination 计算 cwd/(Dir 或 DefaultDir) 的绝对路径；Dir 为绝对路径时直接使用。
func destination(opts Options, tpl provider.Template) (string, error) {
	dir := opts.Dir
	if dir == "" {
		dir = tpl.DefaultDir
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir), nil
	}
	cwd := opts.Cwd
	if cwd == "" {
		cwd = "."
	}
	abs, err := filepath.Abs(filepath.Join(cwd, dir))
	if err != nil {
		return "", fmt.Errorf("resolve destination: %w", err)
	}
	return abs, nil
}

func prepareDestination(dest string, force ForceMode) error {
	switch force {
	case ForceClean:
		if err := os.RemoveAll(dest); err != nil {
			return fmt.Errorf("clean destination %s: %w", dest, err)
		}
		return nil
	case ForceOverwrite:
		return nil
	}

	info, err := os.Stat(dest)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat destination %s: %w", dest, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrDirectoryExists, dest)
	}
	entries, err := os.ReadDir(dest)
	if err != nil {
		return fmt.Errorf("read destination %s: %w", dest, err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("%w: %s", ErrDirectoryExists, dest)
	}
	return nil
}
