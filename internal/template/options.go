package template

import (
	"fmt"
	"strings"

	"github.com/any-hub/tarfetch/internal/cache"
	"github.com/any-hub/tarfetch/internal/provider"
)

// ForceMode 决定目标目录已存在内容时的处理方式。
type ForceMode string

const (
	// ForceNone 目标目录非空时报错。
	ForceNone ForceMode = ""
	// ForceOverwrite 直接覆盖同名文件，保留多余文件。
	ForceOverwrite ForceMode = "overwrite"
	// ForceClean 解包前删除整个目标目录。
	ForceClean ForceMode = "clean"
)

// ParseForceMode 解析 CLI/配置中的 force 取值。
func ParseForceMode(raw string) (ForceMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "false", "none":
		return ForceNone, nil
	case "true", "overwrite":
		return ForceOverwrite, nil
	case "clean":
		return ForceClean, nil
	default:
		return ForceNone, fmt.Errorf("unsupported force mode %q", raw)
	}
}

// Options 控制单次 Download/Verify。零值字段回退到 Service 的默认值。
type Options struct {
	Provider  string
	Providers map[string]provider.Resolver
	Dir       string
	Cwd       string
	Force     ForceMode
	Offline   cache.Mode
	Auth      string
}

// Defaults 是 Service 级别的默认值，通常来自配置文件。
type Defaults struct {
	Provider string
	Offline  cache.Mode
	Auth     string
}

func (d Defaults) apply(opts Options) Options {
	if opts.Provider == "" {
		opts.Provider = d.Provider
	}
	if opts.Offline == "" {
		opts.Offline = d.Offline
	}
	if opts.Auth == "" {
		opts.Auth = d.Auth
	}
	return opts
}

// Result 是 Download 的返回值。
type Result struct {
	Template provider.Template
	Provider string
	Source   string
	Dir      string
	Archive  string
	CacheHit bool
}

// Archive 描述已经落入缓存的模板归档。
type Archive struct {
	Template provider.Template
	Provider string
	Source   string
	Locator  cache.Locator
	Path     string
	CacheHit bool
	// Stale 表示本次下载失败，使用的是之前缓存的版本。
	Stale bool
}
