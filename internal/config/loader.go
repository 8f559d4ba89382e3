package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/any-hub/tarfetch/internal/cache"
)

const (
	// EnvCacheDir 覆盖缓存根目录。
	EnvCacheDir = "TARFETCH_CACHE_DIR"
	// EnvAuth 提供默认访问令牌。
	EnvAuth = "TARFETCH_AUTH"
	// cacheDirName 是 XDG 缓存目录下的子目录名。
	cacheDirName = "tarfetch"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。path 为空时仅使用默认值与环境变量。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(durationDecodeHook(), offlineDecodeHook())
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	for i := range cfg.Providers {
		applyProviderDefaults(&cfg.Providers[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absCache, err := filepath.Abs(cfg.Global.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.Global.CacheDir = absCache

	return &cfg, nil
}

// Default 返回不读取任何文件时的配置，等价于 Load("")。
func Default() (*Config, error) {
	return Load("")
}

// DefaultCacheDir 计算缓存根目录：优先环境变量，其次 XDG 缓存目录。
func DefaultCacheDir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvCacheDir)); dir != "" {
		return dir
	}
	return filepath.Join(xdg.CacheHome, cacheDirName)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("CacheDir", "")
	v.SetDefault("HTTPTimeout", "60s")
	v.SetDefault("Offline", "")
	v.SetDefault("Auth", "")
	v.SetDefault("DefaultProvider", "github")
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("PublicURL", "")
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("CacheDir", EnvCacheDir)
	_ = v.BindEnv("Auth", EnvAuth)
}

func applyGlobalDefaults(g *GlobalConfig) {
	if strings.TrimSpace(g.LogLevel) == "" {
		g.LogLevel = "info"
	}
	if strings.TrimSpace(g.CacheDir) == "" {
		g.CacheDir = DefaultCacheDir()
	}
	if g.HTTPTimeout.DurationValue() == 0 {
		g.HTTPTimeout = Duration(60 * time.Second)
	}
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	g.DefaultProvider = strings.ToLower(strings.TrimSpace(g.DefaultProvider))
	if g.DefaultProvider == "" {
		g.DefaultProvider = "github"
	}
	g.PublicURL = strings.TrimRight(strings.TrimSpace(g.PublicURL), "/")
}

func applyProviderDefaults(p *ProviderConfig) {
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	p.Type = strings.ToLower(strings.TrimSpace(p.Type))
	if p.Type == "" {
		p.Type = ProviderTypeTemplate
	}
	p.APIBase = strings.TrimRight(strings.TrimSpace(p.APIBase), "/")
	p.WebBase = strings.TrimRight(strings.TrimSpace(p.WebBase), "/")
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}

// offlineDecodeHook 同时接受 TOML 布尔值与 "prefer" 字符串。
func offlineDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(cache.Mode(""))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case bool:
			if v {
				return cache.ModeOffline, nil
			}
			return cache.ModeOnline, nil
		case string:
			mode, err := cache.ParseMode(v)
			if err != nil {
				return nil, fmt.Errorf("无法解析 Offline 字段: %w", err)
			}
			return mode, nil
		case cache.Mode:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Offline 类型: %T", v)
		}
	}
}
