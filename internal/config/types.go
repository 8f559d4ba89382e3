package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/any-hub/tarfetch/internal/cache"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if seconds, err := time.ParseDuration(raw); err == nil {
		*d = Duration(seconds)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述全局运行时行为，CLI 与镜像服务共享同一份参数。
type GlobalConfig struct {
	LogLevel        string     `mapstructure:"LogLevel"`
	LogFilePath     string     `mapstructure:"LogFilePath"`
	LogMaxSize      int        `mapstructure:"LogMaxSize"`
	LogMaxBackups   int        `mapstructure:"LogMaxBackups"`
	LogCompress     bool       `mapstructure:"LogCompress"`
	CacheDir        string     `mapstructure:"CacheDir"`
	HTTPTimeout     Duration   `mapstructure:"HTTPTimeout"`
	Offline         cache.Mode `mapstructure:"Offline"`
	Auth            string     `mapstructure:"Auth"`
	DefaultProvider string     `mapstructure:"DefaultProvider"`
	ListenPort      int        `mapstructure:"ListenPort"`
	PublicURL       string     `mapstructure:"PublicURL"`
}

// ProviderConfig 声明一个自定义 provider：自建 GitHub/GitLab 实例，或基于 URL 模板的任意托管服务。
type ProviderConfig struct {
	Name       string            `mapstructure:"Name"`
	Type       string            `mapstructure:"Type"`
	APIBase    string            `mapstructure:"APIBase"`
	WebBase    string            `mapstructure:"WebBase"`
	Tar        string            `mapstructure:"Tar"`
	URL        string            `mapstructure:"URL"`
	DefaultRef string            `mapstructure:"DefaultRef"`
	Headers    map[string]string `mapstructure:"Headers"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global    GlobalConfig     `mapstructure:",squash"`
	Providers []ProviderConfig `mapstructure:"Provider"`
}

// HasAuth 表示是否配置了默认的访问令牌。
func (g GlobalConfig) HasAuth() bool {
	return g.Auth != ""
}

// AuthMode 输出 `token` 或 `anonymous`，供日志字段使用，避免泄露令牌本身。
func (g GlobalConfig) AuthMode() string {
	if g.HasAuth() {
		return "token"
	}
	return "anonymous"
}

// ProviderNames 返回配置中声明的 provider 名称摘要，例如 ghe:github。
func ProviderNames(providers []ProviderConfig) []string {
	if len(providers) == 0 {
		return nil
	}
	result := make([]string, len(providers))
	for i, p := range providers {
		result[i] = fmt.Sprintf("%s:%s", p.Name, p.Type)
	}
	return result
}
