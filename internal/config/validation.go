package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/tarfetch/internal/cache"
)

// 自定义 provider 支持的类型。
const (
	ProviderTypeGitHub    = "github"
	ProviderTypeGitLab    = "gitlab"
	ProviderTypeBitbucket = "bitbucket"
	ProviderTypeSourcehut = "sourcehut"
	ProviderTypeTemplate  = "template"
)

var supportedProviderTypes = map[string]struct{}{
	ProviderTypeGitHub:    {},
	ProviderTypeGitLab:    {},
	ProviderTypeBitbucket: {},
	ProviderTypeSourcehut: {},
	ProviderTypeTemplate:  {},
}

const supportedProviderTypeList = "github|gitlab|bitbucket|sourcehut|template"

var providerNamePattern = regexp.MustCompile(`^[\w.-]+$`)

// Validate 针对语义级别做进一步校验，防止非法配置进入运行时。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", "无法识别的日志级别 "+g.LogLevel)
	}
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.CacheDir == "" {
		return newFieldError("Global.CacheDir", "不能为空")
	}
	if g.HTTPTimeout.DurationValue() <= 0 {
		return newFieldError("Global.HTTPTimeout", "必须大于 0")
	}
	if _, err := cache.ParseMode(string(g.Offline)); err != nil {
		return newFieldError("Global.Offline", "仅支持 true/false/prefer")
	}
	if g.PublicURL != "" {
		if err := validateBase(g.PublicURL); err != nil {
			return fmt.Errorf("Global.PublicURL: %w", err)
		}
	}

	seenNames := map[string]struct{}{}
	for i := range c.Providers {
		p := &c.Providers[i]
		if p.Name == "" {
			return newFieldError("Provider[].Name", "不能为空")
		}
		if !providerNamePattern.MatchString(p.Name) {
			return newFieldError(providerField(p.Name, "Name"), "仅允许字母、数字、下划线、点与连字符")
		}
		if _, exists := seenNames[p.Name]; exists {
			return newFieldError(providerField(p.Name, "Name"), "重复")
		}
		seenNames[p.Name] = struct{}{}

		if _, ok := supportedProviderTypes[p.Type]; !ok {
			return newFieldError(providerField(p.Name, "Type"), "仅支持 "+supportedProviderTypeList)
		}
		for _, base := range []struct{ field, value string }{{"APIBase", p.APIBase}, {"WebBase", p.WebBase}} {
			if base.value == "" {
				continue
			}
			if err := validateBase(base.value); err != nil {
				return fmt.Errorf("%s: %w", providerField(p.Name, base.field), err)
			}
		}
		if p.Type == ProviderTypeTemplate {
			if strings.TrimSpace(p.Tar) == "" {
				return newFieldError(providerField(p.Name, "Tar"), "template 类型必须提供归档地址模板")
			}
			if !strings.Contains(p.Tar, "{repo}") && !strings.Contains(p.Tar, "{name}") {
				return newFieldError(providerField(p.Name, "Tar"), "至少需要包含 {repo} 或 {name} 占位符")
			}
		}
	}

	return nil
}

func validateBase(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("缺少 Host: %s", raw)
	}
	return nil
}
