package config

import (
	"errors"
	"testing"
)

func TestValidateAcceptsValidConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("合法配置不应报错: %v", err)
	}
}

func TestValidateEnforcesListenPortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Global.ListenPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("ListenPort 超出范围应当报错")
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Global.LogLevel = "loud"
	var fieldErr FieldError
	if err := cfg.Validate(); !errors.As(err, &fieldErr) || fieldErr.Field != "Global.LogLevel" {
		t.Fatalf("期望 Global.LogLevel 字段错误，得到 %v", err)
	}
}

func TestProviderTypeValidation(t *testing.T) {
	testCases := []struct {
		name      string
		provider  ProviderConfig
		shouldErr bool
	}{
		{"github ok", ProviderConfig{Name: "ghe", Type: ProviderTypeGitHub}, false},
		{"gitlab ok", ProviderConfig{Name: "lab", Type: ProviderTypeGitLab, WebBase: "https://lab.example.com"}, false},
		{"template ok", ProviderConfig{Name: "forge", Type: ProviderTypeTemplate, Tar: "https://f.example.com/{repo}/{ref}.tgz"}, false},
		{"template missing tar", ProviderConfig{Name: "forge", Type: ProviderTypeTemplate}, true},
		{"template without placeholder", ProviderConfig{Name: "forge", Type: ProviderTypeTemplate, Tar: "https://f.example.com/a.tgz"}, true},
		{"unsupported type", ProviderConfig{Name: "svn", Type: "svn"}, true},
		{"bad base", ProviderConfig{Name: "ghe", Type: ProviderTypeGitHub, APIBase: "ftp://x"}, true},
		{"bad name", ProviderConfig{Name: "a b", Type: ProviderTypeGitHub}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Providers = []ProviderConfig{tc.provider}
			err := cfg.Validate()
			if tc.shouldErr && err == nil {
				t.Fatalf("expected error for provider %+v", tc.provider)
			}
			if !tc.shouldErr && err != nil {
				t.Fatalf("unexpected error for provider %+v: %v", tc.provider, err)
			}
		})
	}
}

func TestValidateRejectsDuplicateProviders(t *testing.T) {
	cfg := validConfig()
	cfg.Providers = append(cfg.Providers, cfg.Providers[0])
	if err := cfg.Validate(); err == nil {
		t.Fatalf("重复的 provider 名称应报错")
	}
}

func TestProviderNames(t *testing.T) {
	names := ProviderNames(validConfig().Providers)
	if len(names) != 1 || names[0] != "ghe:github" {
		t.Fatalf("unexpected provider summary: %v", names)
	}
	if ProviderNames(nil) != nil {
		t.Fatalf("空列表应返回 nil")
	}
}
