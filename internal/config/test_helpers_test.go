package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			LogLevel:    "info",
			CacheDir:    "/tmp/tarfetch-cache",
			HTTPTimeout: Duration(30e9),
			ListenPort:  5000,
		},
		Providers: []ProviderConfig{
			{
				Name:    "ghe",
				Type:    ProviderTypeGitHub,
				APIBase: "https://ghe.example.com/api/v3",
				WebBase: "https://ghe.example.com",
			},
		},
	}
}
