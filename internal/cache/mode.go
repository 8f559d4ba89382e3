package cache

import (
	"fmt"
	"strings"
)

// Mode 决定 fetcher 是否允许访问网络。
type Mode string

const (
	// ModeOnline 每次都向上游再验证。
	ModeOnline Mode = "false"
	// ModeOffline 只使用缓存，缓存缺失即报错。
	ModeOffline Mode = "true"
	// ModePrefer 缓存存在时直接使用，缺失时才下载。
	ModePrefer Mode = "prefer"
)

// ParseMode 解析 CLI/配置中的 offline 取值，兼容 bool 的各种字符串写法。
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "false", "0", "no", "online":
		return ModeOnline, nil
	case "true", "1", "yes", "offline":
		return ModeOffline, nil
	case "prefer", "prefer-offline":
		return ModePrefer, nil
	default:
		return "", fmt.Errorf("unsupported offline mode %q", raw)
	}
}

// ShouldFetch 根据缓存是否存在判断本次调用是否需要访问网络。
func (m Mode) ShouldFetch(cached bool) bool {
	switch m {
	case ModeOffline:
		return false
	case ModePrefer:
		return !cached
	default:
		return true
	}
}

// Offline 表示是否完全禁止网络访问，provider 用它跳过默认分支探测。
func (m Mode) Offline() bool {
	return m == ModeOffline
}

func (m Mode) String() string {
	if m == "" {
		return string(ModeOnline)
	}
	return string(m)
}
