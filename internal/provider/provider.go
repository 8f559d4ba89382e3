package provider

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/tarfetch/internal/logging"
)

// DefaultName 是输入未带前缀且调用方未指定时使用的 provider。
const DefaultName = "github"

var (
	// ErrInvalidSource 表示输入无法解析出仓库或 URL。
	ErrInvalidSource = errors.New("invalid template source")
	// ErrInvalidDescriptor 表示远端 JSON 描述缺少必要字段或无法解析。
	ErrInvalidDescriptor = errors.New("invalid template descriptor")
)

var sourceProtoRe = regexp.MustCompile(`^([\w.-]+):`)

// Options 是传给 provider 的运行参数。
type Options struct {
	// Auth 为访问令牌，非空时以 Bearer 方式附加到请求与模板 headers。
	Auth string
	// Offline 为 true 时不做任何探测请求（默认分支查询、Content-Type 探测）。
	Offline bool
	Client  *http.Client
	Logger  *logrus.Logger
}

func (o Options) logger() *logrus.Logger {
	if o.Logger == nil {
		return logging.Discard()
	}
	return o.Logger
}

// Resolver 把去掉前缀后的输入解析为模板描述。
type Resolver interface {
	Resolve(ctx context.Context, source string, opts Options) (*Template, error)
}

// ResolverFunc 让普通函数满足 Resolver。
type ResolverFunc func(ctx context.Context, source string, opts Options) (*Template, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context, source string, opts Options) (*Template, error) {
	return f(ctx, source, opts)
}

// Split 从输入中拆出 provider 名与剩余部分。http/https 前缀保留完整 URL 作为 source。
func Split(input, preferred string) (source, name string) {
	name = normalizeName(preferred)
	if name == "" {
		name = DefaultName
	}
	source = input

	if m := sourceProtoRe.FindStringSubmatch(input); m != nil {
		name = normalizeName(m[1])
		if name != "http" && name != "https" {
			source = input[len(m[0]):]
		}
	}
	return source, name
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
