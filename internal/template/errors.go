package template

import (
	"errors"

	"github.com/any-hub/tarfetch/internal/extract"
	"github.com/any-hub/tarfetch/internal/fetch"
)

var (
	// ErrUnsupportedProvider 表示输入前缀或 Options.Provider 指向未注册的 provider。
	ErrUnsupportedProvider = errors.New("unsupported provider")
	// ErrResolution 包装 provider 返回的错误或空结果。
	ErrResolution = errors.New("provider failed to resolve template")
	// ErrDirectoryExists 表示目标目录非空且未指定 force。
	ErrDirectoryExists = errors.New("destination already exists")
	// ErrTarballNotFound 表示离线模式下缓存缺失，或下载失败后仍无可用缓存。
	ErrTarballNotFound = errors.New("tarball not found")

	ErrDownloadFailed = fetch.ErrDownloadFailed
	ErrSubdirNotFound = extract.ErrSubdirNotFound
)
