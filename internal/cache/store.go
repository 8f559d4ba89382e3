package cache

import (
	"context"
	"errors"
	"io"
	"time"
)

// Store 负责管理模板归档的磁盘缓存。磁盘布局遵循：
//
//	<CacheDir>/<Provider>/<Name>/<Version>.tar.gz        # 归档正文
//	<CacheDir>/<Provider>/<Name>/<Version>.tar.gz.json   # 旁路元数据 {"etag": "..."}
//
// 缓存对进程外共享，只会整体替换，不会出现部分写入。
type Store interface {
	// Path 返回条目正文的绝对路径，不检查文件是否存在。
	Path(locator Locator) (string, error)

	// Exists 表示正文文件是否已经存在。
	Exists(locator Locator) bool

	// Get 返回一个可流式读取的缓存条目。若不存在则返回 ErrNotFound。
	Get(ctx context.Context, locator Locator) (*ReadResult, error)

	// Put 将归档写入缓存。实现需通过临时文件 + rename 保证写入原子性，并在失败时清理临时文件。
	Put(ctx context.Context, locator Locator, body io.Reader, opts PutOptions) (*Entry, error)

	// Remove 删除正文与旁路元数据。
	Remove(ctx context.Context, locator Locator) error

	// ReadMeta 读取旁路元数据；文件缺失或损坏时返回零值，不会报错。
	ReadMeta(locator Locator) Meta

	// WriteMeta 原子地写入旁路元数据。
	WriteMeta(locator Locator, meta Meta) error
}

// PutOptions 控制写入过程中的可选属性。
type PutOptions struct {
	ModTime time.Time
}

// Locator 唯一定位一个缓存条目（provider + 模板名 + 版本）。Version 为空时回退为 Name。
type Locator struct {
	Provider string
	Name     string
	Version  string
}

// Meta 是正文旁边的元数据记录。
type Meta struct {
	ETag string `json:"etag,omitempty"`
}

// Entry 表示一次缓存命中结果，包含绝对文件路径及文件信息。
type Entry struct {
	Locator   Locator `json:"locator"`
	FilePath  string  `json:"file_path"`
	SizeBytes int64   `json:"size_bytes"`
	ModTime   time.Time
}

// ReadResult 组合 Entry 与正文 Reader，便于镜像服务直接将 Body 流式返回。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadSeekCloser
}

// ErrNotFound 表示缓存不存在。
var ErrNotFound = errors.New("cache entry not found")

// ArchiveExt 是缓存正文的扩展名。
const ArchiveExt = ".tar.gz"

// metaExt 追加在正文路径之后构成旁路文件名。
const metaExt = ".json"
