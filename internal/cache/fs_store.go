package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// NewStore 以 basePath 为根目录构建磁盘缓存，整个进程复用一份实例。
func NewStore(basePath string) (Store, error) {
	if basePath == "" {
		return nil, errors.New("cache dir required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	return &fileStore{
		basePath: abs,
		locks:    make(map[string]*entryLock),
	}, nil
}

// fileStore 通过 entryLock 避免同一进程内对同一 Locator 并发写入；跨进程依赖 rename 的原子性。
type fileStore struct {
	basePath string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (s *fileStore) Path(locator Locator) (string, error) {
	return s.entryPath(locator)
}

func (s *fileStore) Exists(locator Locator) bool {
	filePath, err := s.entryPath(locator)
	if err != nil {
		return false
	}
	info, err := os.Stat(filePath)
	return err == nil && !info.IsDir()
}

func (s *fileStore) Get(ctx context.Context, locator Locator) (*ReadResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	filePath, err := s.entryPath(locator)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	entry := Entry{
		Locator:   locator,
		FilePath:  filePath,
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}

	return &ReadResult{
		Entry:  entry,
		Reader: f,
	}, nil
}

func (s *fileStore) Put(ctx context.Context, locator Locator, body io.Reader, opts PutOptions) (*Entry, error) {
	unlock, err := s.lockEntry(locator)
	if err != nil {
		return nil, err
	}
	defer unlock()

	filePath, err := s.entryPath(locator)
	if err != nil {
		return nil, err
	}

	written, err := writeAtomic(filePath, ".archive-*", func(w io.Writer) (int64, error) {
		return copyWithContext(ctx, w, body)
	})
	if err != nil {
		return nil, err
	}

	modTime := opts.ModTime
	if modTime.IsZero() {
		modTime = time.Now().UTC()
	}
	if err := os.Chtimes(filePath, modTime, modTime); err != nil {
		return nil, err
	}

	entry := Entry{
		Locator:   locator,
		FilePath:  filePath,
		SizeBytes: written,
		ModTime:   modTime,
	}
	return &entry, nil
}

func (s *fileStore) Remove(ctx context.Context, locator Locator) error {
	unlock, err := s.lockEntry(locator)
	if err != nil {
		return err
	}
	defer unlock()

	filePath, err := s.entryPath(locator)
	if err != nil {
		return err
	}
	for _, target := range []string{filePath, filePath + metaExt} {
		if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (s *fileStore) ReadMeta(locator Locator) Meta {
	filePath, err := s.entryPath(locator)
	if err != nil {
		return Meta{}
	}
	raw, err := os.ReadFile(filePath + metaExt)
	if err != nil {
		return Meta{}
	}
	var meta Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Meta{}
	}
	return meta
}

func (s *fileStore) WriteMeta(locator Locator, meta Meta) error {
	filePath, err := s.entryPath(locator)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = writeAtomic(filePath+metaExt, ".meta-*", func(w io.Writer) (int64, error) {
		n, err := w.Write(payload)
		return int64(n), err
	})
	return err
}

func (s *fileStore) lockEntry(locator Locator) (func(), error) {
	key := locatorKey(locator)
	s.mu.Lock()
	lock := s.locks[key]
	if lock == nil {
		lock = &entryLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}, nil
}

// entryPath 计算 <base>/<provider>/<name>/<version>.tar.gz，并拒绝逃逸出 provider 目录的版本号。
func (s *fileStore) entryPath(locator Locator) (string, error) {
	if locator.Provider == "" {
		return "", errors.New("provider name required")
	}
	if locator.Name == "" {
		return "", errors.New("template name required")
	}
	for _, segment := range []string{locator.Provider, locator.Name} {
		if segment == "." || segment == ".." || strings.ContainsAny(segment, `/\`) {
			return "", errors.New("invalid cache path")
		}
	}

	version := locator.Version
	if version == "" {
		version = locator.Name
	}
	rel := strings.TrimPrefix(path.Clean("/"+version), "/")
	if rel == "" {
		rel = locator.Name
	}

	dir := filepath.Join(s.basePath, locator.Provider, locator.Name)
	filePath := filepath.Join(dir, filepath.FromSlash(rel)+ArchiveExt)
	if !strings.HasPrefix(filePath, dir+string(filepath.Separator)) {
		return "", errors.New("invalid cache path")
	}
	return filePath, nil
}

// writeAtomic 先写入同目录临时文件再 rename，失败时清理临时文件。
func writeAtomic(target, pattern string, write func(io.Writer) (int64, error)) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}

	tempFile, err := os.CreateTemp(filepath.Dir(target), pattern)
	if err != nil {
		return 0, err
	}
	tempName := tempFile.Name()

	written, err := write(tempFile)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return written, err
	}

	if err := os.Rename(tempName, target); err != nil {
		os.Remove(tempName)
		return written, err
	}
	return written, nil
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}

func locatorKey(locator Locator) string {
	return locator.Provider + "::" + locator.Name + "::" + locator.Version
}
