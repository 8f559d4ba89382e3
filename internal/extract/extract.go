package extract

import (
	"archive/tar"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/tarfetch/internal/logging"
)

var (
	// ErrSubdirNotFound 表示启用子目录过滤时归档中没有任何条目命中。
	ErrSubdirNotFound = errors.New("subdirectory not found in archive")
	// ErrUnsafePath 表示条目路径或链接目标会落到目标目录之外。
	ErrUnsafePath = errors.New("archive entry escapes destination")
)

const paxGlobalHeader = "pax_global_header"

// Option 调整单次解包行为。
type Option func(*options)

type options struct {
	logger *logrus.Logger
}

// WithLogger 指定用于记录跳过条目与完成摘要的 logger。
func WithLogger(logger *logrus.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Stats 汇总一次解包的结果。
type Stats struct {
	Files    int
	Dirs     int
	Symlinks int
	Skipped  int
}

// Extract 打开 archivePath 并把内容展开到 destDir，subdir 为 "/" 或空串时不过滤。
func Extract(ctx context.Context, archivePath, destDir, subdir string, opts ...Option) (Stats, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return Stats{}, fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer file.Close()

	return ExtractReader(ctx, file, destDir, subdir, opts...)
}

// ExtractReader 与 Extract 相同，但直接读取一个 tar 或 tar.gz 流。
func ExtractReader(ctx context.Context, r io.Reader, destDir, subdir string, opts ...Option) (Stats, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Discard()
	}

	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}

	stream, closeStream, err := decompress(r)
	if err != nil {
		return Stats{}, err
	}
	defer closeStream()

	absDest, err := filepath.Abs(destDir)
	if err != nil {
		return Stats{}, fmt.Errorf("resolve destination %s: %w", destDir, err)
	}
	created, err := ensureDestination(absDest)
	if err != nil {
		return Stats{}, err
	}
	realDest, err := filepath.EvalSymlinks(absDest)
	if err != nil {
		return Stats{}, fmt.Errorf("resolve destination %s: %w", absDest, err)
	}

	x := &extractor{
		dest:     absDest,
		realDest: realDest,
		st:       newState(subdir),
		dirs:     map[string]struct{}{absDest: {}},
		logger:   o.logger,
	}
	if err := x.run(ctx, tar.NewReader(stream)); err != nil {
		return x.stats, err
	}

	if x.st.filtering() && !x.st.matched {
		if created {
			if rmErr := os.RemoveAll(absDest); rmErr != nil {
				o.logger.WithError(rmErr).WithField("dest", absDest).Warn("extract_cleanup_failed")
			}
		}
		return x.stats, fmt.Errorf("%w: %s", ErrSubdirNotFound, subdir)
	}

	o.logger.WithFields(logrus.Fields{
		"dest":     absDest,
		"subdir":   subdir,
		"files":    x.stats.Files,
		"dirs":     x.stats.Dirs,
		"symlinks": x.stats.Symlinks,
		"skipped":  x.stats.Skipped,
	}).Debug("extract_complete")
	return x.stats, nil
}

// decompress 根据 gzip 魔数决定是否套一层解压。
func decompress(r io.Reader) (io.Reader, func(), error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("read archive header: %w", err)
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("open gzip stream: %w", err)
		}
		return gz, func() { _ = gz.Close() }, nil
	}
	return br, func() {}, nil
}

func ensureDestination(dest string) (bool, error) {
	info, err := os.Stat(dest)
	switch {
	case err == nil:
		if !info.IsDir() {
			return false, fmt.Errorf("destination %s is not a directory", dest)
		}
		return false, nil
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return false, fmt.Errorf("create destination %s: %w", dest, err)
		}
		return true, nil
	default:
		return false, fmt.Errorf("stat destination %s: %w", dest, err)
	}
}

type extractor struct {
	dest string
	// realDest 是 dest 解析符号链接后的真实路径，用于判断写入位置是否越界。
	realDest string
	st       *state
	dirs     map[string]struct{}
	logger   *logrus.Logger
	stats    Stats
}

func (x *extractor) run(ctx context.Context, tr *tar.Reader) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, tar.ErrInsecurePath) && hdr != nil {
			return fmt.Errorf("%w: %s", ErrUnsafePath, hdr.Name)
		}
		if err != nil {
			return fmt.Errorf("read archive entry: %w", err)
		}
		if err := x.entry(hdr, tr); err != nil {
			return err
		}
	}
}

func (x *extractor) entry(hdr *tar.Header, body io.Reader) error {
	if hdr.Typeflag == tar.TypeXGlobalHeader || path.Base(hdr.Name) == paxGlobalHeader {
		return nil
	}

	isDir := hdr.Typeflag == tar.TypeDir || strings.HasSuffix(hdr.Name, "/")
	rel, ok := x.st.place(hdr.Name, isDir)
	if !ok {
		return nil
	}

	target, err := x.target(rel)
	if err != nil {
		return err
	}

	switch {
	case isDir:
		if err := x.mkdir(target); err != nil {
			return err
		}
		x.stats.Dirs++
	case hdr.Typeflag == tar.TypeReg:
		if err := x.writeFile(target, hdr, body); err != nil {
			return err
		}
		x.stats.Files++
	case hdr.Typeflag == tar.TypeSymlink:
		if err := x.symlink(target, hdr.Linkname); err != nil {
			return err
		}
		x.stats.Symlinks++
	default:
		x.stats.Skipped++
		x.logger.WithFields(logrus.Fields{
			"entry": hdr.Name,
			"type":  string(hdr.Typeflag),
		}).Debug("extract_entry_skipped")
	}
	return nil
}

// target 把相对路径映射到目标目录下，拒绝绝对路径与 .. 逃逸。
func (x *extractor) target(rel string) (string, error) {
	clean := strings.TrimSuffix(rel, "/")
	local := filepath.FromSlash(clean)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, rel)
	}
	return filepath.Join(x.dest, local), nil
}

func (x *extractor) mkdir(dir string) error {
	if _, ok := x.dirs[dir]; ok {
		return nil
	}
	if err := x.within(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	x.dirs[dir] = struct{}{}
	return nil
}

func (x *extractor) writeFile(target string, hdr *tar.Header, body io.Reader) error {
	if err := x.mkdir(filepath.Dir(target)); err != nil {
		return err
	}
	// 目录可能在记录之后被同名符号链接替换，每次写入都重新确认父目录的真实位置。
	if err := x.within(filepath.Dir(target)); err != nil {
		return err
	}
	if err := removeExisting(target); err != nil {
		return err
	}

	mode := hdr.FileInfo().Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}

	file, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}
	if _, err := io.Copy(file, body); err != nil {
		file.Close()
		return fmt.Errorf("write file %s: %w", target, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close file %s: %w", target, err)
	}
	// 创建时的权限会被 umask 截掉。
	return os.Chmod(target, mode)
}

func (x *extractor) symlink(target, linkname string) error {
	if linkname == "" || filepath.IsAbs(linkname) || path.IsAbs(linkname) {
		return fmt.Errorf("%w: symlink %s -> %s", ErrUnsafePath, target, linkname)
	}
	resolved := filepath.Join(filepath.Dir(target), filepath.FromSlash(linkname))
	relToDest, err := filepath.Rel(x.dest, resolved)
	if err != nil || !filepath.IsLocal(relToDest) {
		return fmt.Errorf("%w: symlink %s -> %s", ErrUnsafePath, target, linkname)
	}

	if err := x.noLinkedParent(target); err != nil {
		return err
	}
	if err := x.mkdir(filepath.Dir(target)); err != nil {
		return err
	}
	if err := x.within(filepath.Dir(target)); err != nil {
		return err
	}
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("replace %s: %w", target, err)
	}
	if err := os.Symlink(linkname, target); err != nil {
		return fmt.Errorf("create symlink %s: %w", target, err)
	}
	return nil
}

// within 要求 p 已存在的最深祖先在解析符号链接后仍位于目标目录内。
func (x *extractor) within(p string) error {
	existing := p
	for {
		_, err := os.Lstat(existing)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", existing, err)
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnsafePath, p, err)
	}
	rel, err := filepath.Rel(x.realDest, resolved)
	if err != nil || (rel != "." && !filepath.IsLocal(rel)) {
		return fmt.Errorf("%w: %s resolves to %s", ErrUnsafePath, p, resolved)
	}
	return nil
}

// noLinkedParent 拒绝经由已解包的符号链接再创建符号链接，链接链无法按字面路径判断落点。
func (x *extractor) noLinkedParent(target string) error {
	rel, err := filepath.Rel(x.dest, filepath.Dir(target))
	if err != nil || rel == "." {
		return nil
	}
	current := x.dest
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		current = filepath.Join(current, part)
		info, err := os.Lstat(current)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stat %s: %w", current, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: symlink %s is created through linked directory %s", ErrUnsafePath, target, current)
		}
	}
	return nil
}

// removeExisting 删除目标位置已有的文件或符号链接，避免写入时穿过链接，
// 也让只读文件可以被覆盖。
func removeExisting(target string) error {
	info, err := os.Lstat(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", target, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", target)
	}
	if err := os.Remove(target); err != nil {
		return fmt.Errorf("remove %s: %w", target, err)
	}
	return nil
}
