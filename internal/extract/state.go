package extract

import "strings"

// state 是单次解包调用独占的可变状态，按流顺序逐条推进，不做回看。
//
// 部分归档生成器不会为每个目录写出完整路径：目录条目可能只是相对上一个目录的后缀，
// 叶子文件也可能只有文件名。lastDir 用来在一次遍历内把这些条目拼回完整路径。
// 这是尽力而为的兼容逻辑，判定条件来自实际观察到的归档（见 extract_test.go 中的夹具）。
type state struct {
	rootKnown bool
	root      string
	lastDir   string
	subdir    string
	matched   bool
}

func newState(subdir string) *state {
	return &state{subdir: normalizeSubdir(subdir)}
}

// normalizeSubdir 去掉前导 /，并保证恰好一个结尾 /；"/" 或空串表示不过滤。
func normalizeSubdir(subdir string) string {
	subdir = strings.TrimLeft(subdir, "/")
	subdir = strings.TrimRight(subdir, "/")
	if subdir == "" {
		return ""
	}
	return subdir + "/"
}

// filtering 表示是否启用了子目录过滤。
func (s *state) filtering() bool {
	return s.subdir != ""
}

// place 计算条目相对输出目录的路径；ok 为 false 表示跳过该条目。
// 目录的返回值带结尾 /，输出根目录本身返回空串。
func (s *state) place(name string, isDir bool) (rel string, ok bool) {
	if !s.rootKnown {
		s.rootKnown = true
		if isDir {
			s.root = withSlash(name)
			return "", false
		}
	}

	var full string
	if isDir {
		dir := withSlash(name)
		if s.root != "" && !strings.HasPrefix(dir, s.root) && s.lastDir != "" {
			s.lastDir += dir
		} else {
			s.lastDir = dir
		}
		full = s.lastDir
	} else {
		full = name
		if s.lastDir != "" && !strings.Contains(name, "/") {
			full = s.lastDir + name
		}
	}

	rel = s.relative(full)
	if !s.filtering() {
		return rel, rel != ""
	}

	if !strings.HasPrefix(rel, s.subdir) {
		return "", false
	}
	s.matched = true
	rel = strings.TrimPrefix(rel, s.subdir)
	return rel, rel != ""
}

// relative 去掉归档根前缀。
func (s *state) relative(p string) string {
	if s.root != "" && strings.HasPrefix(p, s.root) {
		return p[len(s.root):]
	}
	return p
}

func withSlash(name string) string {
	if strings.HasSuffix(name, "/") {
		return name
	}
	return name + "/"
}
