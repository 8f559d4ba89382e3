// Package gituri 解析模板标识符 `<owner>/<repo>[/<subdir>][#<ref>]`，是标识符语法的唯一来源。
package gituri

import "regexp"

// inputPattern 与 provider 前缀无关，调用方需先剥离 `gh:` 之类的前缀。
var inputPattern = regexp.MustCompile(`^(?P<repo>[\w\-.]+/[\w\-.]+)(?P<subdir>[^#]+)?(?P<ref>#[\w\-./@]+)?`)

// URI 描述一次解析结果。Subdir 永远非空（默认 "/"），Ref 为空表示使用 provider 默认分支。
type URI struct {
	Repo   string
	Subdir string
	Ref    string
}

// Parse 解析模板标识符；无法匹配仓库时返回的 Repo 为空，调用方必须视为解析失败。
func Parse(input string) URI {
	result := URI{Subdir: "/"}
	m := inputPattern.FindStringSubmatch(input)
	if m == nil {
		return result
	}
	for i, name := range inputPattern.SubexpNames() {
		switch name {
		case "repo":
			result.Repo = m[i]
		case "subdir":
			if m[i] != "" {
				result.Subdir = m[i]
			}
		case "ref":
			if len(m[i]) > 1 {
				result.Ref = m[i][1:]
			}
		}
	}
	return result
}

// Valid 表示是否解析出了仓库。
func (u URI) Valid() bool {
	return u.Repo != ""
}

// Owner 返回 Repo 的第一段。
func (u URI) Owner() string {
	for i := 0; i < len(u.Repo); i++ {
		if u.Repo[i] == '/' {
			return u.Repo[:i]
		}
	}
	return u.Repo
}

// Name 返回 Repo 的第二段。
func (u URI) Name() string {
	for i := 0; i < len(u.Repo); i++ {
		if u.Repo[i] == '/' {
			return u.Repo[i+1:]
		}
	}
	return ""
}

// String 输出规范形式，满足 Parse(Parse(x).String()) == Parse(x)。
func (u URI) String() string {
	out := u.Repo
	if u.Subdir != "" && u.Subdir != "/" {
		out += u.Subdir
	}
	if u.Ref != "" {
		out += "#" + u.Ref
	}
	return out
}
