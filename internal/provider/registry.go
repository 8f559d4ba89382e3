package provider

import (
	"sort"
	"sync"
)

// Registry 保存名称到 Resolver 的映射，调用方提供的条目覆盖内置条目。
type Registry struct {
	mu        sync.RWMutex
	resolvers map[string]Resolver
}

// Builtins 返回内置 provider 表的新副本。
func Builtins() map[string]Resolver {
	github := GitHub{}
	return map[string]Resolver{
		"github":    github,
		"gh":        github,
		"gitlab":    GitLab{},
		"bitbucket": Bitbucket{},
		"sourcehut": Sourcehut{},
		"http":      HTTP{},
		"https":     HTTP{},
	}
}

// NewRegistry 以内置表为底，叠加 overrides。
func NewRegistry(overrides map[string]Resolver) *Registry {
	r := &Registry{resolvers: Builtins()}
	r.Merge(overrides)
	return r
}

// Merge 叠加额外的 Resolver，nil 值会被忽略。
func (r *Registry) Merge(overrides map[string]Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, resolver := range overrides {
		key := normalizeName(name)
		if key == "" || resolver == nil {
			continue
		}
		r.resolvers[key] = resolver
	}
}

// With 返回叠加了 overrides 的新 Registry，原 Registry 不变。
func (r *Registry) With(overrides map[string]Resolver) *Registry {
	if len(overrides) == 0 {
		return r
	}
	r.mu.RLock()
	clone := make(map[string]Resolver, len(r.resolvers)+len(overrides))
	for k, v := range r.resolvers {
		clone[k] = v
	}
	r.mu.RUnlock()

	next := &Registry{resolvers: clone}
	next.Merge(overrides)
	return next
}

// Lookup 按名称（忽略大小写）查找 Resolver。
func (r *Registry) Lookup(name string) (Resolver, bool) {
	if r == nil {
		return nil, false
	}
	key := normalizeName(name)
	if key == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	resolver, ok := r.resolvers[key]
	return resolver, ok
}

// Names 返回排序后的 provider 名称，用于诊断输出。
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.resolvers))
	for name := range r.resolvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
