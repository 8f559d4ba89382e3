package provider

import (
	"encoding/json"
	"regexp"
)

// DefaultTemplateName 在描述缺少名称时使用。
const DefaultTemplateName = "template"

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9-]`)

// Template 是 provider 解析后的模板描述。
type Template struct {
	Name       string            `json:"name"`
	Version    string            `json:"version,omitempty"`
	Subdir     string            `json:"subdir,omitempty"`
	Tar        string            `json:"tar"`
	URL        string            `json:"url,omitempty"`
	DefaultDir string            `json:"defaultDir,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// UnmarshalJSON 兼容远端描述中使用的 tarURL 字段名。
func (t *Template) UnmarshalJSON(data []byte) error {
	type plain Template
	var aux struct {
		plain
		TarURL string `json:"tarURL"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*t = Template(aux.plain)
	if t.Tar == "" {
		t.Tar = aux.TarURL
	}
	return nil
}

// Sanitized 返回名称与默认目录都只含 [A-Za-z0-9-] 的副本，原值保持不变。
func (t Template) Sanitized() Template {
	out := t
	out.Headers = cloneHeaders(t.Headers)

	name := t.Name
	if name == "" {
		name = DefaultTemplateName
	}
	out.Name = unsafeNameChars.ReplaceAllString(name, "-")

	dir := t.DefaultDir
	if dir == "" {
		dir = out.Name
	}
	out.DefaultDir = unsafeNameChars.ReplaceAllString(dir, "-")
	return out
}

func cloneHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = v
	}
	return out
}

// mergeHeaders 按顺序合并，后者覆盖前者，空值会被丢弃。
func mergeHeaders(sets ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, set := range sets {
		for k, v := range set {
			if v == "" {
				continue
			}
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func authHeader(auth string) map[string]string {
	if auth == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + auth}
}
