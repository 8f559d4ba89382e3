package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// TemplateFields 提供 provider/模板名/版本字段，供下载、校验与镜像日志复用。
func TemplateFields(provider, name, version string) logrus.Fields {
	return logrus.Fields{
		"provider": provider,
		"template": name,
		"version":  version,
	}
}

// FetchFields 描述一次归档拉取的上游地址与缓存命中情况。
func FetchFields(url, cachePath string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"url":        url,
		"cache_path": cachePath,
		"cache_hit":  cacheHit,
	}
}
