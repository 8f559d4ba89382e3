package routes

import (
	"sort"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/tarfetch/internal/config"
	"github.com/any-hub/tarfetch/internal/provider"
)

// RegisterProviderRoutes 暴露 /-/providers 诊断接口，列出可用 provider 以及配置中的自定义绑定。
func RegisterProviderRoutes(app *fiber.App, registry *provider.Registry, custom []config.ProviderConfig) {
	if app == nil || registry == nil {
		return
	}

	app.Get("/-/providers", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"providers": encodeProviders(registry.Names(), custom),
		})
	})
}

type providerPayload struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Custom  bool   `json:"custom"`
	WebBase string `json:"web_base,omitempty"`
}

func encodeProviders(names []string, custom []config.ProviderConfig) []providerPayload {
	if len(names) == 0 {
		return nil
	}
	declared := make(map[string]config.ProviderConfig, len(custom))
	for _, p := range custom {
		declared[strings.ToLower(p.Name)] = p
	}

	sort.Strings(names)
	result := make([]providerPayload, 0, len(names))
	for _, name := range names {
		item := providerPayload{Name: name, Type: builtinType(name)}
		if p, ok := declared[name]; ok {
			item.Type = p.Type
			item.Custom = true
			item.WebBase = p.WebBase
		}
		result = append(result, item)
	}
	return result
}

func builtinType(name string) string {
	switch name {
	case "gh":
		return config.ProviderTypeGitHub
	case "https":
		return "http"
	default:
		return name
	}
}
