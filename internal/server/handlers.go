package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/any-hub/tarfetch/internal/cache"
	"github.com/any-hub/tarfetch/internal/logging"
	"github.com/any-hub/tarfetch/internal/provider"
	"github.com/any-hub/tarfetch/internal/template"
)

const archiveContentType = "application/gzip"

// mirrorHandler 处理模板描述与归档下载。同一模板的并发请求通过 singleflight 合并为一次上游拉取。
type mirrorHandler struct {
	service   *template.Service
	logger    *logrus.Logger
	publicURL string
	group     *singleflight.Group
}

func (h *mirrorHandler) template(c fiber.Ctx) error {
	providerName := strings.ToLower(strings.TrimSpace(c.Params("provider")))
	if providerName == "http" || providerName == "https" {
		return h.writeError(c, fiber.StatusBadRequest, "provider_not_mirrored")
	}
	repo, err := url.PathUnescape(c.Params("*"))
	if err != nil || repo == "" {
		return h.writeError(c, fiber.StatusBadRequest, "source_required")
	}

	input := providerName + ":" + repo
	if ref := c.Query("ref"); ref != "" {
		input += "#" + ref
	}

	// 合并后的拉取不能绑定在某一个请求的生命周期上。
	value, err, shared := h.group.Do(input, func() (any, error) {
		return h.service.Prepare(context.Background(), input, template.Options{})
	})
	if err != nil {
		status, code := classifyError(err)
		h.logger.WithError(err).WithFields(logrus.Fields{
			"action":     "mirror_template",
			"input":      input,
			"request_id": RequestID(c),
		}).Warn("mirror_prepare_failed")
		return h.writeError(c, status, code)
	}
	archive := value.(*template.Archive)

	descriptor := provider.Template{
		Name:       archive.Template.Name,
		Version:    archive.Template.Version,
		Subdir:     archive.Template.Subdir,
		URL:        archive.Template.URL,
		DefaultDir: archive.Template.DefaultDir,
		Tar:        h.baseURL(c) + archivePath(archive.Locator),
	}

	fields := logging.TemplateFields(archive.Provider, archive.Template.Name, archive.Template.Version)
	fields["request_id"] = RequestID(c)
	fields["cache_hit"] = archive.CacheHit
	fields["shared"] = shared
	h.logger.WithFields(fields).Debug("mirror_template_ready")

	c.Set("X-Tarfetch-Cache-Hit", strconv.FormatBool(archive.CacheHit))
	return c.JSON(descriptor)
}

func (h *mirrorHandler) archive(c fiber.Ctx) error {
	file, err := url.PathUnescape(c.Params("*"))
	if err != nil || !strings.HasSuffix(file, cache.ArchiveExt) {
		return h.writeError(c, fiber.StatusNotFound, "archive_not_found")
	}
	locator := cache.Locator{
		Provider: strings.ToLower(c.Params("provider")),
		Name:     c.Params("name"),
		Version:  strings.TrimSuffix(file, cache.ArchiveExt),
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := h.service.Store().Get(ctx, locator)
	if errors.Is(err, cache.ErrNotFound) {
		return h.writeError(c, fiber.StatusNotFound, "archive_not_found")
	}
	if err != nil {
		h.logger.WithError(err).WithField("request_id", RequestID(c)).Warn("mirror_archive_failed")
		return h.writeError(c, fiber.StatusInternalServerError, "archive_unavailable")
	}

	c.Set("Content-Type", archiveContentType)
	if result.Entry.SizeBytes > 0 {
		c.Response().Header.SetContentLength(int(result.Entry.SizeBytes))
	}
	c.Status(fiber.StatusOK)

	if c.Method() == http.MethodHead {
		result.Reader.Close()
		return nil
	}

	_, err = io.Copy(c.Response().BodyWriter(), result.Reader)
	result.Reader.Close()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "read cache failed")
	}
	return nil
}

func (h *mirrorHandler) baseURL(c fiber.Ctx) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	return c.BaseURL()
}

func (h *mirrorHandler) writeError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, template.ErrUnsupportedProvider):
		return fiber.StatusNotFound, "provider_not_found"
	case errors.Is(err, template.ErrResolution):
		return fiber.StatusBadRequest, "resolution_failed"
	case errors.Is(err, template.ErrTarballNotFound):
		return fiber.StatusNotFound, "tarball_not_found"
	case errors.Is(err, template.ErrDownloadFailed):
		return fiber.StatusBadGateway, "download_failed"
	default:
		return fiber.StatusInternalServerError, "internal_error"
	}
}

// archivePath 生成 /-/archives/<provider>/<name>/<version>.tar.gz，版本中的 / 保留为路径分隔。
func archivePath(locator cache.Locator) string {
	version := locator.Version
	if version == "" {
		version = locator.Name
	}
	segments := strings.Split(version, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "/-/archives/" + url.PathEscape(locator.Provider) + "/" + url.PathEscape(locator.Name) + "/" +
		strings.Join(segments, "/") + cache.ArchiveExt
}
