package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/any-hub/tarfetch/internal/template"
)

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger     *logrus.Logger
	Service    *template.Service
	ListenPort int
	// PublicURL 用于拼接描述中的 tar 地址；为空时使用请求自身的 scheme://host。
	PublicURL string
}

const contextKeyRequestID = "_tarfetch_request_id"

// NewApp builds the mirror Fiber application with request ID, recover and
// access log middleware.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Service == nil {
		return nil, errors.New("template service is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts.Logger))

	h := &mirrorHandler{
		service:   opts.Service,
		logger:    opts.Logger,
		publicURL: strings.TrimRight(opts.PublicURL, "/"),
		group:     &singleflight.Group{},
	}
	app.Get("/-/templates/:provider/*", h.template)
	app.Get("/-/archives/:provider/:name/*", h.archive)

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID 并在请求结束后输出访问日志。
func requestContextMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		started := time.Now()
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		err := c.Next()

		status := c.Response().StatusCode()
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}
		logger.WithFields(logrus.Fields{
			"action":     "access",
			"request_id": reqID,
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"elapsed_ms": time.Since(started).Milliseconds(),
		}).Info("request_complete")
		return err
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
