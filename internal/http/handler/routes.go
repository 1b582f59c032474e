package handler

import (
	"context"
	"database/sql"
	"net"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"imgbed/internal/service"
)

// Deps are the collaborators the routes need.
type Deps struct {
	DB            *sql.DB
	Service       service.ImageService
	AdminPassword string
	Log           zerolog.Logger
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// The object catch-all is registered last, so any route added afterwards is shadowed for GET.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())

	app.Post("/upload", Upload(d.Service, d.Log))
	app.Delete("/delete/:identifier?", DeleteUpload(d.Service, d.Log))
	app.Get("/admin/uploads", ListUploads(d.Service, d.AdminPassword, d.Log))

	app.Get("/*", ServeObject(d.Service, d.Log))
}

// HealthCheck godoc
// @Summary      Readiness probe
// @Description  Pings the metadata store.
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  errorPayload
// @Router       /health [get]
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe godoc
// @Summary  Liveness probe
// @Tags     health
// @Success  200
// @Router   /healthz [get]
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// clientIP resolves the uploader address, preferring proxy headers over the socket peer.
func clientIP(c *fiber.Ctx) string {
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	for _, h := range []string{"CF-Connecting-IP", "X-Real-IP"} {
		if ip := strings.TrimSpace(c.Get(h)); ip != "" {
			return ip
		}
	}
	ip := c.IP()
	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}
	return ip
}
