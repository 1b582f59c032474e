package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"imgbed/internal/service"
)

const cacheStatusHeader = "X-Cache-Status"

// DeleteUpload godoc
// @Summary      Delete an upload
// @Description  Removes the object and its record, then invalidates cached copies.
// @Tags         uploads
// @Produce      json
// @Param        identifier  path      string  true  "Upload identifier"
// @Success      200         {object}  map[string]string
// @Failure      400         {object}  errorPayload
// @Failure      404         {object}  errorPayload
// @Failure      500         {object}  errorPayload
// @Router       /delete/{identifier} [delete]
func DeleteUpload(svc service.ImageService, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("identifier")
		if id == "" {
			return writeError(c, fiber.StatusBadRequest, "IDENTIFIER_REQUIRED", "identifier is required")
		}
		if err := svc.Delete(c.UserContext(), id); err != nil {
			return writeServiceError(c, log, err)
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "deleted"})
	}
}

// ServeObject godoc
// @Summary      Fetch an object
// @Description  Serves stored bytes through the edge cache, or the fallback image with 404.
// @Tags         objects
// @Produce      octet-stream
// @Param        path  path  string  true  "Storage path"
// @Success      200
// @Failure      404   {object}  errorPayload
// @Failure      500   {object}  errorPayload
// @Router       /{path} [get]
func ServeObject(svc service.ImageService, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/" {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "resource not found")
		}

		obj, err := svc.Fetch(c.UserContext(), c.Path())
		if err != nil {
			return writeServiceError(c, log, err)
		}

		c.Status(obj.Status)
		c.Set(fiber.HeaderContentType, obj.ContentType)
		if obj.CacheControl != "" {
			c.Set(fiber.HeaderCacheControl, obj.CacheControl)
		}
		if obj.CacheHit {
			c.Set(cacheStatusHeader, "HIT")
		} else {
			c.Set(cacheStatusHeader, "MISS")
		}

		// fasthttp closes the stream once the body is written.
		if obj.Size >= 0 {
			return c.SendStream(obj.Body, int(obj.Size))
		}
		return c.SendStream(obj.Body)
	}
}
