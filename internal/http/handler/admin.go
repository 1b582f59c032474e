package handler

import (
	"crypto/subtle"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"imgbed/internal/service"
)

const adminPasswordHeader = "X-Admin-Password"

// ListUploads godoc
// @Summary      List uploads
// @Description  Pages through upload records, newest first. Requires the admin password.
// @Tags         admin
// @Produce      json
// @Param        X-Admin-Password  header    string  false  "Admin password"
// @Param        password          query     string  false  "Admin password"
// @Param        query             query     string  false  "Exact ip, url or identifier"
// @Param        limit             query     int     false  "Page size"  default(10)
// @Param        offset            query     int     false  "Offset"     default(0)
// @Success      200               {object}  service.UploadListResult
// @Failure      400               {object}  errorPayload
// @Failure      404               {object}  errorPayload
// @Router       /admin/uploads [get]
func ListUploads(svc service.ImageService, adminPassword string, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Unknown and unauthorized look the same.
		if !authorized(c, adminPassword) {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "resource not found")
		}

		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), c.Query("query"), limit, offset)
		if err != nil {
			return writeServiceError(c, log, err)
		}
		return c.JSON(res)
	}
}

func authorized(c *fiber.Ctx, adminPassword string) bool {
	if adminPassword == "" {
		return false
	}
	given := c.Get(adminPasswordHeader)
	if given == "" {
		given = c.Query("password")
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(adminPassword)) == 1
}
