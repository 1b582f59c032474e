package handler

import (
	"mime/multipart"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"imgbed/internal/model"
	"imgbed/internal/service"
)

const uploadField = "file"

// Upload godoc
// @Summary      Upload images
// @Description  Stores each image once per distinct content. Non-image files are skipped.
// @Tags         uploads
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "Image file, repeatable"
// @Success      200   {array}   model.UploadResult
// @Failure      400   {object}  errorPayload
// @Failure      413   {object}  errorPayload
// @Failure      429   {object}  errorPayload
// @Failure      500   {object}  errorPayload
// @Router       /upload [post]
func Upload(svc service.ImageService, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "multipart form with a file field is required")
		}
		headers := form.File[uploadField]
		if len(headers) == 0 {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		files := make([]model.FileInput, 0, len(headers))
		opened := make([]multipart.File, 0, len(headers))
		defer func() {
			for _, f := range opened {
				_ = f.Close()
			}
		}()

		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
			}
			opened = append(opened, f)
			files = append(files, model.FileInput{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get(fiber.HeaderContentType),
				Size:        fh.Size,
				Content:     f,
			})
		}

		res, err := svc.Upload(c.UserContext(), files, clientIP(c), time.Now())
		if err != nil {
			return writeServiceError(c, log, err)
		}
		return c.Status(fiber.StatusOK).JSON(res)
	}
}
