package handlers

import (
	"context"
	"io"
	"log"

	"etlaq/pkg/cloudinary"

	"github.com/gofiber/fiber/v2"
)

// maxUploadSize caps uploads at 10MB.
const maxUploadSize = 10 * 1024 * 1024

// allowedUploadTypes lists the accepted image MIME types.
var allowedUploadTypes = map[string]bool{
	"image/jpeg":    true,
	"image/png":     true,
	"image/gif":     true,
	"image/webp":    true,
	"image/svg+xml": true,
}

// Uploader is the slice of the media host client the upload route needs.
type Uploader interface {
	Configured() bool
	Upload(ctx context.Context, data []byte, filename string, opts cloudinary.UploadOptions) (*cloudinary.UploadResult, error)
}

// UploadHandler proxies validated file uploads to the media host.
type UploadHandler struct {
	uploader Uploader
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(uploader Uploader) *UploadHandler {
	return &UploadHandler{
		uploader: uploader,
	}
}

// RegisterRoutes registers the upload route with the Fiber app.
func (h *UploadHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/upload", h.HandleUpload)
}

// HandleUpload validates the multipart file and forwards it to the media
// host. Size and type checks happen before any network call.
func (h *UploadHandler) HandleUpload(c *fiber.Ctx) error {
	if h.uploader == nil || !h.uploader.Configured() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Upload service not configured",
		})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "File is required",
		})
	}
	folder := c.FormValue("folder", "uploads")

	if fileHeader.Size > maxUploadSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "File exceeds the maximum allowed size (10MB)",
		})
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !allowedUploadTypes[contentType] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unsupported file type. Supported types: JPEG, PNG, GIF, WebP, SVG",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Printf("Error opening uploaded file: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		log.Printf("Error reading uploaded file: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}

	result, err := h.uploader.Upload(c.Context(), data, fileHeader.Filename, cloudinary.UploadOptions{
		Folder: folder,
	})
	if err != nil {
		log.Printf("Upload error: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Upload failed",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"public_id": result.PublicID,
			"url":       result.SecureURL,
			"width":     result.Width,
			"height":    result.Height,
			"format":    result.Format,
			"bytes":     result.Bytes,
		},
	})
}
