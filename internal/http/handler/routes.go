package handler

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"docstore/internal/model"
	"docstore/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app. All
// document operations go through the DataClient facade; the HTTP layer
// never touches a repository or the object store directly.
func RegisterRoutes(app *fiber.App, svc service.DataClient) {
	// Readiness: per-backend reachability
	app.Get("/health", HealthCheck(svc))
	// Liveness probe
	app.Get("/healthz", LivenessProbe())

	app.Get("/documents", ListDocuments(svc))
	app.Post("/documents", UploadDocument(svc))
	app.Get("/documents/:id", GetDocument(svc))
	app.Delete("/documents/:id", DeleteDocument(svc))
	app.Get("/documents/:id/content", DownloadDocument(svc))
	app.Get("/documents/:id/url", PresignDownload(svc))
	app.Get("/documents/:id/lines", ListDocumentLines(svc))
	app.Put("/documents/:id/lines", SaveDocumentLines(svc))
	app.Patch("/documents/:id/lines/:blockId", UpdateDocumentLine(svc))
}

// HealthCheck reports the reachability of each backend independently so
// a readiness probe can tell which store is down.
func HealthCheck(svc service.DataClient) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		h := svc.Check(ctx)
		status := fiber.StatusOK
		if !h.Healthy() {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(h)
	}
}

// LivenessProbe is a trivial always-OK probe.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// ListDocuments returns paginated documents, optionally filtered by
// lifecycle state (?state=ACTIVE).
func ListDocuments(svc service.DataClient) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}
		state := model.DocumentState(c.Query("state"))
		switch state {
		case "", model.StatePending, model.StateActive, model.StateDeleted:
		default:
			return writeError(c, fiber.StatusBadRequest, "INVALID_STATE", "invalid state filter")
		}

		res, err := svc.List(c.UserContext(), limit, offset, state)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// UploadDocument handles multipart uploads (field name: file) plus the
// metadata form fields external_id, owner_id, and access_group.
func UploadDocument(svc service.DataClient) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		content, err := io.ReadAll(f)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_READ_ERROR", "cannot read uploaded file")
		}

		meta := service.UploadMeta{
			ExternalID:  c.FormValue("external_id"),
			OwnerID:     c.FormValue("owner_id"),
			AccessGroup: c.FormValue("access_group"),
		}

		doc, err := svc.Upload(c.UserContext(), fh.Filename, content, meta)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	}
}

// GetDocument returns document metadata by ID.
func GetDocument(svc service.DataClient) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// DownloadDocument streams the raw blob content of a document.
func DownloadDocument(svc service.DataClient) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		content, err := svc.GetFile(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
		return c.Send(content)
	}
}

// PresignDownload returns a time-limited download URL
// (?ttl=3600, seconds, default one hour).
func PresignDownload(svc service.DataClient) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		ttlSec, err := strconv.Atoi(c.Query("ttl", "3600"))
		if err != nil || ttlSec <= 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_TTL", "invalid ttl")
		}

		url, err := svc.GenerateDownloadURL(c.UserContext(), id, time.Duration(ttlSec)*time.Second)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"url": url, "expires_in": ttlSec})
	}
}

// DeleteDocument removes a document across both stores.
func DeleteDocument(svc service.DataClient) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.Delete(c.UserContext(), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// SaveDocumentLines replaces the full line set of a document.
func SaveDocumentLines(svc service.DataClient) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		var lines []model.Line
		if err := c.BodyParser(&lines); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid lines payload")
		}
		if err := svc.SaveLines(c.UserContext(), id, lines); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ListDocumentLines returns the ordered line set of a document.
func ListDocumentLines(svc service.DataClient) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		lines, err := svc.ListLines(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(lines)
	}
}

// UpdateDocumentLine rewrites the content of a single line by block id.
func UpdateDocumentLine(svc service.DataClient) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		var body struct {
			Content string `json:"content"`
		}
		if err := c.BodyParser(&body); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid body")
		}
		if err := svc.UpdateLine(c.UserContext(), id, c.Params("blockId"), body.Content); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func documentID(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}
