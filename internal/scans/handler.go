package scans

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"filetrack-backend/internal/shared/server/middleware"
	"filetrack-backend/internal/shared/server/respond"
	"filetrack-backend/internal/shared/telemetry"
)

const defaultMaxUploadBytes = 50 << 20

type Handler struct {
	Svc      *Service
	MaxBytes int64
}

func NewHandler(svc *Service, maxBytes int64) *Handler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &Handler{Svc: svc, MaxBytes: maxBytes}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/files/:id/scans", h.list)
	rg.GET("/scans/:id/download", h.download)
	rg.POST("/files/:id/scans", middleware.RequireEdit(), h.upload)
}

func (h *Handler) upload(c *gin.Context) {
	fileID, ok := pathFileID(c)
	if !ok {
		return
	}
	c.Set(middleware.FileIDKey, fileID)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", fmt.Sprintf("scan exceeds %d bytes", h.MaxBytes), nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}

	res, err := h.Svc.Upload(c.Request.Context(), UploadInput{
		FileID:     fileID,
		UploaderID: middleware.UserIDFromContext(c),
		FileName:   fileHeader.Filename,
		Data:       data,
	})
	if err != nil {
		respond.FromError(c, err, "failed to upload scan")
		return
	}
	respond.Created(c, res)
}

func (h *Handler) list(c *gin.Context) {
	fileID, ok := pathFileID(c)
	if !ok {
		return
	}
	c.Set(middleware.FileIDKey, fileID)
	items, err := h.Svc.List(c.Request.Context(), fileID)
	if err != nil {
		respond.FromError(c, err, "failed to list scans")
		return
	}
	respond.OK(c, gin.H{"items": items})
}

func (h *Handler) download(c *gin.Context) {
	artifact, rc, err := h.Svc.Open(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.FromError(c, err, "failed to open scan")
		return
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			telemetry.Warn("scans.close_failed", map[string]any{"scan_id": artifact.ID, "error": cerr})
		}
	}()
	c.Set(middleware.FileIDKey, artifact.FileID)
	c.DataFromReader(http.StatusOK, artifact.SizeBytes, artifact.MimeType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", artifact.FileName),
	})
}

func pathFileID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "id must be a positive integer", nil)
		return 0, false
	}
	return id, true
}
