package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"jan-server/services/docchat-api/internal/domain/document"
	"jan-server/services/docchat-api/internal/infrastructure/metrics"
	"jan-server/services/docchat-api/internal/interfaces/httpserver/requests"
	"jan-server/services/docchat-api/internal/interfaces/httpserver/responses"
	"jan-server/services/docchat-api/internal/utils/platformerrors"
)

// multipartOverhead is allowed on top of the file payload for boundaries and form fields.
const multipartOverhead = 1 << 20

// DocumentUploader stores an upload batch.
type DocumentUploader interface {
	Upload(ctx context.Context, conversationID string, files []document.UploadFile) ([]*document.Document, error)
}

// StatusUpdater applies worker callbacks.
type StatusUpdater interface {
	HandleStatus(ctx context.Context, documentID string, update document.StatusUpdate) (*document.Document, error)
}

// DocumentFinder lists a conversation's documents.
type DocumentFinder interface {
	FindByConversationID(ctx context.Context, conversationID string) ([]*document.Document, error)
}

// DocumentDeleter removes one document.
type DocumentDeleter interface {
	DeleteDocument(ctx context.Context, documentID string) error
}

// DocumentHandler exposes the document endpoints and the worker webhook.
type DocumentHandler struct {
	uploader     DocumentUploader
	updater      StatusUpdater
	finder       DocumentFinder
	deleter      DocumentDeleter
	maxBodyBytes int64
	log          zerolog.Logger
}

// NewDocumentHandler constructs the handler. maxBodyBytes caps the multipart body; zero disables the cap.
func NewDocumentHandler(
	uploader DocumentUploader,
	updater StatusUpdater,
	finder DocumentFinder,
	deleter DocumentDeleter,
	maxBodyBytes int64,
	log zerolog.Logger,
) *DocumentHandler {
	return &DocumentHandler{
		uploader:     uploader,
		updater:      updater,
		finder:       finder,
		deleter:      deleter,
		maxBodyBytes: maxBodyBytes,
		log:          log.With().Str("handler", "document").Logger(),
	}
}

// Upload handles POST /api/v1/documents/upload
// @Summary Upload documents into a conversation
// @Description Stores up to ten PDF or text files and starts their processing
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param conversationId formData string true "Conversation ID"
// @Param files formData file true "Files"
// @Success 201 {array} responses.DocumentResponse
// @Failure 400 {object} responses.ErrorResponse
// @Router /api/v1/documents/upload [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	if h.maxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes+multipartOverhead)
	}

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "upload exceeds the size limit",
				"0e2a4c6e-8b1d-43a7-99fb-3f5a7c9e1ba8")
			return
		}
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid multipart form: "+err.Error(),
			"2a4c6e8a-0d3f-45b9-8b1d-5a7c9e1b3dba")
		return
	}

	conversationID := strings.TrimSpace(firstValue(form, "conversationId"))
	headers := append(form.File["files"], form.File["files[]"]...)

	files := make([]document.UploadFile, 0, len(headers))
	for _, fh := range headers {
		fh := fh
		files = append(files, document.UploadFile{
			FileName: fh.Filename,
			Size:     fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}

	docs, err := h.uploader.Upload(c.Request.Context(), conversationID, files)
	if err != nil {
		responses.HandleError(c, err, "failed to upload documents")
		return
	}
	for _, d := range docs {
		metrics.UploadedBytes.Observe(float64(d.Size))
	}
	c.JSON(http.StatusCreated, responses.MapDocuments(docs))
}

// UpdateStatus handles PATCH /api/v1/documents/:id/status
// @Summary Report the processing outcome of a document
// @Description Worker callback. Repeating the recorded status is a no-op; the other terminal status is a conflict.
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param request body requests.UpdateDocumentStatusRequest true "Status"
// @Success 200 {object} responses.DocumentResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Failure 409 {object} responses.ErrorResponse
// @Router /api/v1/documents/{id}/status [patch]
func (h *DocumentHandler) UpdateStatus(c *gin.Context) {
	var req requests.UpdateDocumentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body: "+err.Error(),
			"4c6e8a0c-2f5b-47cb-9d3f-7c9e1b3d5fcc")
		return
	}

	doc, err := h.updater.HandleStatus(c.Request.Context(), c.Param("id"), document.StatusUpdate{
		Status:       req.Status,
		ErrorMessage: req.ErrorMessage,
	})
	if err != nil {
		responses.HandleError(c, err, "failed to update document status")
		return
	}
	c.JSON(http.StatusOK, responses.MapDocument(doc))
}

// ListByConversation handles GET /api/v1/documents/conversation/:id
// @Summary List a conversation's documents
// @Tags Documents
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {array} responses.DocumentResponse
// @Router /api/v1/documents/conversation/{id} [get]
func (h *DocumentHandler) ListByConversation(c *gin.Context) {
	docs, err := h.finder.FindByConversationID(c.Request.Context(), c.Param("id"))
	if err != nil {
		responses.HandleError(c, err, "failed to list documents")
		return
	}
	c.JSON(http.StatusOK, responses.MapDocuments(docs))
}

// Delete handles DELETE /api/v1/documents/:id
// @Summary Delete a document
// @Tags Documents
// @Param id path string true "Document ID"
// @Success 200
// @Failure 404 {object} responses.ErrorResponse
// @Router /api/v1/documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.deleter.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		responses.HandleError(c, err, "failed to delete document")
		return
	}
	c.Status(http.StatusOK)
}

func firstValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}
