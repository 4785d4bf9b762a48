package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/dekont-api/internal/dto"
	"github.com/noah-isme/dekont-api/internal/models"
	"github.com/noah-isme/dekont-api/internal/service"
	appErrors "github.com/noah-isme/dekont-api/pkg/errors"
	"github.com/noah-isme/dekont-api/pkg/response"
)

const sniffLength = 3072

// DefaultAllowedMIMEs is used when no allow-list is configured.
var DefaultAllowedMIMEs = []string{"image/jpeg", "image/png", "image/webp", "image/heic", "image/heif", "application/pdf"}

type receiptFileStore interface {
	SaveStream(ref string, r io.Reader, limit int64) (int64, error)
	Open(ref string) (*os.File, error)
	Delete(ref string) error
}

type uploadRecorder interface {
	Record(ctx context.Context, file *models.ReceiptFile) error
}

type downloadSigner interface {
	Generate(subject, ref string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (subject, ref string, expiresAt time.Time, err error)
}

type receiptReader interface {
	Get(ctx context.Context, id string, actor service.Actor) (*models.Receipt, error)
}

// ReceiptFileConfig bounds uploads and names the public download route.
type ReceiptFileConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	DownloadPath     string
}

// ReceiptFileHandler stores receipt documents and hands out signed links to them.
type ReceiptFileHandler struct {
	store    receiptFileStore
	uploads  uploadRecorder
	signer   downloadSigner
	receipts receiptReader
	cfg      ReceiptFileConfig
	now      func() time.Time
}

// NewReceiptFileHandler constructs the handler.
func NewReceiptFileHandler(store receiptFileStore, uploads uploadRecorder, signer downloadSigner, receipts receiptReader, cfg ReceiptFileConfig) *ReceiptFileHandler {
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = 10 << 20
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = DefaultAllowedMIMEs
	}
	if cfg.DownloadPath == "" {
		cfg.DownloadPath = "/api/v1/receipts/files/download"
	}
	return &ReceiptFileHandler{store: store, uploads: uploads, signer: signer, receipts: receipts, cfg: cfg, now: time.Now}
}

// Upload godoc
// @Summary Upload a receipt document
// @Description Stores an image or PDF and returns the file reference to use when submitting the receipt.
// @Tags Receipts
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Receipt document"
// @Success 201 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /receipts/files [post]
func (h *ReceiptFileHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	if header.Size > h.cfg.MaxFileSizeBytes {
		response.Error(c, appErrors.WithDetails(appErrors.ErrFileTooLarge, map[string]interface{}{"maxBytes": h.cfg.MaxFileSizeBytes}))
		return
	}

	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close()

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	head = head[:n]

	mime := mimetype.Detect(head)
	if !h.allowed(mime) {
		response.Error(c, appErrors.WithDetails(appErrors.ErrFileTypeNotAllowed, map[string]interface{}{"mimeType": mime.String()}))
		return
	}

	ref := path.Join("receipts", h.now().UTC().Format("2006/01"), uuid.NewString()+mime.Extension())
	size, err := h.store.SaveStream(ref, io.MultiReader(bytes.NewReader(head), file), h.cfg.MaxFileSizeBytes)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store receipt file"))
		return
	}

	record := &models.ReceiptFile{
		FileRef:    ref,
		UploadedBy: actorFromContext(c).UserID,
		MimeType:   mime.String(),
		SizeBytes:  size,
		CreatedAt:  h.now().UTC(),
	}
	if err := h.uploads.Record(c.Request.Context(), record); err != nil {
		_ = h.store.Delete(ref)
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record receipt file"))
		return
	}

	response.Created(c, dto.UploadedFile{FileRef: ref, MimeType: mime.String(), Size: size})
}

// FileURL godoc
// @Summary Get a signed download link for a receipt document
// @Tags Receipts
// @Produce json
// @Param id path string true "Receipt ID"
// @Success 200 {object} response.Envelope
// @Router /receipts/{id}/file-url [get]
func (h *ReceiptFileHandler) FileURL(c *gin.Context) {
	receipt, err := h.receipts.Get(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	token, expiresAt, err := h.signer.Generate(receipt.ID, receipt.FileRef)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link"))
		return
	}
	response.JSON(c, http.StatusOK, dto.FileURL{
		URL:       fmt.Sprintf("%s?token=%s", h.cfg.DownloadPath, url.QueryEscape(token)),
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}, nil)
}

// Download godoc
// @Summary Download a receipt document through a signed link
// @Tags Receipts
// @Produce application/octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /receipts/files/download [get]
func (h *ReceiptFileHandler) Download(c *gin.Context) {
	_, ref, _, err := h.signer.Parse(c.Query("token"), false)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidDownloadToken.Code, appErrors.ErrInvalidDownloadToken.Status, appErrors.ErrInvalidDownloadToken.Message))
		return
	}

	file, err := h.store.Open(ref)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "receipt document not found"))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open receipt document"))
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open receipt document"))
		return
	}
	mime, err := mimetype.DetectReader(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read receipt document"))
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read receipt document"))
		return
	}

	c.Header("Cache-Control", "private, no-store")
	c.DataFromReader(http.StatusOK, info.Size(), mime.String(), file, map[string]string{
		"Content-Disposition": fmt.Sprintf(`inline; filename="%s"`, path.Base(ref)),
	})
}

func (h *ReceiptFileHandler) allowed(mime *mimetype.MIME) bool {
	for _, candidate := range h.cfg.AllowedMIMEs {
		if mime.Is(candidate) {
			return true
		}
	}
	return false
}
