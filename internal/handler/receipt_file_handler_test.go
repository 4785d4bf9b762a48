package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dekont-api/internal/dto"
	"github.com/noah-isme/dekont-api/internal/middleware"
	"github.com/noah-isme/dekont-api/internal/models"
	"github.com/noah-isme/dekont-api/internal/service"
	appErrors "github.com/noah-isme/dekont-api/pkg/errors"
	"github.com/noah-isme/dekont-api/pkg/storage"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type receiptReaderStub struct {
	receipt *models.Receipt
	err     error
}

func (s receiptReaderStub) Get(context.Context, string, service.Actor) (*models.Receipt, error) {
	return s.receipt, s.err
}

type uploadLog struct {
	records []models.ReceiptFile
	err     error
}

func (u *uploadLog) Record(_ context.Context, file *models.ReceiptFile) error {
	if u.err != nil {
		return u.err
	}
	u.records = append(u.records, *file)
	return nil
}

func newFileHandler(t *testing.T, reader receiptReader, maxBytes int64) (*ReceiptFileHandler, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("download-secret", time.Minute)
	return NewReceiptFileHandler(store, &uploadLog{}, signer, reader, ReceiptFileConfig{
		MaxFileSizeBytes: maxBytes,
		DownloadPath:     "/api/v1/receipts/files/download",
	}), store
}

func multipartRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/receipts/files", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func upload(t *testing.T, h *ReceiptFileHandler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = multipartRequest(t, filename, content)
	c.Set(middleware.ContextUserKey, studentClaims)
	h.Upload(c)
	return w
}

func TestReceiptFileUploadStoresAllowedTypes(t *testing.T) {
	h, store := newFileHandler(t, receiptReaderStub{}, 1024)
	h.now = func() time.Time { return time.Date(2024, time.June, 2, 0, 0, 0, 0, time.UTC) }

	content := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 64)...)
	w := upload(t, h, "receipt.png", content)
	require.Equal(t, http.StatusCreated, w.Code)

	var body struct {
		Data dto.UploadedFile `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "image/png", body.Data.MimeType)
	assert.Equal(t, int64(len(content)), body.Data.Size)
	assert.True(t, strings.HasPrefix(body.Data.FileRef, "receipts/2024/06/"))
	assert.True(t, strings.HasSuffix(body.Data.FileRef, ".png"))

	f, err := store.Open(body.Data.FileRef)
	require.NoError(t, err)
	f.Close()

	pdf := upload(t, h, "receipt.pdf", []byte("%PDF-1.4\n%%EOF\n"))
	require.Equal(t, http.StatusCreated, pdf.Code)

	records := h.uploads.(*uploadLog).records
	require.Len(t, records, 2)
	assert.Equal(t, body.Data.FileRef, records[0].FileRef)
	assert.Equal(t, studentClaims.UserID, records[0].UploadedBy)
	assert.Equal(t, "image/png", records[0].MimeType)
	assert.Equal(t, int64(len(content)), records[0].SizeBytes)
}

func TestReceiptFileUploadDiscardsUnrecordedDocument(t *testing.T) {
	h, store := newFileHandler(t, receiptReaderStub{}, 1024)
	h.now = func() time.Time { return time.Date(2024, time.June, 2, 0, 0, 0, 0, time.UTC) }
	h.uploads = &uploadLog{err: errors.New("insert failed")}

	content := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 64)...)
	w := upload(t, h, "receipt.png", content)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	entries, err := os.ReadDir(store.Path("receipts/2024/06"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReceiptFileUploadRejects(t *testing.T) {
	h, _ := newFileHandler(t, receiptReaderStub{}, 32)

	w := upload(t, h, "notes.txt", []byte("plain text receipt"))
	require.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, appErrors.ErrFileTypeNotAllowed.Code, body.Error.Code)
	assert.Contains(t, body.Error.Details["mimeType"], "text/plain")

	big := upload(t, h, "big.png", append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{1}, 64)...))
	require.Equal(t, http.StatusRequestEntityTooLarge, big.Code)

	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/receipts/files", nil)
	h.Upload(c)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReceiptFileURLAndDownload(t *testing.T) {
	reader := receiptReaderStub{receipt: &models.Receipt{ID: "r-1", FileRef: "receipts/2024/06/r-1.pdf"}}
	h, store := newFileHandler(t, reader, 1024)
	_, err := store.Save("receipts/2024/06/r-1.pdf", []byte("%PDF-1.4\n%%EOF\n"))
	require.NoError(t, err)

	c, w := newTestContext(http.MethodGet, "/receipts/r-1/file-url", nil, studentClaims)
	c.Params = gin.Params{{Key: "id", Value: "r-1"}}
	h.FileURL(c)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data dto.FileURL `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	link, err := url.Parse(body.Data.URL)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/receipts/files/download", link.Path)

	c, w = newTestContext(http.MethodGet, body.Data.URL, nil, nil)
	h.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4\n%%EOF\n", w.Body.String())

	c, w = newTestContext(http.MethodGet, "/api/v1/receipts/files/download?token=forged.1.2.3", nil, nil)
	h.Download(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReceiptFileURLRespectsReceiptAccess(t *testing.T) {
	h, _ := newFileHandler(t, receiptReaderStub{err: appErrors.Clone(appErrors.ErrNotFound, "receipt not found")}, 1024)

	c, w := newTestContext(http.MethodGet, "/receipts/r-1/file-url", nil, studentClaims)
	c.Params = gin.Params{{Key: "id", Value: "r-1"}}
	h.FileURL(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
