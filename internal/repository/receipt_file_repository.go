package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/dekont-api/internal/models"
)

// ReceiptFileRepository keeps the uploader of every stored receipt document.
type ReceiptFileRepository struct {
	db *sqlx.DB
}

// NewReceiptFileRepository constructs the repository.
func NewReceiptFileRepository(db *sqlx.DB) *ReceiptFileRepository {
	return &ReceiptFileRepository{db: db}
}

// Record stores an upload. Refs are generated per upload, so a duplicate is an error.
func (r *ReceiptFileRepository) Record(ctx context.Context, file *models.ReceiptFile) error {
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO receipt_files (file_ref, uploaded_by, mime_type, size_bytes, created_at)
	VALUES (:file_ref, :uploaded_by, :mime_type, :size_bytes, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("record receipt file: %w", err)
	}
	return nil
}

// GetByRef returns the upload record. sql.ErrNoRows is returned unwrapped for unknown refs.
func (r *ReceiptFileRepository) GetByRef(ctx context.Context, ref string) (*models.ReceiptFile, error) {
	const query = `SELECT file_ref, uploaded_by, mime_type, size_bytes, created_at FROM receipt_files WHERE file_ref = $1`
	var file models.ReceiptFile
	if err := r.db.GetContext(ctx, &file, query, ref); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get receipt file: %w", err)
	}
	return &file, nil
}

// Forget drops the upload record once its document has been removed.
func (r *ReceiptFileRepository) Forget(ctx context.Context, ref string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM receipt_files WHERE file_ref = $1`, ref); err != nil {
		return fmt.Errorf("forget receipt file: %w", err)
	}
	return nil
}
