package models

import "time"

// ReceiptFile records who stored a receipt document. Submissions may only
// attach documents their own account uploaded.
type ReceiptFile struct {
	FileRef    string    `db:"file_ref" json:"file_ref"`
	UploadedBy string    `db:"uploaded_by" json:"uploaded_by"`
	MimeType   string    `db:"mime_type" json:"mime_type"`
	SizeBytes  int64     `db:"size_bytes" json:"size"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
