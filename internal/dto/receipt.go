package dto

import "github.com/noah-isme/dekont-api/internal/models"

// SubmitReceiptRequest is the submission payload. ConfirmedSupplementary must be
// set when re-submitting after a SUPPLEMENTARY_CONFIRMATION_REQUIRED answer.
type SubmitReceiptRequest struct {
	InternshipID           string   `json:"internship_id" validate:"required,uuid"`
	Month                  int      `json:"month" validate:"required,min=1,max=12"`
	Year                   int      `json:"year" validate:"required,min=2000,max=2100"`
	Amount                 *float64 `json:"amount" validate:"omitempty,gte=0"`
	FileRef                string   `json:"file_ref" validate:"required,max=512"`
	Description            string   `json:"description" validate:"max=1000"`
	ConfirmedSupplementary bool     `json:"confirmed_supplementary"`
}

// UpdateReceiptRequest edits a pending receipt. Nil fields are left unchanged.
type UpdateReceiptRequest struct {
	Amount      *float64 `json:"amount" validate:"omitempty,gte=0"`
	Description *string  `json:"description" validate:"omitempty,max=1000"`
}

// RejectReceiptRequest carries the mandatory rejection reason.
type RejectReceiptRequest struct {
	Reason string `json:"reason"`
}

// BatchAnalysisRequest lists receipts to analyze in one run.
type BatchAnalysisRequest struct {
	ReceiptIDs []string `json:"receipt_ids"`
}

// ReceiptQuery mirrors supported listing filters.
type ReceiptQuery struct {
	InternshipID string               `form:"internship_id"`
	Status       models.ReceiptStatus `form:"status"`
	Month        int                  `form:"month"`
	Year         int                  `form:"year"`
	Page         int                  `form:"page"`
	PageSize     int                  `form:"page_size"`
}

// UploadedFile describes a stored receipt document.
type UploadedFile struct {
	FileRef  string `json:"file_ref"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// FileURL is a signed, expiring link to a receipt document.
type FileURL struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at"`
}
