package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// MaxBatchSize caps the receipts accepted by one batch analysis request.
	MaxBatchSize = 20
	// CriticalWindowDay is the last day of the month (inclusive) still in the CRITICAL reminder tier.
	CriticalWindowDay = 10
)

// ReceiptStatus is the approval state of a receipt.
type ReceiptStatus string

const (
	ReceiptStatusPending  ReceiptStatus = "PENDING"
	ReceiptStatusApproved ReceiptStatus = "APPROVED"
	ReceiptStatusRejected ReceiptStatus = "REJECTED"
)

// receiptTransitions lists the allowed next states. APPROVED is terminal and
// REJECTED only leaves the table through deletion.
var receiptTransitions = map[ReceiptStatus][]ReceiptStatus{
	ReceiptStatusPending: {ReceiptStatusApproved, ReceiptStatusRejected},
}

// Valid reports whether s is a known status.
func (s ReceiptStatus) Valid() bool {
	switch s {
	case ReceiptStatusPending, ReceiptStatusApproved, ReceiptStatusRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine allows s -> next.
func (s ReceiptStatus) CanTransitionTo(next ReceiptStatus) bool {
	for _, allowed := range receiptTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Deletable reports whether a receipt in this state may be removed.
func (s ReceiptStatus) Deletable() bool {
	return s != ReceiptStatusApproved
}

// Editable reports whether the receipt's amount/description may still change.
func (s ReceiptStatus) Editable() bool {
	return s == ReceiptStatusPending
}

// Receipt is a monthly payment proof attached to an internship.
type Receipt struct {
	ID                 string          `db:"id" json:"id"`
	InternshipID       string          `db:"internship_id" json:"internship_id"`
	PeriodMonth        int             `db:"period_month" json:"period_month"`
	PeriodYear         int             `db:"period_year" json:"period_year"`
	Amount             *float64        `db:"amount" json:"amount,omitempty"`
	Description        string          `db:"description" json:"description,omitempty"`
	FileRef            string          `db:"file_ref" json:"file_ref"`
	Status             ReceiptStatus   `db:"status" json:"status"`
	RejectionReason    *string         `db:"rejection_reason" json:"rejection_reason,omitempty"`
	UploadedBy         string          `db:"uploaded_by" json:"uploaded_by"`
	SupplementaryIndex int             `db:"supplementary_index" json:"supplementary_index"`
	Analysis           *AnalysisResult `db:"analysis" json:"analysis,omitempty"`
	DecidedBy          *string         `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt          *time.Time      `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// Period returns the month the receipt covers.
func (r *Receipt) Period() Period {
	return Period{Month: r.PeriodMonth, Year: r.PeriodYear}
}

// IsSupplementary reports whether other receipts preceded this one in its period.
func (r *Receipt) IsSupplementary() bool {
	return r.SupplementaryIndex > 0
}

// ReceiptFilter narrows receipt listings. Scope fields restrict by the caller's role.
type ReceiptFilter struct {
	InternshipID  string
	Status        ReceiptStatus
	Month         int
	Year          int
	TeacherUserID string
	StudentUserID string
	Page          int
	PageSize      int
}

// ReceiptAuditSnapshot is the slice of a receipt recorded in audit logs.
type ReceiptAuditSnapshot struct {
	Status             ReceiptStatus `json:"status"`
	Period             string        `json:"period"`
	SupplementaryIndex int           `json:"supplementary_index"`
	RejectionReason    *string       `json:"rejection_reason,omitempty"`
	Amount             *float64      `json:"amount,omitempty"`
}

// Snapshot captures the audit-relevant state of r.
func (r *Receipt) Snapshot() ReceiptAuditSnapshot {
	return ReceiptAuditSnapshot{
		Status:             r.Status,
		Period:             r.Period().String(),
		SupplementaryIndex: r.SupplementaryIndex,
		RejectionReason:    r.RejectionReason,
		Amount:             r.Amount,
	}
}

// Recommendation is the analysis verdict offered to a reviewer.
type Recommendation string

const (
	RecommendationApprove      Recommendation = "approve"
	RecommendationReject       Recommendation = "reject"
	RecommendationManualReview Recommendation = "manual_review"
)

// ParseRecommendation maps provider wording onto the closed set. Anything unknown needs a human.
func ParseRecommendation(raw string) Recommendation {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(raw, "-", "_"))) {
	case "approve", "approved", "accept":
		return RecommendationApprove
	case "reject", "rejected", "decline":
		return RecommendationReject
	default:
		return RecommendationManualReview
	}
}

// FlagSeverity grades a security flag.
type FlagSeverity string

const (
	SeverityLow    FlagSeverity = "low"
	SeverityMedium FlagSeverity = "medium"
	SeverityHigh   FlagSeverity = "high"
)

// ParseSeverity normalises a provider severity, defaulting to medium.
func ParseSeverity(raw string) FlagSeverity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low", "info", "minor":
		return SeverityLow
	case "high", "critical", "severe":
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// SecurityFlag is one suspicious finding on a receipt image.
type SecurityFlag struct {
	Type     string       `json:"type"`
	Message  string       `json:"message"`
	Severity FlagSeverity `json:"severity"`
}

// ExtractedFields are the values read off the receipt by the analysis capability.
type ExtractedFields struct {
	SenderName      string   `json:"sender_name,omitempty"`
	ReceiverName    string   `json:"receiver_name,omitempty"`
	IBAN            string   `json:"iban,omitempty"`
	BankName        string   `json:"bank_name,omitempty"`
	Amount          *float64 `json:"amount,omitempty"`
	Currency        string   `json:"currency,omitempty"`
	TransactionDate string   `json:"transaction_date,omitempty"`
	Description     string   `json:"description,omitempty"`
}

// AnalysisValidation records the capability's structural checks.
type AnalysisValidation struct {
	IsBankReceipt bool     `json:"is_bank_receipt"`
	IsLegible     bool     `json:"is_legible"`
	HasStamp      bool     `json:"has_stamp"`
	Issues        []string `json:"issues,omitempty"`
}

// AnalysisResult is the normalised output of the analysis capability. It is
// only ever written by the analysis gateway.
type AnalysisResult struct {
	Reliability     float64             `json:"reliability"`
	SecurityFlags   []SecurityFlag      `json:"security_flags"`
	Recommendation  Recommendation      `json:"recommendation"`
	AnalyzedAt      time.Time           `json:"analyzed_at"`
	Provider        string              `json:"provider,omitempty"`
	ExtractedFields *ExtractedFields    `json:"extracted_fields,omitempty"`
	Validation      *AnalysisValidation `json:"validation,omitempty"`
	RawText         string              `json:"raw_text,omitempty"`
}

// Value implements driver.Valuer for the JSONB column.
func (a AnalysisResult) Value() (driver.Value, error) {
	if a.SecurityFlags == nil {
		a.SecurityFlags = []SecurityFlag{}
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner for the JSONB column.
func (a *AnalysisResult) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = AnalysisResult{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported analysis type %T", src)
	}
	if len(raw) == 0 {
		return errors.New("empty analysis payload")
	}
	return json.Unmarshal(raw, a)
}
