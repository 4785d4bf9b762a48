package service

import "github.com/noah-isme/dekont-api/internal/models"

// ConflictKind classifies a submission against the receipts already stored for its period.
type ConflictKind int

const (
	// ConflictFresh means no receipt exists for the period yet.
	ConflictFresh ConflictKind = iota
	// ConflictRequiresConfirmation means earlier non-approved receipts exist.
	ConflictRequiresConfirmation
	// ConflictAlreadyApproved means the period is closed by an approved receipt.
	ConflictAlreadyApproved
)

// Conflict is the outcome of DetectConflict.
type Conflict struct {
	Kind       ConflictKind
	PriorCount int
}

// DetectConflict inspects the receipts currently stored for one (internship, period).
func DetectConflict(existing []models.Receipt) Conflict {
	for i := range existing {
		if existing[i].Status == models.ReceiptStatusApproved {
			return Conflict{Kind: ConflictAlreadyApproved, PriorCount: len(existing)}
		}
	}
	if len(existing) > 0 {
		return Conflict{Kind: ConflictRequiresConfirmation, PriorCount: len(existing)}
	}
	return Conflict{Kind: ConflictFresh}
}
