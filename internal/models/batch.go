package models

// BatchItemStatus is the per-receipt outcome inside a batch.
type BatchItemStatus string

const (
	BatchItemSucceeded BatchItemStatus = "succeeded"
	BatchItemFailed    BatchItemStatus = "failed"
	BatchItemSkipped   BatchItemStatus = "skipped"
)

// BatchItemResult records what happened to one receipt.
type BatchItemResult struct {
	ReceiptID      string          `json:"receipt_id"`
	Status         BatchItemStatus `json:"status"`
	Reliability    *float64        `json:"reliability,omitempty"`
	Recommendation Recommendation  `json:"recommendation,omitempty"`
	ErrorCode      string          `json:"error_code,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// RecommendationCounts tallies recommendations over successful items.
type RecommendationCounts struct {
	Approve      int `json:"approve"`
	Reject       int `json:"reject"`
	ManualReview int `json:"manual_review"`
}

// Add counts one recommendation.
func (c *RecommendationCounts) Add(r Recommendation) {
	switch r {
	case RecommendationApprove:
		c.Approve++
	case RecommendationReject:
		c.Reject++
	default:
		c.ManualReview++
	}
}

// BatchSummary aggregates a batch analysis run.
type BatchSummary struct {
	TotalRequested     int                  `json:"total_requested"`
	Successful         int                  `json:"successful"`
	Failed             int                  `json:"failed"`
	Skipped            int                  `json:"skipped"`
	AverageReliability float64              `json:"average_reliability"`
	Recommendations    RecommendationCounts `json:"recommendations"`
	Cancelled          bool                 `json:"cancelled"`
	Items              []BatchItemResult    `json:"items"`
}
