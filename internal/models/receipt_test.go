package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReceiptTransitions(t *testing.T) {
	require.True(t, ReceiptStatusPending.CanTransitionTo(ReceiptStatusApproved))
	require.True(t, ReceiptStatusPending.CanTransitionTo(ReceiptStatusRejected))
	for _, next := range []ReceiptStatus{ReceiptStatusPending, ReceiptStatusApproved, ReceiptStatusRejected} {
		require.False(t, ReceiptStatusApproved.CanTransitionTo(next))
		require.False(t, ReceiptStatusRejected.CanTransitionTo(next))
	}
	require.False(t, ReceiptStatusApproved.Deletable())
	require.True(t, ReceiptStatusRejected.Deletable())
	require.False(t, ReceiptStatusRejected.Editable())
}

func TestParseRecommendation(t *testing.T) {
	require.Equal(t, RecommendationApprove, ParseRecommendation(" Approve "))
	require.Equal(t, RecommendationReject, ParseRecommendation("rejected"))
	require.Equal(t, RecommendationManualReview, ParseRecommendation("manual-review"))
	require.Equal(t, RecommendationManualReview, ParseRecommendation("unsure"))
}

func TestAnalysisResultValueScan(t *testing.T) {
	in := AnalysisResult{
		Reliability:    0.75,
		Recommendation: RecommendationManualReview,
		AnalyzedAt:     time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	v, err := in.Value()
	require.NoError(t, err)
	require.Contains(t, v.(string), `"security_flags":[]`)

	var out AnalysisResult
	require.NoError(t, out.Scan(v))
	require.Equal(t, in.Reliability, out.Reliability)
	require.Equal(t, in.Recommendation, out.Recommendation)
	require.True(t, in.AnalyzedAt.Equal(out.AnalyzedAt))

	require.Error(t, out.Scan(42))
}

func TestInternshipCollectsFor(t *testing.T) {
	closing := time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)
	in := Internship{
		StartDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Status:    InternshipStatusActive,
	}
	require.False(t, in.CollectsFor(Period{Month: 12, Year: 2023}))
	require.True(t, in.CollectsFor(Period{Month: 1, Year: 2024}))

	in.Status = InternshipStatusTerminated
	in.TerminationDate = &closing
	require.True(t, in.CollectsFor(Period{Month: 4, Year: 2024}))
	require.False(t, in.CollectsFor(Period{Month: 5, Year: 2024}))

	in.TerminationDate = nil
	require.False(t, in.CollectsFor(Period{Month: 2, Year: 2024}))
}
