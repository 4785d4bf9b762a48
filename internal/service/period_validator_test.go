package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dekont-api/internal/models"
	appErrors "github.com/noah-isme/dekont-api/pkg/errors"
)

func TestValidatePeriod(t *testing.T) {
	internship := internshipFixture("int-1", date(2024, time.March, 1))
	today := date(2024, time.June, 15)

	cases := []struct {
		name   string
		period models.Period
		want   *appErrors.Error
	}{
		{"current month", models.Period{Month: 6, Year: 2024}, appErrors.ErrFutureOrCurrentPeriod},
		{"future month", models.Period{Month: 7, Year: 2024}, appErrors.ErrFutureOrCurrentPeriod},
		{"future year", models.Period{Month: 1, Year: 2025}, appErrors.ErrFutureOrCurrentPeriod},
		{"before start", models.Period{Month: 2, Year: 2024}, appErrors.ErrBeforeInternshipStart},
		{"start month", models.Period{Month: 3, Year: 2024}, nil},
		{"last closed month", models.Period{Month: 5, Year: 2024}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePeriod(internship, tc.period, today)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestValidatePeriodChecksClosedMonthFirst(t *testing.T) {
	internship := internshipFixture("int-1", date(2024, time.August, 1))
	err := ValidatePeriod(internship, models.Period{Month: 7, Year: 2024}, date(2024, time.July, 2))
	assert.ErrorIs(t, err, appErrors.ErrFutureOrCurrentPeriod)
}

func TestValidatePeriodAcrossYearBoundary(t *testing.T) {
	internship := internshipFixture("int-1", date(2023, time.September, 4))
	require.NoError(t, ValidatePeriod(internship, models.Period{Month: 12, Year: 2023}, date(2024, time.January, 3)))
	assert.ErrorIs(t, ValidatePeriod(internship, models.Period{Month: 1, Year: 2024}, date(2024, time.January, 3)), appErrors.ErrFutureOrCurrentPeriod)
}

func TestValidatePeriodUsesCallerLocation(t *testing.T) {
	istanbul := time.FixedZone("TRT", 3*60*60)
	internship := internshipFixture("int-1", date(2024, time.January, 1))
	// 22:30 UTC on 31 May is already 1 June in Istanbul, so May is closed.
	today := time.Date(2024, time.May, 31, 22, 30, 0, 0, time.UTC).In(istanbul)
	require.NoError(t, ValidatePeriod(internship, models.Period{Month: 5, Year: 2024}, today))
}
