package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPeriodPreviousRollsOverJanuary(t *testing.T) {
	require.Equal(t, Period{Month: 12, Year: 2023}, Period{Month: 1, Year: 2024}.Previous())
	require.Equal(t, Period{Month: 5, Year: 2024}, Period{Month: 6, Year: 2024}.Previous())
	require.Equal(t, Period{Month: 1, Year: 2025}, Period{Month: 12, Year: 2024}.Next())
}

func TestPeriodOrdering(t *testing.T) {
	may := Period{Month: 5, Year: 2024}
	require.True(t, Period{Month: 12, Year: 2023}.Before(may))
	require.False(t, may.Before(may))
	require.False(t, Period{Month: 1, Year: 2025}.Before(may))
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2024-05")
	require.NoError(t, err)
	require.Equal(t, "2024-05", p.String())

	_, err = ParsePeriod("2024-13")
	require.Error(t, err)

	_, err = NewPeriod(0, 2024)
	require.Error(t, err)
}

func TestPeriodOfUsesLocation(t *testing.T) {
	ist := time.FixedZone("TRT", 3*60*60)
	// 22:30 UTC on May 31 is already June 1 in Istanbul.
	instant := time.Date(2024, 5, 31, 22, 30, 0, 0, time.UTC)
	require.Equal(t, Period{Month: 5, Year: 2024}, PeriodOf(instant))
	require.Equal(t, Period{Month: 6, Year: 2024}, PeriodOf(instant.In(ist)))
}
