package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/dekont-api/internal/models"
	appErrors "github.com/noah-isme/dekont-api/pkg/errors"
)

// ValidatePeriod decides whether a receipt for period may be submitted today.
// Rules run in order: the period must be closed, then it must not precede the
// internship's start month. today must already be in the school's timezone.
func ValidatePeriod(internship *models.Internship, period models.Period, today time.Time) error {
	current := models.PeriodOf(today)
	if !period.Before(current) {
		return appErrors.Clone(appErrors.ErrFutureOrCurrentPeriod,
			fmt.Sprintf("receipts for %s can be submitted from %s", period, period.Next().FirstDay(today.Location()).Format("2006-01-02")))
	}

	start := internship.StartPeriod()
	if period.Before(start) {
		return appErrors.Clone(appErrors.ErrBeforeInternshipStart,
			fmt.Sprintf("internship starts in %s; %s is not due", start, period))
	}
	return nil
}
