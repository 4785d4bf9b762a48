package models

import (
	"fmt"
	"time"
)

// Period is a calendar month a receipt covers.
type Period struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// NewPeriod validates month and year.
func NewPeriod(month, year int) (Period, error) {
	p := Period{Month: month, Year: year}
	if !p.Valid() {
		return Period{}, fmt.Errorf("invalid period %d/%d", month, year)
	}
	return p, nil
}

// PeriodOf returns the period containing t, in t's location.
func PeriodOf(t time.Time) Period {
	return Period{Month: int(t.Month()), Year: t.Year()}
}

// ParsePeriod reads the YYYY-MM form produced by String.
func ParsePeriod(raw string) (Period, error) {
	t, err := time.Parse("2006-01", raw)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q: expected YYYY-MM", raw)
	}
	return PeriodOf(t), nil
}

// Valid reports whether the month is 1..12 and the year is plausible.
func (p Period) Valid() bool {
	return p.Month >= 1 && p.Month <= 12 && p.Year >= 2000 && p.Year <= 2100
}

// Before reports whether p is strictly earlier than o.
func (p Period) Before(o Period) bool {
	return p.index() < o.index()
}

// Previous returns the month before p, rolling into December of the prior year.
func (p Period) Previous() Period {
	if p.Month == 1 {
		return Period{Month: 12, Year: p.Year - 1}
	}
	return Period{Month: p.Month - 1, Year: p.Year}
}

// Next returns the month after p.
func (p Period) Next() Period {
	if p.Month == 12 {
		return Period{Month: 1, Year: p.Year + 1}
	}
	return Period{Month: p.Month + 1, Year: p.Year}
}

// FirstDay returns midnight on the first day of p in loc.
func (p Period) FirstDay(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, loc)
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

func (p Period) index() int {
	return p.Year*12 + p.Month - 1
}
