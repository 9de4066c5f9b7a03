package attendance

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPeriod is returned for a reporting period other than week or month.
var ErrInvalidPeriod = errors.New("invalid period (use week or month)")

// Period selects a reporting window ending now.
type Period int

const (
	PeriodWeek  Period = iota + 1 // last 7 days
	PeriodMonth                   // last 30 days
)

// Days returns the window length, or 0 for an invalid period.
func (p Period) Days() int {
	switch p {
	case PeriodWeek:
		return 7
	case PeriodMonth:
		return 30
	default:
		return 0
	}
}

func (p Period) String() string {
	switch p {
	case PeriodWeek:
		return "week"
	case PeriodMonth:
		return "month"
	default:
		return fmt.Sprintf("Period(%d)", int(p))
	}
}

// ParsePeriod converts a user supplied token ("week" or "month") to a Period.
func ParsePeriod(token string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "week":
		return PeriodWeek, nil
	case "month":
		return PeriodMonth, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, token)
	}
}
