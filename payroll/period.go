package payroll

import (
	"fmt"
	"time"
)

// DateLayout is the only accepted date form. Dates compare as strings.
const DateLayout = "2006-01-02"

// Period is an inclusive pay period [Start, End].
type Period struct {
	Start string
	End   string
}

// Contains reports whether date falls within the period. Lexicographic
// comparison is exact for YYYY-MM-DD strings.
func (p Period) Contains(date string) bool {
	return p.Start <= date && date <= p.End
}

func (p Period) String() string {
	return "[" + p.Start + ", " + p.End + "]"
}

// ValidDate reports whether s is a real calendar date in YYYY-MM-DD form.
func ValidDate(s string) bool {
	t, err := time.Parse(DateLayout, s)
	return err == nil && t.Format(DateLayout) == s
}

// ParsePeriod validates both bounds and their order.
func ParsePeriod(start, end string) (Period, error) {
	if !ValidDate(start) {
		return Period{}, fmt.Errorf("%w: start %q", ErrInvalidDate, start)
	}
	if !ValidDate(end) {
		return Period{}, fmt.Errorf("%w: end %q", ErrInvalidDate, end)
	}
	if end < start {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Start: start, End: end}, nil
}
