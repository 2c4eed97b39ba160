package forecast

import (
	"fmt"
	"time"
)

// Period identifies a single calendar month
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the calendar month containing t
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// PeriodFromIndex is the inverse of Period.Index
func PeriodFromIndex(idx int) Period {
	year := idx / 12
	month := idx % 12
	if month < 0 {
		month += 12
		year--
	}
	return Period{Year: year, Month: time.Month(month + 1)}
}

// Index returns the number of months elapsed since January of year 0
func (p Period) Index() int {
	return p.Year*12 + int(p.Month) - 1
}

// Add returns the period n months after p (n may be negative)
func (p Period) Add(n int) Period {
	return PeriodFromIndex(p.Index() + n)
}

// Before reports whether p is earlier than o
func (p Period) Before(o Period) bool {
	return p.Index() < o.Index()
}

// Time returns midnight UTC on the first day of the month
func (p Period) Time() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// MarshalText renders the period as YYYY-MM. JSON and MessagePack both pick this up.
func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses YYYY-MM or YYYY-MM-DD
func (p *Period) UnmarshalText(text []byte) error {
	parsed, err := ParsePeriod(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePeriod accepts "2006-01" or "2006-01-02" and returns the containing month
func ParsePeriod(s string) (Period, error) {
	for _, layout := range []string{"2006-01", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return PeriodOf(t), nil
		}
	}
	return Period{}, fmt.Errorf("invalid period %q: expected YYYY-MM or YYYY-MM-DD", s)
}
