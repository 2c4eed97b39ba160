package restserver

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/chrissnell/wastecast/internal/database"
	"github.com/chrissnell/wastecast/internal/report"
)

// paramError is an unparseable or out-of-range query parameter
type paramError struct {
	Param  string
	Value  string
	Reason string
}

func (e *paramError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid value %q for parameter %s: %s", e.Value, e.Param, e.Reason)
	}
	return fmt.Sprintf("invalid value %q for parameter %s", e.Value, e.Param)
}

// parseForecastRequest reads forecastMonths, iterations, seed and the filters.
// Absent numeric parameters stay zero so the service defaults apply.
func parseForecastRequest(q url.Values) (report.Request, error) {
	var req report.Request

	filter, err := parseFilter(q)
	if err != nil {
		return req, err
	}
	req.Filter = filter

	if v := q.Get("forecastMonths"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, &paramError{Param: "forecastMonths", Value: v}
		}
		// Zero means "use the default" inside the service, so reject it here
		if n == 0 {
			return req, &paramError{Param: "forecastMonths", Value: v, Reason: "must be at least 1"}
		}
		req.Horizon = n
	}

	if v := q.Get("iterations"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, &paramError{Param: "iterations", Value: v}
		}
		if n == 0 {
			return req, &paramError{Param: "iterations", Value: v, Reason: "must be at least 1"}
		}
		req.Iterations = n
	}

	if v := q.Get("seed"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return req, &paramError{Param: "seed", Value: v}
		}
		req.Seed = &seed
	}

	return req, nil
}

// parseFilter reads title, location, author, company, from and to
func parseFilter(q url.Values) (database.SeriesFilter, error) {
	filter := database.SeriesFilter{
		Title:    q.Get("title"),
		Location: q.Get("location"),
		Author:   q.Get("author"),
		Company:  q.Get("company"),
	}

	if v := q.Get("from"); v != "" {
		from, _, err := parseDate(v)
		if err != nil {
			return filter, &paramError{Param: "from", Value: v}
		}
		filter.From = &from
	}

	if v := q.Get("to"); v != "" {
		to, monthOnly, err := parseDate(v)
		if err != nil {
			return filter, &paramError{Param: "to", Value: v}
		}
		// A bare month includes every day of that month
		if monthOnly {
			to = to.AddDate(0, 1, -1)
		}
		filter.To = &to
	}

	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return filter, &paramError{Param: "to", Value: q.Get("to")}
	}

	return filter, nil
}

// parseDate accepts YYYY-MM-DD or YYYY-MM and reports which form was used
func parseDate(s string) (time.Time, bool, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, false, nil
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}
