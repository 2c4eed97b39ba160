package database

import (
	"net/url"
	"time"
)

// SeriesFilter narrows the reports that feed a monthly series. Empty fields do not filter.
type SeriesFilter struct {
	Title    string     `json:"title,omitempty" msgpack:"title,omitempty"`
	Location string     `json:"location,omitempty" msgpack:"location,omitempty"`
	Author   string     `json:"author,omitempty" msgpack:"author,omitempty"`
	Company  string     `json:"company,omitempty" msgpack:"company,omitempty"`
	From     *time.Time `json:"from,omitempty" msgpack:"from,omitempty"`
	To       *time.Time `json:"to,omitempty" msgpack:"to,omitempty"`
}

// Key returns a stable string identifying the filter, suitable for cache keys.
// Values are query-escaped so no filter value can forge another field.
func (f SeriesFilter) Key() string {
	v := url.Values{
		"t": {f.Title},
		"l": {f.Location},
		"a": {f.Author},
		"c": {f.Company},
	}
	if f.From != nil {
		v.Set("from", f.From.Format("2006-01-02"))
	}
	if f.To != nil {
		v.Set("to", f.To.Format("2006-01-02"))
	}
	return v.Encode()
}

// MonthlyTotal is one row of the monthly aggregation query
type MonthlyTotal struct {
	Bucket time.Time `gorm:"column:bucket"`
	Total  float64   `gorm:"column:total"`
}
