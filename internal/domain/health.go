package domain

import "time"

// RawCountryRecord is one entry of the GHO country dimension response.
type RawCountryRecord struct {
	Code            string `json:"Code"`
	Title           string `json:"Title"`
	ParentDimension string `json:"ParentDimension"`
}

// RawFactRecord is one observation from a GHO indicator response.
// Dim1 is decoded loosely because the API emits null, strings, and the
// occasional numeric value for dimension members.
type RawFactRecord struct {
	IndicatorCode string   `json:"IndicatorCode"`
	SpatialDim    string   `json:"SpatialDim"`
	TimeDim       int      `json:"TimeDim"`
	Dim1          any      `json:"Dim1"`
	NumericValue  *float64 `json:"NumericValue"`
}

// Country is a reference (dimension) row. Upserts are keyed on Code and
// replace the whole record.
type Country struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Region string `json:"region"`
}

// HealthFact is a transactional row referencing a Country by code.
// Facts carry no uniqueness constraint: re-ingesting the same observation
// produces a second row. Idempotency is a reference-data guarantee only.
type HealthFact struct {
	CountryCode string    `json:"country_code"`
	Year        int       `json:"year"`
	Sex         CodeValue `json:"sex"`
	Value       float64   `json:"value"`
	Indicator   string    `json:"indicator"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// FactRow is the joined read model: one fact with its country display name.
type FactRow struct {
	Year      int     `json:"year"`
	Country   string  `json:"country"`
	Sex       string  `json:"sex"`
	Value     float64 `json:"value"`
	Indicator string  `json:"indicator"`
}

// InsertOutcome reports how the store handled a fact insert. A rejected
// insert is a policy outcome, not an error: the record referenced a country
// code with no reference row and was dropped.
type InsertOutcome int

const (
	FactInserted InsertOutcome = iota
	FactRejected
)

func (o InsertOutcome) String() string {
	switch o {
	case FactInserted:
		return "inserted"
	case FactRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
