package domain

import (
	"fmt"
	"strings"
)

// UnknownRegion is the sentinel stored when the API supplies no regional
// grouping for a country.
const UnknownRegion = "Unknown"

// CountryFromRecord maps a raw dimension value to a Country, applying the
// region sentinel.
func CountryFromRecord(rec RawCountryRecord) Country {
	region := strings.TrimSpace(rec.ParentDimension)
	if region == "" {
		region = UnknownRegion
	}
	return Country{
		Code:   rec.Code,
		Name:   rec.Title,
		Region: region,
	}
}

// FactFromRecord maps a raw observation to a HealthFact, normalizing the sex
// code and stamping the ingest time. Records without a country code or year
// cannot be keyed against the reference table, and records whose sex value is
// a composite (JSON object or array) cannot be persisted; both are reported
// as errors so the caller can skip them.
func FactFromRecord(rec RawFactRecord) (HealthFact, error) {
	if strings.TrimSpace(rec.SpatialDim) == "" {
		return HealthFact{}, fmt.Errorf("observation for %q has no country code", rec.IndicatorCode)
	}
	if rec.TimeDim == 0 {
		return HealthFact{}, fmt.Errorf("observation for %q/%s has no year", rec.IndicatorCode, rec.SpatialDim)
	}

	sex := NormalizeSex(CodeValueOf(rec.Dim1))
	if !sex.Scalar() {
		return HealthFact{}, fmt.Errorf("observation for %q/%s has a composite sex value", rec.IndicatorCode, rec.SpatialDim)
	}

	var value float64
	if rec.NumericValue != nil {
		value = *rec.NumericValue
	}

	return HealthFact{
		CountryCode: rec.SpatialDim,
		Year:        rec.TimeDim,
		Sex:         sex,
		Value:       value,
		Indicator:   rec.IndicatorCode,
		IngestedAt:  clock.Now().UTC(),
	}, nil
}
