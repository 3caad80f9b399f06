// Package domain models WHO Global Health Observatory (GHO) statistics.
//
// # Data Source
//
// Reference and fact data come from the GHO OData API at
// https://ghoapi.azureedge.net/api. Two endpoints are consumed:
//
//	GET /DIMENSION/COUNTRY/DimensionValues   → country dimension values
//	GET /{indicatorCode}                     → observations for one indicator
//
// Both respond with an OData envelope: a JSON object whose "value" field holds
// the record array. A 200 response without a "value" field is treated as "no
// data", the same as a transport failure or a non-200 status.
//
// # GHO Conventions
//
// Country dimension values carry a three-letter code ("Code": "FRA"), a
// display title ("Title": "France"), and a regional grouping
// ("ParentDimension", e.g. "EURO"). Countries with no regional grouping are
// stored with the sentinel region "Unknown".
//
// Observations are keyed by indicator code (e.g. "WHOSIS_000001", life
// expectancy at birth). The fields consumed here:
//
//	SpatialDim    country code, joins against the country dimension
//	TimeDim       observation year
//	Dim1          sex code: "MLE", "FMLE", "BTSX"; absent for sexless series
//	NumericValue  the measurement
//	IndicatorCode the series the observation belongs to
//
// Sex codes are normalized to display labels at ingest time by [NormalizeSex].
// Unrecognized codes pass through unchanged, so stored sex values are a mix of
// labels (known codes) and raw codes (unknown ones).
package domain
