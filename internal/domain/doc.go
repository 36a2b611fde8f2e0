// Package domain models the temporal-spatial aggregation core: calendar
// windows, canonical point records, raster flattening, date resolution, and
// hexagonal-cell statistics.
//
// # Units and windows
//
// A run partitions its date range into windows (calendar months for raster
// catalogs, single days for occurrence APIs) and processes them most recent
// first. One unit is one fetch-through-write cycle: a downloaded granule or
// one day of occurrences. Units never share mutable state; a unit that
// fails is logged and skipped, never fatal to the run.
//
// # Point records
//
// Every source is flattened to PointRecord before aggregation. Grid rasters
// are meshed with longitude varying fastest and masked samples mapped to
// NaN; occurrence records carry a presence value of 1 so cell counts equal
// observation counts. Records with invalid coordinates or a NaN primary
// value are dropped before grouping — a missing value must not count toward
// a cell's sample size.
//
// # Date resolution
//
// Granule dates are inferred by a fixed priority chain (time-coverage
// attributes, the legacy A<YYYY><DDD> filename pattern, creation timestamp).
// When every strategy fails the unit keeps an explicit unknown-date marker
// and is still stored; see ObservationDate.
//
// # Statistics
//
// Groups are keyed by hexagonal cell id (plus optional category and date).
// Std is the sample standard deviation (ddof=1), defined as 0 for
// single-point groups.
// Group values are summed in sorted order so statistics are independent of
// input order.
package domain
