package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// UnknownDateSentinel is the value written to output artifacts for units
// whose date could not be resolved by any strategy. Such units are still
// aggregated and stored, just without a reliable temporal key.
const UnknownDateSentinel = "date-not-found"

// ObservationDate is the resolved calendar day of a unit, or an explicit
// "unknown" marker when every inference strategy failed. The marker is typed
// so a missing date can never silently masquerade as a real one.
type ObservationDate struct {
	day   time.Time
	known bool
}

// DateOf wraps a concrete calendar day.
func DateOf(t time.Time) ObservationDate {
	return ObservationDate{day: Day(t), known: true}
}

// UnknownDate returns the explicit "date not found" marker.
func UnknownDate() ObservationDate {
	return ObservationDate{}
}

func (d ObservationDate) Known() bool { return d.known }

// Time returns the underlying day; only meaningful when Known is true.
func (d ObservationDate) Time() time.Time { return d.day }

// String renders the ISO-8601 day, or the sentinel when unknown.
func (d ObservationDate) String() string {
	if !d.known {
		return UnknownDateSentinel
	}
	return d.day.Format("2006-01-02")
}

// yearDoyRe matches the legacy "A<YYYY><DDD>" year + day-of-year pattern
// embedded in granule file names, e.g. "A2024117".
var yearDoyRe = regexp.MustCompile(`A(\d{7})`)

// AttrLookup fetches a named string attribute of a unit's metadata.
type AttrLookup func(name string) (string, bool)

// dateStrategy is one named inference rule. Strategies return the zero
// ObservationDate when they do not apply.
type dateStrategy struct {
	name    string
	resolve func(attr AttrLookup, filename string) ObservationDate
}

// dateStrategies is the fixed priority order for resolving a unit's date:
// time-range start attributes, then time-range end attributes, then the
// year+day-of-year filename pattern, then the creation timestamp.
var dateStrategies = []dateStrategy{
	{name: "time-coverage-start", resolve: attrDate("time_coverage_start", "start_time")},
	{name: "time-coverage-end", resolve: attrDate("time_coverage_end", "end_time")},
	{name: "filename-year-doy", resolve: filenameYearDoy},
	{name: "date-created", resolve: attrDate("date_created")},
}

// ResolveDate derives the unit's calendar day from its metadata attributes
// and file name. It returns the explicit unknown marker, never an error:
// an unresolved date degrades the unit, it does not fail it. The second
// return value names the strategy that matched, for logging.
func ResolveDate(attr AttrLookup, filename string) (ObservationDate, string) {
	for _, s := range dateStrategies {
		if d := s.resolve(attr, filename); d.Known() {
			return d, s.name
		}
	}
	return UnknownDate(), ""
}

func attrDate(names ...string) func(AttrLookup, string) ObservationDate {
	return func(attr AttrLookup, _ string) ObservationDate {
		for _, name := range names {
			s, ok := attr(name)
			if !ok || s == "" {
				continue
			}
			if d, ok := parseAttrTimestamp(s); ok {
				return DateOf(d)
			}
		}
		return UnknownDate()
	}
}

// parseAttrTimestamp accepts either a full timestamp ("2024-04-26T12:00:00Z",
// with or without the trailing zone) or a bare 8-digit YYYYMMDD string.
func parseAttrTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "T") {
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		return time.Time{}, false
	}
	if len(s) == 8 && isDigits(s) {
		if t, err := time.Parse("20060102", s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func filenameYearDoy(_ AttrLookup, filename string) ObservationDate {
	m := yearDoyRe.FindStringSubmatch(filename)
	if m == nil {
		return UnknownDate()
	}
	year, _ := strconv.Atoi(m[1][:4])
	doy, _ := strconv.Atoi(m[1][4:])
	if doy < 1 || doy > 366 {
		return UnknownDate()
	}
	return DateOf(time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, doy-1))
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
