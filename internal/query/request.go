// Package query describes an aggregates request and derives the cache key
// that addresses its stored result.
package query

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxLimit is the largest page size accepted by the aggregates endpoint.
const MaxLimit = 50000

// ErrInvalidRequest is wrapped by every validation failure.
var ErrInvalidRequest = errors.New("invalid request")

// Timespan is the unit of the aggregation window.
type Timespan string

const (
	Minute  Timespan = "minute"
	Hour    Timespan = "hour"
	Day     Timespan = "day"
	Week    Timespan = "week"
	Month   Timespan = "month"
	Quarter Timespan = "quarter"
	Year    Timespan = "year"
)

var timespans = []Timespan{Minute, Hour, Day, Week, Month, Quarter, Year}

// ParseTimespan converts a case-insensitive name to a Timespan.
func ParseTimespan(s string) (Timespan, error) {
	t := Timespan(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown timespan %q", ErrInvalidRequest, s)
	}
	return t, nil
}

// Valid reports whether t is one of the known units.
func (t Timespan) Valid() bool {
	for _, v := range timespans {
		if t == v {
			return true
		}
	}
	return false
}

func (t Timespan) String() string { return string(t) }

// Sort is the ordering of results by timestamp.
type Sort string

const (
	Asc  Sort = "asc"
	Desc Sort = "desc"
)

// ParseSort accepts asc/desc (and ascending/descending).
func ParseSort(s string) (Sort, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending":
		return Asc, nil
	case "desc", "descending":
		return Desc, nil
	default:
		return "", fmt.Errorf("%w: unknown sort %q", ErrInvalidRequest, s)
	}
}

// Valid reports whether s is asc or desc.
func (s Sort) Valid() bool { return s == Asc || s == Desc }

func (s Sort) String() string { return string(s) }

// DateLayout is the canonical date format used in requests and keys.
const DateLayout = "2006-01-02"

// Date is a calendar date held as UTC midnight.
type Date struct {
	t time.Time
}

// NewDate builds a Date from its parts.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("%w: bad date %q: %v", ErrInvalidRequest, s, err)
	}
	return Date{t: t}, nil
}

// IsZero reports whether d was never set.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Time returns UTC midnight of d.
func (d Date) Time() time.Time { return d.t }

// After reports whether d is later than o.
func (d Date) After(o Date) bool { return d.t.After(o.t) }

func (d Date) String() string { return d.t.Format(DateLayout) }

// Request holds every parameter that determines an aggregates result.
// All fields take part in the cache key; there are no optional fields.
// Tickers are case-insensitive: New upper-cases them and so does the key.
type Request struct {
	Ticker     string
	Multiplier int
	Timespan   Timespan
	From       Date
	To         Date
	Adjusted   bool
	Sort       Sort
	Limit      int
}

// New validates the parameters and returns a Request.
func New(ticker string, multiplier int, timespan Timespan, from, to Date, adjusted bool, sort Sort, limit int) (Request, error) {
	r := Request{
		Ticker:     strings.ToUpper(strings.TrimSpace(ticker)),
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       from,
		To:         to,
		Adjusted:   adjusted,
		Sort:       sort,
		Limit:      limit,
	}
	if err := r.Validate(); err != nil {
		return Request{}, err
	}
	return r, nil
}

// Defaults builds a Request with adjusted=true, sort=asc and limit=MaxLimit.
func Defaults(ticker string, multiplier int, timespan Timespan, from, to Date) (Request, error) {
	return New(ticker, multiplier, timespan, from, to, true, Asc, MaxLimit)
}

// Validate checks the invariants of r.
func (r Request) Validate() error {
	switch {
	case strings.TrimSpace(r.Ticker) == "":
		return fmt.Errorf("%w: empty ticker", ErrInvalidRequest)
	case strings.ContainsAny(strings.TrimSpace(r.Ticker), " \t\r\n/"):
		return fmt.Errorf("%w: ticker %q contains whitespace or '/'", ErrInvalidRequest, r.Ticker)
	case r.Multiplier < 1:
		return fmt.Errorf("%w: multiplier must be positive, got %d", ErrInvalidRequest, r.Multiplier)
	case !r.Timespan.Valid():
		return fmt.Errorf("%w: unknown timespan %q", ErrInvalidRequest, r.Timespan)
	case r.From.IsZero() || r.To.IsZero():
		return fmt.Errorf("%w: from and to dates are required", ErrInvalidRequest)
	case r.From.After(r.To):
		return fmt.Errorf("%w: from %s is after to %s", ErrInvalidRequest, r.From, r.To)
	case !r.Sort.Valid():
		return fmt.Errorf("%w: unknown sort %q", ErrInvalidRequest, r.Sort)
	case r.Limit < 1 || r.Limit > MaxLimit:
		return fmt.Errorf("%w: limit must be in [1, %d], got %d", ErrInvalidRequest, MaxLimit, r.Limit)
	}
	return nil
}
