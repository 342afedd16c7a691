// Package unit defines the calendar-month work unit processed by the pipeline.
package unit

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidKey is returned when a month key cannot be parsed
var ErrInvalidKey = errors.New("unit: invalid month key")

// Key identifies one calendar month, the atomic scope of idempotent work.
// The canonical string form is "YYYY-MM" (e.g. "2010-12").
type Key struct {
	Year  int
	Month int
}

// New creates a Key from year and month parts.
func New(year, month int) Key {
	return Key{Year: year, Month: month}
}

// Parse converts a canonical "YYYY-MM" string into a Key.
func Parse(s string) (Key, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}

	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}

	k := Key{Year: year, Month: month}
	if err := k.Validate(); err != nil {
		return Key{}, err
	}
	return k, nil
}

// Validate checks that the key names a plausible calendar month.
func (k Key) Validate() error {
	if k.Year < 1 || k.Year > 9999 {
		return fmt.Errorf("%w: year %d out of range", ErrInvalidKey, k.Year)
	}
	if k.Month < 1 || k.Month > 12 {
		return fmt.Errorf("%w: month %d out of range", ErrInvalidKey, k.Month)
	}
	return nil
}

// String returns the canonical "YYYY-MM" form.
func (k Key) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, k.Month)
}

// Before reports whether k is chronologically earlier than other.
func (k Key) Before(other Key) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}

// Sort orders keys chronologically ascending, in place.
func Sort(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Before(keys[j])
	})
}
