package submission

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/paulmach/orb"

	"complaints-backend-go/internal/apperr"
)

const (
	// MaxBackdate is how far in the past a client-supplied created_at may be.
	MaxBackdate = 30 * 24 * time.Hour

	maxReferenceLength = 50
	maxImageRefLength  = 500
)

var (
	// numeric(10,8) and numeric(11,8)
	latitudePattern  = regexp.MustCompile(`^[+-]?\d{1,2}(\.\d{1,8})?$`)
	longitudePattern = regexp.MustCompile(`^[+-]?\d{1,3}(\.\d{1,8})?$`)

	world = orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}
)

func parseCoordinate(field, raw string, pattern *regexp.Regexp, intDigits int) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, apperr.Validation(field, field+" is required")
	}
	if !pattern.MatchString(raw) {
		return 0, apperr.Validation(field, fmt.Sprintf(
			"%s must be a decimal number with at most %d integer and 8 fractional digits", field, intDigits))
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperr.Validation(field, field+" must be a number")
	}
	return v, nil
}

func parseLatitude(raw string) (float64, error) {
	return parseCoordinate("latitude", raw, latitudePattern, 2)
}

func parseLongitude(raw string) (float64, error) {
	return parseCoordinate("longitude", raw, longitudePattern, 3)
}

// checkPoint rejects locations outside the WGS84 range.
func checkPoint(p orb.Point) error {
	if world.Contains(p) {
		return nil
	}
	if p.Lat() < -90 || p.Lat() > 90 {
		return apperr.Validation("latitude", "latitude must be between -90 and 90")
	}
	return apperr.Validation("longitude", "longitude must be between -180 and 180")
}

// checkCreatedAt enforces now-30d <= t <= now.
func checkCreatedAt(t, now time.Time) error {
	if t.After(now) {
		return apperr.Validation("created_at", "created_at cannot be in the future")
	}
	if t.Before(now.Add(-MaxBackdate)) {
		return apperr.Validation("created_at", "created_at cannot be older than 30 days")
	}
	return nil
}

// optionalText trims v and maps blank to nil.
func optionalText(field string, v *string, limit int) (*string, error) {
	if v == nil {
		return nil, nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil, nil
	}
	if limit > 0 && utf8.RuneCountInString(s) > limit {
		return nil, apperr.Validation(field, fmt.Sprintf("%s must be at most %d characters", field, limit))
	}
	return &s, nil
}
