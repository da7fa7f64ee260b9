package directory

import (
	"math"
	"strings"
)

// Validate checks the fields required for insertion and returns a
// *ValidationError for the first one that fails, in a fixed order so that
// callers can re-prompt deterministically.
func Validate(p Profile) error {
	required := []struct {
		field string
		value string
	}{
		{"name", p.Name},
		{"avatar", p.Avatar},
		{"location.address", p.Location.Address},
		{"location.city", p.Location.City},
		{"location.country", p.Location.Country},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Reason: "is required"}
		}
	}

	c := p.Location.Coordinates
	if c == nil {
		return &ValidationError{Field: "location.coordinates", Reason: "is required"}
	}
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || c.Lat < -90 || c.Lat > 90 {
		return &ValidationError{Field: "location.coordinates.lat", Reason: "must be between -90 and 90"}
	}
	if math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) || c.Lng < -180 || c.Lng > 180 {
		return &ValidationError{Field: "location.coordinates.lng", Reason: "must be between -180 and 180"}
	}

	seen := make(map[string]bool, len(p.Tags))
	for _, tag := range p.Tags {
		t := strings.TrimSpace(tag)
		if t == "" {
			return &ValidationError{Field: "tags", Reason: "must not contain empty tags"}
		}
		if seen[t] {
			return &ValidationError{Field: "tags", Reason: "must not contain duplicate " + t}
		}
		seen[t] = true
	}
	return nil
}

// normalizeTags trims tags, drops empty ones and keeps the first occurrence
// of each duplicate. Order is preserved.
func normalizeTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		t := strings.TrimSpace(tag)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
