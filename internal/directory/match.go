package directory

import "strings"

// matchesTerm reports whether the lower-cased term is a substring of the
// profile's name, city, country or (unless adminMode) any tag.
func matchesTerm(p *Profile, lowerTerm string, adminMode bool) bool {
	if lowerTerm == "" {
		return true
	}
	if strings.Contains(strings.ToLower(p.Name), lowerTerm) ||
		strings.Contains(strings.ToLower(p.Location.City), lowerTerm) ||
		strings.Contains(strings.ToLower(p.Location.Country), lowerTerm) {
		return true
	}
	if adminMode {
		return false
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), lowerTerm) {
			return true
		}
	}
	return false
}

// matchesTags reports whether the profile carries every tag in filter.
func matchesTags(p *Profile, filter []string) bool {
	for _, want := range filter {
		found := false
		for _, tag := range p.Tags {
			if strings.EqualFold(tag, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func matchesLocation(p *Profile, lowerLoc string) bool {
	if lowerLoc == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Location.City), lowerLoc) ||
		strings.Contains(strings.ToLower(p.Location.State), lowerLoc) ||
		strings.Contains(strings.ToLower(p.Location.Country), lowerLoc)
}

func matches(p *Profile, q Query) bool {
	return matchesTerm(p, strings.ToLower(q.Term), q.AdminMode) &&
		matchesTags(p, q.Tags) &&
		matchesLocation(p, strings.ToLower(q.Location))
}
