package fieldparse

import (
	"regexp"
	"sort"
	"strings"
)

// stateNames maps the 50 states and DC to their postal codes.
var stateNames = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
	"DC": "District of Columbia", "FL": "Florida", "GA": "Georgia", "HI": "Hawaii",
	"ID": "Idaho", "IL": "Illinois", "IN": "Indiana", "IA": "Iowa",
	"KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana", "ME": "Maine",
	"MD": "Maryland", "MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota",
	"MS": "Mississippi", "MO": "Missouri", "MT": "Montana", "NE": "Nebraska",
	"NV": "Nevada", "NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico",
	"NY": "New York", "NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio",
	"OK": "Oklahoma", "OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island",
	"SC": "South Carolina", "SD": "South Dakota", "TN": "Tennessee", "TX": "Texas",
	"UT": "Utah", "VT": "Vermont", "VA": "Virginia", "WA": "Washington",
	"WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming",
}

var stateCodeRe = regexp.MustCompile(`\b[A-Z]{2}\b`)

// stateNamesByLength lists full names longest first so "West Virginia" wins
// over "Virginia" and "Arkansas" over "Kansas".
var stateNamesByLength = func() []string {
	names := make([]string, 0, len(stateNames))
	for code := range stateNames {
		names = append(names, code)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := stateNames[names[i]], stateNames[names[j]]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a < b
	})
	return names
}()

// State returns the two-letter code of the state of residence mentioned in s.
// An uppercase postal code takes precedence over a spelled-out name.
func State(s string) *string {
	for _, m := range stateCodeRe.FindAllString(s, -1) {
		if _, ok := stateNames[m]; ok {
			return stringPtr(m)
		}
	}
	lower := strings.ToLower(s)
	for _, code := range stateNamesByLength {
		if strings.Contains(lower, strings.ToLower(stateNames[code])) {
			return stringPtr(code)
		}
	}
	return nil
}

// StateCodes returns every known postal code, sorted.
func StateCodes() []string {
	codes := make([]string, 0, len(stateNames))
	for code := range stateNames {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
