// Package fieldparse converts template field text into typed values. Every
// function is total: unrecognized input yields nil, never an error.
package fieldparse

import (
	"regexp"
	"strconv"
	"strings"
)

var numberStripper = strings.NewReplacer(",", "", "$", "", "€", "", "£", "", " ", "", "\t", "")

// Number parses a numeric field, ignoring thousands separators and currency
// symbols. Placeholders such as "N/A" and "X" yield nil.
func Number(s string) *float64 {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "", "N/A", "NA", "X", "-", "NONE":
		return nil
	}
	v, err := strconv.ParseFloat(numberStripper.Replace(s), 64)
	if err != nil {
		return nil
	}
	return &v
}

var decimalRe = regexp.MustCompile(`\d+(?:\.\d+)?|\.\d+`)

// numbers returns every decimal literal in s, in order of appearance.
func numbers(s string) []float64 {
	var out []float64
	for _, m := range decimalRe.FindAllString(s, -1) {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func stringPtr(v string) *string  { return &v }
func boolPtr(v bool) *bool        { return &v }
