package fieldparse

import "strings"

// High-school type categories.
const (
	SchoolTypePublic        = "public"
	SchoolTypePrivate       = "private"
	SchoolTypeCharter       = "charter"
	SchoolTypeMagnet        = "magnet"
	SchoolTypeHomeschool    = "homeschool"
	SchoolTypeInternational = "international"
)

// schoolTypeRules is checked in order; the first rule with a matching
// substring decides the category.
var schoolTypeRules = []struct {
	category string
	needles  []string
}{
	{SchoolTypeHomeschool, []string{"homeschool", "home school", "home-school", "homeschooled"}},
	{SchoolTypeCharter, []string{"charter"}},
	{SchoolTypeMagnet, []string{"magnet", "selective enrollment", "specialized"}},
	{SchoolTypeInternational, []string{"international", "overseas", "abroad"}},
	{SchoolTypePrivate, []string{"private", "independent", "parochial", "catholic", "boarding", "prep school", "religious"}},
	{SchoolTypePublic, []string{"public", "state school", "comprehensive"}},
}

// SchoolType classifies a "type of school" field.
func SchoolType(s string) *string {
	lower := strings.ToLower(s)
	for _, rule := range schoolTypeRules {
		for _, n := range rule.needles {
			if strings.Contains(lower, n) {
				return stringPtr(rule.category)
			}
		}
	}
	return nil
}
