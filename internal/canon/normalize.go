// Package canon holds the canonicalization routines that make records from
// different providers comparable: query keys, countries, cities and phone
// numbers.
package canon

import "strings"

// NormalizeQuery trims, lowercases and collapses whitespace runs to one space.
func NormalizeQuery(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// NormalizeCity returns the normalized city, or nil when nothing is left.
func NormalizeCity(text string) *string {
	city := NormalizeQuery(text)
	if city == "" {
		return nil
	}
	return &city
}
