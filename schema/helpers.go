package schema

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// cleanParts cleans a slice of name parts by trimming non-alphanumeric punctuation from ends,
// and additionally trims trailing periods for looser handling.
func cleanParts(parts []string) []string {
	var cleaned []string
	for _, p := range parts {
		cp := strings.TrimFunc(p, func(r rune) bool {
			if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-' || r == '\'' || r == '.' {
				return false
			}
			return true
		})
		cp = strings.TrimSuffix(cp, ".")
		if cp != "" {
			cleaned = append(cleaned, cp)
		}
	}
	return cleaned
}

// getInitial extracts the initial from the last name part, using the first rune for Unicode safety.
func getInitial(last string) string {
	rr := []rune(last)
	if len(rr) > 0 {
		return string(rr[0])
	}
	return ""
}

// AbbreviateName formats "Samuel Huang" to "Samuel H".
// It handles names with parentheses, quotes, backticks, hyphens, and apostrophes appropriately.
// It also handles single-word names by returning them unchanged, and bot accounts without abbreviation.
func AbbreviateName(name string) string {
	// Trim leading/trailing whitespace.
	trimmedName := strings.TrimSpace(name)

	// Special case: bot accounts (e.g., dependabot[bot]) are not abbreviated.
	if strings.Contains(name, "[bot]") {
		parts := strings.Fields(trimmedName)
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
		return trimmedName
	}

	// Remove outer punctuation.
	trimmedName = strings.Trim(trimmedName, "()\"'`")

	// Split into parts.
	parts := strings.Fields(trimmedName)
	cleaned := cleanParts(parts)

	// Handle based on number of cleaned parts.
	if len(cleaned) >= 2 {
		first := cleaned[0]
		last := cleaned[len(cleaned)-1]
		initial := getInitial(last)
		if initial != "" {
			return first + " " + initial
		}
		return first
	}

	if len(cleaned) == 1 {
		return cleaned[0]
	}

	// Fallback.
	return trimmedName
}

// FormatOwnership renders the significant owners of a file as "Samuel H 62%, Ava C 30%".
// Owners at or below the floor are folded into a trailing "others" share.
func FormatOwnership(d *OwnershipDetail, floor float64) string {
	if d == nil || len(d.ByAuthor) == 0 {
		return ""
	}
	authors := make([]string, 0, len(d.ByAuthor))
	for a, share := range d.ByAuthor {
		if share > floor {
			authors = append(authors, a)
		}
	}
	sort.Slice(authors, func(i, j int) bool {
		si, sj := d.ByAuthor[authors[i]], d.ByAuthor[authors[j]]
		if si != sj {
			return si > sj
		}
		return authors[i] < authors[j]
	})
	parts := make([]string, 0, len(authors)+1)
	for _, a := range authors {
		parts = append(parts, fmt.Sprintf("%s %.0f%%", AbbreviateName(a), d.ByAuthor[a]*100))
	}
	if d.OthersShare > 0 {
		parts = append(parts, fmt.Sprintf("others %.0f%%", d.OthersShare*100))
	}
	return strings.Join(parts, ", ")
}
