package app

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"melody-quiz-service/internal/domain"
)

const (
	fuzzyMinWord    = 3
	fuzzySimilarity = 0.75
)

var bracketed = regexp.MustCompile(`\(.*?\)|\[.*?\]`)

// matchesAny reports whether value matches one of the canonical answers under mode.
func matchesAny(mode domain.Normalization, value string, canonical []string) bool {
	for _, target := range canonical {
		if matches(mode, value, target) {
			return true
		}
	}
	return false
}

func matches(mode domain.Normalization, value, target string) bool {
	switch mode {
	case domain.NormalizeExact:
		v := strings.TrimSpace(value)
		return v != "" && v == strings.TrimSpace(target)
	case domain.NormalizeCaseInsensitive:
		v := foldCase(value)
		return v != "" && v == foldCase(target)
	default:
		return fuzzyMatch(value, target)
	}
}

// fuzzyMatch accepts the whole target, any significant word of it, or a
// close misspelling of such a word. Bracketed remarks like "(Remastered)"
// are ignored.
func fuzzyMatch(value, target string) bool {
	u := stripMarks(foldCase(value))
	t := stripMarks(foldCase(target))
	if u == "" || t == "" {
		return false
	}
	clean := strings.TrimSpace(bracketed.ReplaceAllString(t, ""))
	if clean == "" {
		clean = t
	}
	if u == clean {
		return true
	}
	long := runeLen(u) >= fuzzyMinWord
	if long && (strings.Contains(clean, u) || strings.Contains(u, clean)) {
		return true
	}
	for _, word := range strings.Fields(clean) {
		w := alnum(word)
		if runeLen(w) < fuzzyMinWord {
			continue
		}
		if (long && strings.Contains(w, u)) || strings.Contains(u, w) {
			return true
		}
		if similarity(u, w) > fuzzySimilarity {
			return true
		}
	}
	return false
}

func similarity(a, b string) float64 {
	longest := max(runeLen(a), runeLen(b))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// foldCase trims, collapses inner whitespace and applies Unicode case folding.
// A Caser is not safe for concurrent use, so one is built per call.
func foldCase(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func alnum(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

func runeLen(s string) int {
	return len([]rune(s))
}
