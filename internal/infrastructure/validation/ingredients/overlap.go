package ingredients

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/labelinsight/label-insight/internal/core/domain"
)

// defaultSimilarity is the normalized edit-distance ratio above which two
// ingredient tokens are considered the same ingredient.
const defaultSimilarity = 0.85

// Validator computes fuzzy ingredient-list overlap. The score is the fraction
// of OCR-derived ingredients that have a sufficiently similar counterpart in
// the candidate list.
type Validator struct {
	minSimilarity float64
}

func NewValidator(minSimilarity float64) *Validator {
	if minSimilarity <= 0 || minSimilarity > 1 {
		minSimilarity = defaultSimilarity
	}
	return &Validator{minSimilarity: minSimilarity}
}

func (v *Validator) Validate(ocrIngredients, candidateIngredients []string) domain.ValidationResult {
	ocr := normalizeAll(ocrIngredients)
	candidate := normalizeAll(candidateIngredients)
	if len(ocr) == 0 || len(candidate) == 0 {
		return domain.ValidationResult{OverlapScore: 0, Matches: []string{}}
	}

	matches := make([]string, 0, len(ocr))
	for _, ing := range ocr {
		if v.bestMatch(ing, candidate) {
			matches = append(matches, ing)
		}
	}

	return domain.ValidationResult{
		OverlapScore: float64(len(matches)) / float64(len(ocr)),
		Matches:      matches,
	}
}

func (v *Validator) bestMatch(ingredient string, candidates []string) bool {
	for _, c := range candidates {
		if similarity(ingredient, c) >= v.minSimilarity {
			return true
		}
		// Containment catches compound names like "organic cane sugar".
		if len(c) >= 4 && strings.Contains(ingredient, c) {
			return true
		}
		if len(ingredient) >= 4 && strings.Contains(c, ingredient) {
			return true
		}
	}
	return false
}

func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// Tokenize delegates to the package-level splitter so the validator can also
// serve as the tokenizer for directory ingredient text.
func (v *Validator) Tokenize(text string) []string {
	return Tokenize(text)
}

// Tokenize splits an ingredient declaration on commas and trims each entry,
// dropping empties. Matches how directory ingredient text is stored.
func Tokenize(text string) []string {
	parts := strings.Split(text, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
