package warden

import "strings"

// Scorer measures textual overlap between a proposed scope and an
// existing record description. Implementations must be deterministic:
// the same pair of strings always yields the same scores.
type Scorer interface {
	// Overlap returns a symmetric similarity score in [0, 1].
	// 1 means the two texts cover the same ground.
	Overlap(proposed, existing string) float64

	// Containment returns the fraction of the proposed scope that is
	// already covered by the existing description, in [0, 1].
	Containment(proposed, existing string) float64
}

// TokenScorer scores overlap on lowercased token sets: Jaccard
// similarity for Overlap, asymmetric containment for Containment.
// Common function words are ignored so that phrasing differences
// ("analysis of the pipeline" vs "pipeline analysis") do not mask
// real overlap.
type TokenScorer struct{}

// Overlap returns |A ∩ B| / |A ∪ B| over the token sets of the two
// texts. Returns 0 when either text has no significant tokens.
func (TokenScorer) Overlap(proposed, existing string) float64 {
	a := tokenize(proposed)
	b := tokenize(existing)
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// Containment returns |A ∩ B| / |A| where A is the proposed scope's
// token set. Returns 0 when the proposed scope has no significant
// tokens.
func (TokenScorer) Containment(proposed, existing string) float64 {
	a := tokenize(proposed)
	b := tokenize(existing)
	if len(a) == 0 {
		return 0
	}

	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	return float64(intersection) / float64(len(a))
}

// stopwords are function words excluded from token sets.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "in": {}, "is": {},
	"it": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {},
	"this": {}, "to": {}, "with": {},
}

// tokenize lowercases the text, splits on non-alphanumeric runes, and
// drops stopwords and single-character fragments.
func tokenize(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isAlphanumeric(r)
	})

	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, ok := stopwords[f]; ok {
			continue
		}
		tokens[f] = struct{}{}
	}
	return tokens
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}
