package codec

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/danielpatrickdp/sentence-eval/internal/eval"
)

// #region patterns

var universalTerms = []string{"all", "always", "none", "never", "every", "everyone", "everybody", "nobody", "nothing"}

var qualifierTerms = []string{"only", "just", "merely"}

var negationTerms = []string{"not", "no", "never", "nobody", "nothing", "none", "neither", "nor", "cannot"}

var joinerTerms = []string{"and", "but", "or", "because", "although", "though", "which", "while", "whereas", "since", "unless", "if"}

var pastMarkers = []string{"was", "were", "had", "did", "used to", "ago", "yesterday", "last year", "formerly", "previously"}

// #endregion patterns

// #region heuristic-adapter

// HeuristicAdapter judges the rules that plain string analysis can decide,
// with no model call. Rules it cannot judge are reported as missing.
type HeuristicAdapter struct{}

type ruleCheck func(text string, words []string) (passed bool, rating int, suggestion string)

var heuristicChecks = map[string]ruleCheck{
	"present-tense":       checkPresentTense,
	"plain-language":      checkPlainLanguage,
	"short":               checkShort,
	"single-thought":      checkSingleThought,
	"no-universals":       checkUniversals,
	"careful-qualifiers":  checkQualifiers,
	"simple-structure":    checkSimpleStructure,
	"no-double-negatives": checkDoubleNegatives,
}

// NewHeuristicAdapter returns the offline rule checker.
func NewHeuristicAdapter() *HeuristicAdapter { return &HeuristicAdapter{} }

// Supports reports whether the adapter can judge a criterion id.
func (HeuristicAdapter) Supports(id string) bool {
	_, ok := heuristicChecks[id]
	return ok
}

// Evaluate runs every supported check. The model choice is ignored.
func (HeuristicAdapter) Evaluate(_ context.Context, req eval.Request) (Feedback, error) {
	text := strings.TrimSpace(req.SentenceText)
	if text == "" {
		return Feedback{}, eval.Errorf(eval.KindMalformedResponse, "no sentence text to evaluate")
	}
	words := tokenize(text)

	fb := Feedback{Verdicts: make(map[string]eval.RuleVerdict, len(req.Criteria))}
	for _, c := range req.Criteria {
		check, ok := heuristicChecks[c.ID]
		if !ok {
			continue
		}
		passed, rating, suggestion := check(text, words)
		fb.Verdicts[c.ID] = eval.RuleVerdict{
			CriterionID: c.ID,
			Passed:      passed,
			Rating:      rating,
			Suggestion:  suggestion,
		}
	}
	return fb, checkComplete(req, fb)
}

// #endregion heuristic-adapter

// #region checks

func checkShort(_ string, words []string) (bool, int, string) {
	n := len(words)
	switch {
	case n <= 12:
		return true, 5, ""
	case n < 20:
		return true, 4, ""
	case n < 25:
		return false, 2, fmt.Sprintf("Trim to under 20 words (currently %d).", n)
	default:
		return false, 1, fmt.Sprintf("Trim to under 20 words (currently %d).", n)
	}
}

func checkUniversals(_ string, words []string) (bool, int, string) {
	found := matchTerms(words, universalTerms)
	if len(found) == 0 {
		return true, 5, ""
	}
	return false, max(1, 3-len(found)), fmt.Sprintf("Avoid universal terms: %s.", strings.Join(found, ", "))
}

func checkQualifiers(_ string, words []string) (bool, int, string) {
	found := matchTerms(words, qualifierTerms)
	switch len(found) {
	case 0:
		return true, 5, ""
	case 1:
		return true, 3, fmt.Sprintf("Check that %q is needed.", found[0])
	default:
		return false, 2, fmt.Sprintf("Too many limiting qualifiers: %s.", strings.Join(found, ", "))
	}
}

func checkDoubleNegatives(_ string, words []string) (bool, int, string) {
	count := len(matchTerms(words, negationTerms))
	for _, w := range words {
		if strings.HasSuffix(w, "n't") {
			count++
		}
	}
	if count < 2 {
		return true, 5, ""
	}
	return false, 1, "Rephrase positively; the statement stacks negations."
}

func checkSimpleStructure(text string, words []string) (bool, int, string) {
	joins := len(matchTerms(words, joinerTerms)) + strings.Count(text, ";")
	switch {
	case joins == 0:
		return true, 5, ""
	case joins == 1:
		return true, 3, ""
	default:
		return false, 2, "Split compound or complex clauses into simple sentences."
	}
}

func checkSingleThought(text string, words []string) (bool, int, string) {
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == ';'
	})
	nonEmpty := 0
	for _, s := range sentences {
		if strings.TrimSpace(s) != "" {
			nonEmpty++
		}
	}
	ands := len(matchTerms(words, []string{"and", "also"}))
	if nonEmpty <= 1 && ands == 0 {
		return true, 5, ""
	}
	if nonEmpty <= 1 && ands == 1 {
		return true, 3, ""
	}
	return false, 2, "Express a single complete thought per statement."
}

func checkPresentTense(text string, words []string) (bool, int, string) {
	found := matchTerms(words, pastMarkers)
	lower := strings.ToLower(text)
	for _, phrase := range pastMarkers {
		if strings.Contains(phrase, " ") && strings.Contains(lower, phrase) {
			found = append(found, phrase)
		}
	}
	if len(found) == 0 {
		return true, 5, ""
	}
	return false, 2, fmt.Sprintf("Refer to the present rather than the past (%s).", strings.Join(found, ", "))
}

func checkPlainLanguage(_ string, words []string) (bool, int, string) {
	if len(words) == 0 {
		return true, 5, ""
	}
	var total, long int
	for _, w := range words {
		total += len(w)
		if len(w) > 12 {
			long++
		}
	}
	avg := float64(total) / float64(len(words))
	switch {
	case avg <= 5.5 && long == 0:
		return true, 5, ""
	case avg <= 6.5 && long <= 1:
		return true, 4, ""
	default:
		return false, 2, "Prefer shorter, everyday words."
	}
}

// #endregion checks

// #region helpers

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// matchTerms returns single-word terms present in words, in term order.
func matchTerms(words, terms []string) []string {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	var found []string
	for _, t := range terms {
		if set[t] {
			found = append(found, t)
		}
	}
	return found
}

// #endregion helpers
