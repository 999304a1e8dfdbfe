package criteria

import "github.com/danielpatrickdp/sentence-eval/internal/eval"

// #region catalog

// defaultCatalog holds the fourteen statement-writing rules in their
// canonical order.
var defaultCatalog = []eval.Criterion{
	{ID: "present-tense", Name: "Present tense", Weight: 1.0,
		Description: "Avoid statements referring to the past instead of the present."},
	{ID: "non-factual", Name: "Non-factual", Weight: 1.0,
		Description: "Avoid factual statements or those that could be interpreted as such."},
	{ID: "unambiguous", Name: "Unambiguous", Weight: 1.5,
		Description: "Avoid ambiguity and ensure clarity in meaning."},
	{ID: "relevant", Name: "Relevant", Weight: 1.5,
		Description: "Ensure relevance to the intended topic or psychological object."},
	{ID: "discriminating", Name: "Discriminating", Weight: 1.0,
		Description: "Avoid statements that would be universally accepted or rejected."},
	{ID: "scale-coverage", Name: "Scale coverage", Weight: 0.5,
		Description: "Cover the full range of the effective scale of interest."},
	{ID: "plain-language", Name: "Plain language", Weight: 1.0,
		Description: "Use simple, clear, and direct language."},
	{ID: "short", Name: "Short", Weight: 1.0,
		Description: "Keep statements short (preferably under 20 words)."},
	{ID: "single-thought", Name: "Single thought", Weight: 1.5,
		Description: "Each statement should express only one complete thought."},
	{ID: "no-universals", Name: "No universals", Weight: 1.0,
		Description: "Avoid universal terms such as all, always, none, and never."},
	{ID: "careful-qualifiers", Name: "Careful qualifiers", Weight: 0.5,
		Description: "Use words like only, just, merely with caution."},
	{ID: "simple-structure", Name: "Simple structure", Weight: 1.0,
		Description: "Prefer simple sentences over complex or compound ones."},
	{ID: "no-jargon", Name: "No jargon", Weight: 1.0,
		Description: "Avoid jargon or words that may confuse the target audience."},
	{ID: "no-double-negatives", Name: "No double negatives", Weight: 1.0,
		Description: "Eliminate double negatives."},
}

// Default returns a registry holding the built-in catalog.
func Default() *Registry {
	r, err := NewRegistry(defaultCatalog...)
	if err != nil {
		panic(err)
	}
	return r
}

// #endregion catalog
