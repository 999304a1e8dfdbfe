package codec

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/sentence-eval/internal/eval"
)

// #region level-modifiers

var levelInstructions = map[eval.FeedbackLevel]string{
	eval.FeedbackConcise:       "Keep each suggestion under 12 words and leave it empty when the rule passes.",
	eval.FeedbackDetailed:      "Give one or two sentences of suggestion for every rule that fails.",
	eval.FeedbackComprehensive: "For every rule explain the issue in detail and propose a concrete rewrite when it fails.",
}

// #endregion level-modifiers

// #region build-prompt

// buildPrompt renders the evaluation instruction for one sentence.
func buildPrompt(req eval.Request) string {
	level := req.Level
	if _, ok := levelInstructions[level]; !ok {
		level = eval.FeedbackDetailed
	}

	var b strings.Builder
	b.WriteString("You are an assistant skilled in grammar correction and structural refinement of attitude-scale statements.\n")
	b.WriteString("Judge the statement against each rule below. For every rule give passed (true/false), ")
	fmt.Fprintf(&b, "a rating from %d (violates badly) to %d (follows fully) and a suggestion. ", eval.MinRating, eval.MaxRating)
	b.WriteString("Also give a corrected version of the statement.\n")
	b.WriteString(levelInstructions[level])
	b.WriteString("\nAnswer with JSON only, shaped as ")
	b.WriteString(`{"verdicts":[{"criterionId":"<rule id>","passed":true,"rating":5,"suggestion":""}],"correction":"<revised statement>"}`)
	b.WriteString(". Return exactly one verdict per rule id listed.\n\n")

	fmt.Fprintf(&b, "Statement:\n%q\n\nRules:\n", req.SentenceText)
	for _, c := range req.Criteria {
		fmt.Fprintf(&b, "- [%s] %s\n", c.ID, c.Description)
	}
	return b.String()
}

// #endregion build-prompt
