package codec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/danielpatrickdp/sentence-eval/internal/eval"
)

// #region schema

// payloadSchema describes the JSON a model must answer with.
const payloadSchema = `{
  "type": "object",
  "required": ["verdicts"],
  "properties": {
    "verdicts": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["criterionId", "passed", "rating"],
        "properties": {
          "criterionId": {"type": "string", "minLength": 1},
          "passed": {"type": "boolean"},
          "rating": {"type": "integer", "minimum": 1, "maximum": 5},
          "suggestion": {"type": "string"}
        }
      }
    },
    "correction": {"type": "string"}
  }
}`

var compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(payloadSchema))

// #endregion schema

// #region parse

type payload struct {
	Verdicts []struct {
		CriterionID string `json:"criterionId"`
		Passed      bool   `json:"passed"`
		Rating      int    `json:"rating"`
		Suggestion  string `json:"suggestion"`
	} `json:"verdicts"`
	Correction string `json:"correction"`
}

// parsePayload validates model output against payloadSchema and converts
// it into Feedback. Markdown code fences around the JSON are tolerated.
func parsePayload(raw []byte) (Feedback, error) {
	if schemaErr != nil {
		return Feedback{}, fmt.Errorf("compile payload schema: %w", schemaErr)
	}
	data := []byte(stripFences(string(raw)))
	if len(strings.TrimSpace(string(data))) == 0 {
		return Feedback{}, eval.Errorf(eval.KindMalformedResponse, "empty model response")
	}

	res, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Feedback{}, eval.Wrap(eval.KindMalformedResponse, err, "response is not JSON")
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return Feedback{}, eval.Errorf(eval.KindMalformedResponse, "schema: %s", strings.Join(msgs, "; "))
	}

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Feedback{}, eval.Wrap(eval.KindMalformedResponse, err, "")
	}

	fb := Feedback{
		Verdicts:   make(map[string]eval.RuleVerdict, len(p.Verdicts)),
		Correction: strings.TrimSpace(p.Correction),
	}
	for _, v := range p.Verdicts {
		if _, dup := fb.Verdicts[v.CriterionID]; dup {
			return Feedback{}, &eval.Error{
				Kind:     eval.KindMalformedResponse,
				Reason:   "duplicate verdict",
				Criteria: []string{v.CriterionID},
			}
		}
		fb.Verdicts[v.CriterionID] = eval.RuleVerdict{
			CriterionID: v.CriterionID,
			Passed:      v.Passed,
			Rating:      v.Rating,
			Suggestion:  strings.TrimSpace(v.Suggestion),
		}
	}
	return fb, nil
}

// encodePayload is the inverse of parsePayload, ordered by criteria.
func encodePayload(req eval.Request, fb Feedback) map[string]any {
	verdicts := make([]any, 0, len(fb.Verdicts))
	for _, c := range req.Criteria {
		v, ok := fb.Verdicts[c.ID]
		if !ok {
			continue
		}
		m := map[string]any{
			"criterionId": c.ID,
			"passed":      v.Passed,
			"rating":      float64(v.Rating),
		}
		if v.Suggestion != "" {
			m["suggestion"] = v.Suggestion
		}
		verdicts = append(verdicts, m)
	}
	out := map[string]any{"verdicts": verdicts}
	if fb.Correction != "" {
		out["correction"] = fb.Correction
	}
	return out
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// #endregion parse
