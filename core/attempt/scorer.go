package attempt

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/assessment"
)

// Score computes the automatic scoring result for a graded assessment. Pure:
// no side effects, safe to call with a snapshot taken under the session lock.
//
// Survey kinds have no correctness concept; callers bypass the scorer for
// them entirely.
func Score(def assessment.Assessment, answers []AnswerRecord) ScoringResult {
	byQuestion := make(map[string]AnswerRecord, len(answers))
	for _, ar := range answers {
		byQuestion[ar.QuestionID] = ar
	}

	res := ScoringResult{
		Graded:    true,
		Questions: make([]QuestionResult, 0, len(def.Questions)),
	}
	for _, q := range def.Questions {
		ar := byQuestion[q.ID]
		qr := QuestionResult{
			QuestionID: q.ID,
			Answered:   ar.Answered(),
		}
		res.Max += q.Points

		if q.HasAnswerKey() {
			correct := ar.Answered() && canonical(ar.Value) == canonical(q.AnswerKey)
			qr.Correct = &correct
			if correct {
				qr.Earned = q.Points
				res.Earned += q.Points
			}
		}
		// free_text: Correct stays nil, Earned stays 0; the question still
		// weighs into Max, so the automatic score is a lower bound.

		res.Questions = append(res.Questions, qr)
	}

	if res.Max > 0 {
		res.Percentage = int(math.Round(100 * float64(res.Earned) / float64(res.Max)))
	}
	return res
}

// canonical coerces an answer value to a comparable string form. Transport
// layers may deliver a chosen index as a number or a string, and a boolean
// as a bool or any casing of its name; all must compare equal to the stored
// answer key.
func canonical(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(strings.TrimSpace(val))
	case bool:
		return strconv.FormatBool(val)
	case float64: // JSON numbers decode to float64
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprintf("%v", val)
	}
}
