// Package response validates and normalizes raw model output into typed
// results. Model text is untrusted: it may be malformed, truncated, or
// carry more items than asked for. Decode failures are data, not faults,
// so callers branch on Success instead of handling errors.
package response

import "encoding/json"

// MaxClarificationQuestions caps how many questions are exposed to callers.
// The raw text is preserved untruncated in Message for audit and logging.
const MaxClarificationQuestions = 3

// Clarification is the parsed result of a clarification-questions call.
type Clarification struct {
	Success   bool     `json:"success"`
	Questions []string `json:"questions"`
	Message   string   `json:"message"`
}

// ParseClarification interprets the model collaborator's result. A failed
// call or a body that is not a JSON array of strings yields Success=false
// with the offending text carried in Message.
func ParseClarification(raw string, callErr error) Clarification {
	if callErr != nil {
		return Clarification{
			Success:   false,
			Questions: []string{},
			Message:   callErr.Error(),
		}
	}

	questions, ok := decodeStringArray(raw)
	if !ok {
		return Clarification{
			Success:   false,
			Questions: []string{},
			Message:   raw,
		}
	}

	if len(questions) > MaxClarificationQuestions {
		questions = questions[:MaxClarificationQuestions]
	}
	return Clarification{
		Success:   true,
		Questions: questions,
		Message:   raw,
	}
}

// decodeStringArray accepts only a JSON array whose elements are all
// strings. Unmarshal into []string alone is too forgiving: a bare null
// decodes into a nil slice and a null element into "".
func decodeStringArray(raw string) ([]string, bool) {
	var items []*string
	if err := json.Unmarshal([]byte(raw), &items); err != nil || items == nil {
		return nil, false
	}
	questions := make([]string, 0, len(items))
	for _, item := range items {
		if item == nil {
			return nil, false
		}
		questions = append(questions, *item)
	}
	return questions, true
}

// ParseExplanation passes explanation text through unmodified. A failed
// call propagates its error unchanged; no reformatting is attempted.
func ParseExplanation(raw string, callErr error) (string, error) {
	if callErr != nil {
		return "", callErr
	}
	return raw, nil
}
