package conversation

import "strings"

// Transcript renders entries as a question/answer script:
//
//	Question: <user message>
//	Answer: <assistant message>
//
// Lines are joined with a single newline and an empty input renders "".
// The exact layout is consumed verbatim by prompt construction, so any
// change here changes what the model sees.
func Transcript(entries []Entry) string {
	if len(entries) == 0 {
		return ""
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		switch e.Role {
		case RoleUser:
			lines = append(lines, "Question: "+e.Message)
		case RoleAssistant:
			lines = append(lines, "Answer: "+e.Message)
		}
	}
	return strings.Join(lines, "\n")
}
