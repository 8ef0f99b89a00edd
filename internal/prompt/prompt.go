// Package prompt builds the prompts sent to the model collaborator.
package prompt

import "strings"

// Clarification asks the model whether the latest query needs follow-up
// questions before it can be answered. The model must reply with a JSON
// array of strings so the response parser can decode it.
func Clarification(transcript string) string {
	var b strings.Builder
	b.WriteString("This is the conversation so far between a user and an assistant that answers questions about tabular data:\n\n")
	b.WriteString("<conversation>\n")
	b.WriteString(transcript)
	b.WriteString("\n</conversation>\n\n")
	b.WriteString("Based on the conversation, list up to 3 clarification questions the assistant should ask the user before answering the last question.\n")
	b.WriteString("Reply with a JSON array of strings and nothing else. Reply with an empty array if no clarification is needed.")
	return b.String()
}

// Explanation asks the model for a plain-language account of how the last
// answer was produced, aimed at a non-technical reader.
func Explanation(transcript string) string {
	var b strings.Builder
	b.WriteString("This is the conversation so far between a user and an assistant that answers questions about tabular data:\n\n")
	b.WriteString("<conversation>\n")
	b.WriteString(transcript)
	b.WriteString("\n</conversation>\n\n")
	b.WriteString("Explain briefly, for a non-technical person, how you arrived at the last answer. Do not mention libraries, code, or internal tooling.")
	return b.String()
}
