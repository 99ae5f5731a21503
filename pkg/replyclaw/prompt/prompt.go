// Package prompt renders the single generation prompt from the resolved
// personality and the aggregated context blocks.
package prompt

import "strings"

// DefaultQuestion replaces an empty question when only files were sent.
const DefaultQuestion = "(No specific question provided. Summarize or interpret the attached document.)"

const (
	noHistory = "No significant previous interactions."
	noRecent  = "No recent relevant messages."
	noFile    = "No file uploaded."

	expectedBehavior = "Respond clearly and thoroughly, considering all the provided context and maintaining the defined personality style."
)

// Input holds the prompt sections.
type Input struct {
	Instruction string
	History     string
	Recent      string
	FileContext string
	Question    string
}

// Question returns the question that will be asked: the trimmed input, or
// DefaultQuestion when it is blank.
func Question(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return DefaultQuestion
	}
	return q
}

// Compose renders the prompt. It is pure: the same Input always yields the
// same text.
func Compose(in Input) string {
	var b strings.Builder
	section := func(title, body string) {
		b.WriteString("[")
		b.WriteString(title)
		b.WriteString("]\n")
		b.WriteString(body)
	}

	section("System Instruction", "You are AI assistant with the following personality style:\n"+in.Instruction)
	b.WriteString("\n\n")
	section("Conversation History", orDefault(in.History, noHistory))
	b.WriteString("\n\n")
	section("Recent Channel Messages", orDefault(in.Recent, noRecent))
	b.WriteString("\n\n")
	section("File Attachment Summary", orDefault(in.FileContext, noFile))
	b.WriteString("\n\n")
	section("User Question", Question(in.Question))
	b.WriteString("\n\n")
	section("Expected Behavior", expectedBehavior)
	return b.String()
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}
