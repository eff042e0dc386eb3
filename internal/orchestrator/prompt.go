package orchestrator

import (
	"fmt"
	"strings"

	"github.com/billie-coop/pacer/internal/search"
)

// SystemPrompt tells the model to reason first and put its final answer
// after marker.
func SystemPrompt(marker string) string {
	return fmt.Sprintf(`You are a careful assistant answering questions about a codebase.
Think through the problem first. When you are ready, write %s on its own
and then give only the final answer in markdown. Never write %s anywhere else.`, marker, marker)
}

// QuestionPrompt packs retrieved code into the user message.
func QuestionPrompt(question string, hits []search.Result) string {
	var sb strings.Builder
	if len(hits) > 0 {
		sb.WriteString("Relevant code:\n\n")
		for _, r := range hits {
			fmt.Fprintf(&sb, "%s (lines %d-%d)\n", r.Path, r.StartLine, r.EndLine)
			fmt.Fprintf(&sb, "```\n%s\n```\n\n", strings.TrimRight(r.Content, "\n"))
		}
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)
	return sb.String()
}
