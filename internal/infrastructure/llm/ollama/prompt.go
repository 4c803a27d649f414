package ollama

import (
	"fmt"
	"strings"
)

func buildAnswerPrompt(question string, evidence []string) string {
	var contextBuilder strings.Builder
	for idx, passage := range evidence {
		contextBuilder.WriteString(fmt.Sprintf("[%d] %s\n\n", idx+1, passage))
	}

	return fmt.Sprintf(`Answer the user question only from the context below.
If the context is insufficient, say it directly.

Question:
%s

Context:
%s
`, question, contextBuilder.String())
}
