package chat

import (
	"strings"

	"github.com/pdfpilot/pdfpilot-backend/internal/clients/pinecone"
	"github.com/pdfpilot/pdfpilot-backend/internal/types"
)

const systemPrompt = "Use the following pieces of context (or previous conversation if needed) to answer the user's question in markdown format."

const userPromptInstruction = "Use the following pieces of context (or previous conversation if needed) to answer the user's question in markdown format. " +
	"If you don't know the answer, just say that you don't know, don't try to make up an answer."

// renderHistory formats prior turns oldest-first as labeled lines for the
// prompt's conversation block.
func renderHistory(history []*types.Message) string {
	var b strings.Builder
	for _, msg := range history {
		if msg.IsUserMessage {
			b.WriteString("User: ")
		} else {
			b.WriteString("Assistant: ")
		}
		b.WriteString(msg.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// renderContext joins retrieved chunk texts with blank lines, in the
// index's similarity order.
func renderContext(matches []pinecone.Match) string {
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Text == "" {
			continue
		}
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, "\n\n")
}

func buildUserPrompt(history, context, question string) string {
	var b strings.Builder
	b.WriteString(userPromptInstruction)
	b.WriteString("\n\n----------------\n\nPREVIOUS CONVERSATION:\n")
	b.WriteString(history)
	b.WriteString("\n----------------\n\nCONTEXT:\n")
	b.WriteString(context)
	b.WriteString("\n\nUSER INPUT: ")
	b.WriteString(question)
	return b.String()
}
