package pipeline

import (
	"fmt"
	"strings"

	"github.com/harunnryd/bytegate/pkg/adapters/info"
	"github.com/harunnryd/bytegate/pkg/errorsx"
)

// DefaultSystemPrompt is the BYTE persona.
const DefaultSystemPrompt = "You are BYTE (Machine-based Assistant for Research, Voice, and Interactive Services).\n" +
	"Be concise, slightly witty, and helpful. Keep replies short unless user requests long details."

// Client-visible texts.
const (
	NoticeTranscriptionFailed = "⚠️ STT failed"
	ReplyMissingLLMKey        = "❗ No language-model key provided."
)

const maxSnippets = 5

func classificationPrompt(query string) string {
	return "Answer only 'yes' or 'no'. Does the following query require a web search to answer accurately? Query: " + query
}

func augmentedPrompt(query string, snippets []info.Snippet) string {
	var b strings.Builder
	b.WriteString("Use the search results below to answer concisely. Query: ")
	b.WriteString(query)
	b.WriteString("\n\nContext:")
	for _, s := range snippets {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			text = strings.TrimSpace(s.Title)
		}
		b.WriteString("\n")
		b.WriteString(text)
	}
	return b.String()
}

// Fallback is the reply used when the language model could not answer.
func Fallback(err error) string {
	reason := errorsx.Reason(err)
	if reason == errorsx.ReasonMissingCredential {
		return ReplyMissingLLMKey
	}
	return fmt.Sprintf("⚠️ LLM error (%s).", errorsx.Describe(reason))
}
