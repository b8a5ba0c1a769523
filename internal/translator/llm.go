package translator

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ChatClient is the part of the LLM client the translator needs.
type ChatClient interface {
	SimpleChat(ctx context.Context, prompt string, systemPrompt string) (string, error)
}

// LLM translates with a chat completion model. The prompt pins the
// delimiter token so the model copies it instead of translating it.
type LLM struct {
	client    ChatClient
	delimiter string
}

func NewLLM(client ChatClient, delimiter string) *LLM {
	return &LLM{client: client, delimiter: delimiter}
}

func (l *LLM) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	out, err := l.client.SimpleChat(ctx, text, l.systemPrompt(source, target))
	if err != nil {
		return "", fmt.Errorf("llm translate: %w", err)
	}

	out = stripCodeFence(out)
	if want, got := strings.Count(text, l.delimiter), strings.Count(out, l.delimiter); want != got {
		return "", fmt.Errorf("llm translate: model returned %d delimiters, want %d", got, want)
	}
	return out, nil
}

func (l *LLM) systemPrompt(source, target string) string {
	var sb strings.Builder
	sb.WriteString("You translate subtitle text")
	if source != "" && source != AutoSource {
		sb.WriteString(" from ")
		sb.WriteString(languageName(source))
	}
	sb.WriteString(" into ")
	sb.WriteString(languageName(target))
	sb.WriteString(".\n\n")
	sb.WriteString("Rules:\n")
	fmt.Fprintf(&sb, "- The token %q separates independent subtitle lines. Copy every %q exactly as it appears, in the same position, and never translate, drop or add one.\n", l.delimiter, l.delimiter)
	sb.WriteString("- Translate each piece between tokens on its own; do not merge or reorder pieces.\n")
	sb.WriteString("- Keep line breaks inside a piece.\n")
	sb.WriteString("- Output only the translated text, without quotes, notes or code fences.\n")
	return sb.String()
}

func languageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

// stripCodeFence removes a ``` wrapper some models put around plain output.
func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") || !strings.HasSuffix(trimmed, "```") || len(trimmed) < 6 {
		return s
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(trimmed, "```"), "```")
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 && !strings.Contains(inner[:nl], " ") {
		// drop a language tag such as ```text
		inner = inner[nl+1:]
	}
	return strings.Trim(inner, "\n")
}
