package agent

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const summarizeSystem = `You compress prior chat history for a coding assistant. Preserve decisions, file paths, function names, command outputs, errors, and open items. Omit pleasantries and redundant logs.`

// Summarizer compresses dropped history by asking the provider for a short
// summary. It implements Compressor.
type Summarizer struct {
	Client Client
	Model  string
	Ratio  float64 // chars/token, used to recompute the advisory token count
}

// Compress renders the dropped messages, asks the model for a summary, and
// wraps it as a synthetic assistant message. The _metadata token count is
// advisory only; budgeting always re-estimates with the session ratio.
func (s *Summarizer) Compress(ctx context.Context, dropped []Message, originalTask string) (Message, error) {
	if len(dropped) == 0 {
		return Message{}, fmt.Errorf("nothing to compress")
	}

	prompt := "Summarize the following history in <= 300 words, preserving facts and decisions."
	if originalTask != "" {
		prompt += "\n\nThe user's original task was:\n" + originalTask
	}
	prompt += "\n\nHistory:\n\n" + renderForSummary(dropped)

	msgs := []Message{
		{Role: RoleSystem, Content: summarizeSystem},
		{Role: RoleUser, Content: prompt},
	}

	events, errs := s.Client.Stream(ctx, s.Model, msgs, nil, ChatOptions{MaxOutputTokens: 512})
	var b strings.Builder
	for ev := range events {
		if ev.Type == EventText {
			b.WriteString(ev.Text)
		}
	}
	if err := <-errs; err != nil {
		return Message{}, err
	}

	summary := strings.TrimSpace(b.String())
	if summary == "" {
		return Message{}, fmt.Errorf("empty summary from model")
	}

	ratio := s.Ratio
	if ratio <= 0 {
		ratio = DefaultTokenRatio
	}
	return Message{
		Role:    RoleAssistant,
		Content: "[Earlier conversation, compressed]\n" + summary,
		Metadata: map[string]any{
			"compressed_tokens":  ceilDiv(len(summary), ratio),
			"original_messages":  len(dropped),
			"compression_method": "summary",
		},
		Timestamp: time.Now().UTC(),
	}, nil
}

func renderForSummary(msgs []Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString("[" + string(m.Role) + "] ")
		if len(m.ToolCalls) > 0 {
			for _, c := range m.ToolCalls {
				fmt.Fprintf(&b, "(called %s %s) ", c.Name, c.ArgsJSON())
			}
		}
		content := m.Content
		if len(content) > 2000 {
			content = content[:1000] + "\n...\n" + content[len(content)-1000:]
		}
		b.WriteString(content)
		b.WriteString("\n\n")
	}
	return b.String()
}
