package suggest

import (
	"context"
	"fmt"

	"github.com/huddleplay/assist/internal/llm"
)

// ToneNone is the no-op tone selection. ToneVariant returns the original
// reply unchanged when it is passed.
const ToneNone = "None"

// ToneVariant rewrites an existing reply in the named tone, keeping the
// meaning intact. The same cleaning contract as GenerateReply applies;
// provider failures come back as an "Error:"-prefixed string.
func (o *Orchestrator) ToneVariant(ctx context.Context, originalReply, tone string) string {
	if tone == ToneNone || tone == "" {
		return originalReply
	}

	prompt := fmt.Sprintf(`Rewrite the following reply in a %s tone. Keep the meaning, length, and conversational intent the same. Output only the rewritten reply.

Reply:
%s`, tone, originalReply)

	raw, err := o.gen.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPersona},
		{Role: llm.RoleUser, Content: prompt},
	}, llm.CompletionOptions{
		Temperature: o.opts.Temperature,
		MaxTokens:   o.opts.MaxTokens,
	})
	if err != nil {
		return fmt.Sprintf("%s tone adjustment failed (%v)", ErrorPrefix, err)
	}

	return CleanReply(raw)
}
