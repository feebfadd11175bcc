// Package suggest turns assembled context and the user's inputs into a
// suggested reply: it composes the prompt, invokes the generation provider,
// and normalizes the raw output.
package suggest

import (
	"context"
	"fmt"
	"strings"

	"github.com/huddleplay/assist/internal/assembler"
	"github.com/huddleplay/assist/internal/llm"
	"github.com/huddleplay/assist/internal/retrieval"
)

// Input caps keep the prompt bounded regardless of OCR noise or pasted walls
// of text.
const (
	maxScreenshotChars = 1200
	maxDraftChars      = 600
)

// Generation defaults.
const (
	DefaultTemperature      = 0.65
	DefaultRegenTemperature = 0.75
	DefaultMaxTokens        = 600
)

// ErrorPrefix marks a generation failure returned as a string result instead
// of an error, so UI code can branch on content without catching an exception
// across the API boundary. A reply carrying this prefix is never a valid
// suggestion: it must not be saved or displayed as success.
const ErrorPrefix = "Error:"

// systemPersona is the fixed system instruction, including the five stylistic
// principles every reply follows.
const systemPersona = `You are a huddle assistant helping refine short conversational replies. Every reply you produce follows these principles:
1. Clarity & Impact: the core message is instantly understandable and engaging.
2. Curiosity, Not Persuasion: invite dialogue with genuine questions rather than selling or convincing.
3. Build Rapport: strengthen the connection with the recipient, reflecting empathy and understanding.
4. Concise & Authentic: brief, warm, and sounding like a real person, not a script.
5. Strategic Next Step: naturally guide the conversation towards understanding their needs or openness.`

const taskInstruction = `Write the reply the user should send. Output only the reply text itself. Do not say "here is a draft", do not add commentary, and do not include a greeting like "Hey [Name]": the message is pasted mid-conversation.`

const regenInstruction = `This is a regeneration request: the user has already seen one suggestion for these exact inputs and wants a materially different angle. Do not rephrase the previous approach; take a genuinely different one.`

// Options bound generation calls.
type Options struct {
	Temperature      float32 // sampling temperature for first-pass generation
	RegenTemperature float32 // raised temperature for regeneration requests
	MaxTokens        int     // deterministic output-length bound
}

func (o Options) withDefaults() Options {
	if o.Temperature <= 0 {
		o.Temperature = DefaultTemperature
	}
	if o.RegenTemperature <= 0 {
		o.RegenTemperature = DefaultRegenTemperature
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	return o
}

// ReplyRequest carries everything one reply generation needs. It is built
// fresh per request; the orchestrator holds no per-session state.
type ReplyRequest struct {
	ScreenshotText string
	UserDraft      string
	Principles     string // caller-supplied guidance, appended to the fixed set
	Context        assembler.PromptContext
	Regenerate     bool
}

// ReplyResult is the generated reply plus the document matches that informed it.
type ReplyResult struct {
	Reply      string
	DocMatches []retrieval.Match
}

// Failed reports whether the reply is the generation-failure sentinel.
func (r ReplyResult) Failed() bool {
	return strings.HasPrefix(r.Reply, ErrorPrefix)
}

// Orchestrator produces suggested replies and tone variants.
type Orchestrator struct {
	gen  llm.Generator
	opts Options
}

// New creates an Orchestrator over the given generation provider.
func New(gen llm.Generator, opts Options) *Orchestrator {
	return &Orchestrator{gen: gen, opts: opts.withDefaults()}
}

// GenerateReply builds the prompt from the request and invokes the provider.
// Provider failures come back as an "Error:"-prefixed reply, never an error.
func (o *Orchestrator) GenerateReply(ctx context.Context, req ReplyRequest) ReplyResult {
	prompt := o.buildPrompt(req)

	temperature := o.opts.Temperature
	if req.Regenerate {
		temperature = o.opts.RegenTemperature
	}

	raw, err := o.gen.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPersona},
		{Role: llm.RoleUser, Content: prompt},
	}, llm.CompletionOptions{
		Temperature: temperature,
		MaxTokens:   o.opts.MaxTokens,
	})
	if err != nil {
		return ReplyResult{
			Reply:      fmt.Sprintf("%s reply generation failed (%v)", ErrorPrefix, err),
			DocMatches: req.Context.DocMatches,
		}
	}

	return ReplyResult{
		Reply:      CleanReply(raw),
		DocMatches: req.Context.DocMatches,
	}
}

// buildPrompt assembles the user message in fixed order: caller principles,
// the two context blocks, the capped inputs, and the task instruction.
func (o *Orchestrator) buildPrompt(req ReplyRequest) string {
	var sb strings.Builder

	if p := strings.TrimSpace(req.Principles); p != "" {
		sb.WriteString("Additional principles to follow:\n")
		sb.WriteString(p)
		sb.WriteString("\n\n")
	}

	sb.WriteString("🧠 From past huddles:\n")
	sb.WriteString(req.Context.InteractionContext)
	sb.WriteString("\n\n📄 From communication docs:\n")
	sb.WriteString(req.Context.DocumentContext)

	sb.WriteString("\n\nScreenshot text:\n")
	sb.WriteString(capChars(req.ScreenshotText, maxScreenshotChars))
	sb.WriteString("\n\nUser's draft reply:\n")
	sb.WriteString(capChars(req.UserDraft, maxDraftChars))

	sb.WriteString("\n\n")
	sb.WriteString(taskInstruction)
	if req.Regenerate {
		sb.WriteString("\n\n")
		sb.WriteString(regenInstruction)
	}

	return sb.String()
}

func capChars(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
