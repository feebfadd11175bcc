package suggest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/huddleplay/assist/internal/assembler"
	"github.com/huddleplay/assist/internal/llm"
	"github.com/huddleplay/assist/internal/retrieval"
)

var ctx = context.Background()

// stubGenerator records calls and returns canned replies in sequence.
type stubGenerator struct {
	replies []string
	err     error
	calls   []struct {
		Messages []llm.Message
		Opts     llm.CompletionOptions
	}
}

func (s *stubGenerator) Complete(_ context.Context, messages []llm.Message, opts llm.CompletionOptions) (string, error) {
	s.calls = append(s.calls, struct {
		Messages []llm.Message
		Opts     llm.CompletionOptions
	}{messages, opts})
	if s.err != nil {
		return "", s.err
	}
	i := len(s.calls) - 1
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	return s.replies[i], nil
}

func (s *stubGenerator) lastPrompt() string {
	call := s.calls[len(s.calls)-1]
	return call.Messages[len(call.Messages)-1].Content
}

func TestGenerateReply_CleansOutput(t *testing.T) {
	gen := &stubGenerator{replies: []string{"Here is your reply: Sounds good, Tuesday works."}}
	o := New(gen, Options{})

	result := o.GenerateReply(ctx, ReplyRequest{
		ScreenshotText: "Prospect: does Tuesday work?",
		UserDraft:      "yes",
	})

	if result.Failed() {
		t.Fatalf("unexpected failure: %q", result.Reply)
	}
	if result.Reply != "Sounds good, Tuesday works." {
		t.Errorf("Reply = %q", result.Reply)
	}
}

func TestGenerateReply_PromptContainsContext(t *testing.T) {
	gen := &stubGenerator{replies: []string{"ok"}}
	o := New(gen, Options{})

	o.GenerateReply(ctx, ReplyRequest{
		ScreenshotText: "Prospect: what about onboarding?",
		UserDraft:      "about a week",
		Principles:     "Mention the dedicated CSM.",
		Context: assembler.PromptContext{
			InteractionContext: "🧠 past huddle:\nProspect: timeline?\nDraft: soon\nReply: Two weeks end to end.",
			DocumentContext:    "📄 playbook.pdf:\nOnboarding is a week with a dedicated CSM.",
		},
	})

	prompt := gen.lastPrompt()
	for _, want := range []string{
		"Mention the dedicated CSM.",
		"From past huddles:",
		"Two weeks end to end.",
		"From communication docs:",
		"dedicated CSM",
		"Prospect: what about onboarding?",
		"about a week",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	sys := gen.calls[0].Messages[0]
	if sys.Role != llm.RoleSystem || !strings.Contains(sys.Content, "principles") {
		t.Errorf("system message = %+v", sys)
	}
}

func TestGenerateReply_RegenerateRaisesTemperature(t *testing.T) {
	gen := &stubGenerator{replies: []string{"first", "second, different angle"}}
	o := New(gen, Options{})

	o.GenerateReply(ctx, ReplyRequest{UserDraft: "draft"})
	o.GenerateReply(ctx, ReplyRequest{UserDraft: "draft", Regenerate: true})

	if got := gen.calls[0].Opts.Temperature; got != DefaultTemperature {
		t.Errorf("first call temperature = %v, want %v", got, DefaultTemperature)
	}
	if got := gen.calls[1].Opts.Temperature; got != DefaultRegenTemperature {
		t.Errorf("regenerate temperature = %v, want %v", got, DefaultRegenTemperature)
	}
	if !strings.Contains(gen.lastPrompt(), "different") {
		t.Error("regenerate prompt missing the regeneration instruction")
	}
}

func TestGenerateReply_ProviderFailure(t *testing.T) {
	gen := &stubGenerator{err: errors.New("rate limited")}
	o := New(gen, Options{})

	docs := []retrieval.Match{{ID: "d1", Source: "doc.pdf"}}
	result := o.GenerateReply(ctx, ReplyRequest{
		UserDraft: "draft",
		Context:   assembler.PromptContext{DocMatches: docs},
	})

	if !result.Failed() {
		t.Fatalf("expected failure, got %q", result.Reply)
	}
	if !strings.HasPrefix(result.Reply, ErrorPrefix) {
		t.Errorf("Reply = %q, want %q prefix", result.Reply, ErrorPrefix)
	}
	if !strings.Contains(result.Reply, "rate limited") {
		t.Errorf("Reply should carry the cause: %q", result.Reply)
	}
	if len(result.DocMatches) != 1 {
		t.Errorf("DocMatches should survive failure: %v", result.DocMatches)
	}
}

func TestGenerateReply_CapsOversizedInputs(t *testing.T) {
	gen := &stubGenerator{replies: []string{"ok"}}
	o := New(gen, Options{})

	o.GenerateReply(ctx, ReplyRequest{
		ScreenshotText: strings.Repeat("s", maxScreenshotChars+500),
		UserDraft:      strings.Repeat("d", maxDraftChars+500),
	})

	prompt := gen.lastPrompt()
	if strings.Contains(prompt, strings.Repeat("s", maxScreenshotChars+1)) {
		t.Error("screenshot text not capped")
	}
	if strings.Contains(prompt, strings.Repeat("d", maxDraftChars+1)) {
		t.Error("draft not capped")
	}
}

func TestToneVariant_NoneIsIdentity(t *testing.T) {
	gen := &stubGenerator{replies: []string{"should never be used"}}
	o := New(gen, Options{})

	original := "Here is your reply: raw, uncleaned text  "
	for _, tone := range []string{ToneNone, ""} {
		if got := o.ToneVariant(ctx, original, tone); got != original {
			t.Errorf("ToneVariant(%q) = %q, want original unchanged", tone, got)
		}
	}
	if len(gen.calls) != 0 {
		t.Errorf("provider called %d times for identity tone", len(gen.calls))
	}
}

func TestToneVariant_RewritesAndCleans(t *testing.T) {
	gen := &stubGenerator{replies: []string{"Here is your reply: Hey, Tuesday totally works!"}}
	o := New(gen, Options{})

	got := o.ToneVariant(ctx, "Tuesday works.", "Friendly")
	if got != "Hey, Tuesday totally works!" {
		t.Errorf("ToneVariant = %q", got)
	}
	if !strings.Contains(gen.lastPrompt(), "Friendly") {
		t.Error("prompt missing the requested tone")
	}
	if !strings.Contains(gen.lastPrompt(), "Tuesday works.") {
		t.Error("prompt missing the original reply")
	}
}

func TestToneVariant_ProviderFailure(t *testing.T) {
	gen := &stubGenerator{err: errors.New("timeout")}
	o := New(gen, Options{})

	got := o.ToneVariant(ctx, "Tuesday works.", "Formal")
	if !strings.HasPrefix(got, ErrorPrefix) {
		t.Errorf("got %q, want %q prefix", got, ErrorPrefix)
	}
}
