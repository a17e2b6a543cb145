package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
	"google.golang.org/genai"
)

var (
	// ErrNotConfigured is returned when no LLM API key was provided.
	ErrNotConfigured = errors.New("llm: api key not configured")
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// Part is one evidence payload: either Text, or Data with its MIMEType.
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

// TextPart wraps s as a text payload.
func TextPart(s string) Part { return Part{Text: s} }

// MediaPart wraps binary media with its MIME type.
func MediaPart(data []byte, mimeType string) Part { return Part{Data: data, MIMEType: mimeType} }

// IsMedia reports whether p carries binary data.
func (p Part) IsMedia() bool { return len(p.Data) > 0 }

// Gateway is the single integration point to the LLM. It keeps no state
// between calls: every instruction must spell out the output shape.
type Gateway interface {
	Generate(ctx context.Context, instruction string, parts ...Part) (string, error)
	Configured() bool
}

// LLMGateway routes text-only prompts through the OpenAI-compatible
// go-kit client and prompts carrying media through the GenAI SDK, which
// accepts inline audio/video blobs.
type LLMGateway struct {
	text       *llm.Client
	media      *genai.Client
	mediaModel string
	configured bool
}

// NewLLMGateway builds the gateway from c. A missing API key yields a
// gateway whose Generate returns ErrNotConfigured.
func NewLLMGateway(ctx context.Context, c Config) (*LLMGateway, error) {
	c.Defaults()
	if c.LLMAPIKey == "" {
		slog.Warn("llm: no api key, summarization disabled")
		return &LLMGateway{}, nil
	}

	text := llm.NewClient(c.LLMAPIBase, c.LLMAPIKey, c.LLMModel,
		llm.WithFallbackKeys(c.LLMAPIKeyFallbacks),
		llm.WithMaxTokens(c.LLMMaxTokens),
		llm.WithTemperature(c.LLMTemperature),
		llm.WithHTTPClient(&http.Client{Timeout: 90 * time.Second}),
	)

	media, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.LLMAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: genai client: %w", err)
	}

	return &LLMGateway{
		text:       text,
		media:      media,
		mediaModel: c.LLMMediaModel,
		configured: true,
	}, nil
}

// Configured reports whether an API key was provided.
func (g *LLMGateway) Configured() bool { return g != nil && g.configured }

// Generate sends instruction plus parts and returns the model's text.
func (g *LLMGateway) Generate(ctx context.Context, instruction string, parts ...Part) (string, error) {
	if !g.Configured() {
		return "", ErrNotConfigured
	}

	hasMedia := false
	for _, p := range parts {
		if p.IsMedia() {
			hasMedia = true
			break
		}
	}

	var (
		out string
		err error
	)
	if hasMedia {
		metrics.LLMMediaCalls.Add(1)
		out, err = g.generateMedia(ctx, instruction, parts)
	} else {
		metrics.LLMCalls.Add(1)
		out, err = g.text.Complete(ctx, "", joinPrompt(instruction, parts))
	}
	if err != nil {
		metrics.LLMErrors.Add(1)
		return "", err
	}

	out = stripFences(out)
	if out == "" {
		metrics.LLMErrors.Add(1)
		return "", ErrEmptyResponse
	}
	return out, nil
}

func (g *LLMGateway) generateMedia(ctx context.Context, instruction string, parts []Part) (string, error) {
	content := &genai.Content{Role: "user"}
	for _, p := range parts {
		if p.IsMedia() {
			content.Parts = append(content.Parts, &genai.Part{
				InlineData: &genai.Blob{MIMEType: p.MIMEType, Data: p.Data},
			})
			continue
		}
		if p.Text != "" {
			content.Parts = append(content.Parts, &genai.Part{Text: p.Text})
		}
	}
	content.Parts = append(content.Parts, &genai.Part{Text: instruction})

	resp, err := g.media.Models.GenerateContent(ctx, g.mediaModel, []*genai.Content{content}, nil)
	if err != nil {
		return "", fmt.Errorf("gemini media generation: %w", err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

// joinPrompt places the instruction first and the text evidence after it.
func joinPrompt(instruction string, parts []Part) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(instruction))
	for _, p := range parts {
		if p.Text == "" {
			continue
		}
		sb.WriteString("\n\n")
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// stripFences removes markdown code fences from LLM output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```markdown")
	s = strings.TrimPrefix(s, "```text")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
