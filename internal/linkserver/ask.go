package linkserver

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Rishika-Mashetty/second-brain/internal/engine"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// AskFailed is the answer when the model call fails for any reason.
const AskFailed = "⚠️ Gemini failed to respond."

const (
	maxAskContext  = 30000
	maxAskQuestion = 2000
	askSeparator   = "\n---------------------\n"
)

// SavedLink is one saved item the user asks about.
type SavedLink struct {
	URL     string `json:"url" jsonschema:"Saved link"`
	Comment string `json:"comment,omitempty" jsonschema:"User note saved with the link"`
	Summary string `json:"summary,omitempty" jsonschema:"Summary stored for the link"`
}

type AskSavedLinksInput struct {
	Items    []SavedLink `json:"items" jsonschema:"Saved links to answer from"`
	Question string      `json:"question" jsonschema:"Question about the saved links"`
}

type AskSavedLinksOutput struct {
	Answer string `json:"answer"`
}

const askInstruction = `You are an AI assistant helping users analyze their saved online content.
Answer the user's question comprehensively and contextually, using the saved posts below (already summarized).
Reply in plain text.`

func registerAskSavedLinks(server *mcp.Server, gw engine.Gateway) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_saved_links",
		Description: "Answer a question over a list of saved links, each with its comment and summary. Returns a fixed placeholder answer if the model fails.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input AskSavedLinksInput) (*mcp.CallToolResult, AskSavedLinksOutput, error) {
		return nil, askSavedLinks(ctx, gw, input), nil
	})
}

func askSavedLinks(ctx context.Context, gw engine.Gateway, input AskSavedLinksInput) AskSavedLinksOutput {
	prompt := buildAskPrompt(input.Items, input.Question)
	answer, err := gw.Generate(ctx, askInstruction, engine.TextPart(prompt))
	if err != nil {
		slog.Warn("ask_saved_links: generation failed",
			slog.Int("items", len(input.Items)), slog.Any("error", err))
		return AskSavedLinksOutput{Answer: AskFailed}
	}
	if strings.TrimSpace(answer) == "" {
		return AskSavedLinksOutput{Answer: AskFailed}
	}
	return AskSavedLinksOutput{Answer: answer}
}

// buildAskPrompt renders the saved items as one clamped context block
// followed by the question.
func buildAskPrompt(items []SavedLink, question string) string {
	blocks := make([]string, 0, len(items))
	for _, it := range items {
		blocks = append(blocks,
			"🔗 URL: "+it.URL+"\n"+
				"💬 Comment: "+engine.FirstNonEmpty(it.Comment, "None")+"\n"+
				"🧾 Summary: "+engine.FirstNonEmpty(it.Summary, "No summary available"))
	}

	var sb strings.Builder
	sb.WriteString("Here are the user's saved posts (summarized already):\n")
	sb.WriteString(engine.Clamp(strings.Join(blocks, askSeparator), maxAskContext))
	sb.WriteString("\n\nNow, the user asks:\n\"")
	sb.WriteString(engine.Clamp(strings.TrimSpace(question), maxAskQuestion))
	sb.WriteString("\"")
	return sb.String()
}
