// Package ai turns free-text task descriptions into issue titles and
// branch slugs using the Anthropic API.
package ai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/steveyegge/loom/internal/location"
	"github.com/steveyegge/loom/internal/types"
)

const (
	// DefaultModel is cheap and fast enough for one-line summaries
	DefaultModel = string(anthropic.ModelClaudeHaiku4_5)

	// MaxTitleLength bounds generated issue titles
	MaxTitleLength = 72

	// MaxSlugWords bounds generated branch slugs
	MaxSlugWords = 5

	maxDescriptionChars = 8000
)

// Config holds summarizer configuration
type Config struct {
	APIKey string // Anthropic API key (if empty, reads from ANTHROPIC_API_KEY env var)
	Model  string // Model to use (default: DefaultModel)

	// BaseURL overrides the API endpoint (used by tests)
	BaseURL string

	Logger *slog.Logger
}

// Summarizer implements the workspace Summarizer over the Messages API
type Summarizer struct {
	client anthropic.Client
	model  string
	logger *slog.Logger
}

// NewSummarizer creates a Summarizer. Failed calls are not retried.
func NewSummarizer(cfg Config) (*Summarizer, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Summarizer{
		client: anthropic.NewClient(opts...),
		model:  model,
		logger: logger,
	}, nil
}

// Summarize returns an issue title and branch slug for description
func (s *Summarizer) Summarize(ctx context.Context, description string) (*types.Summary, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, types.InputError("summarize", types.ErrEmptyInput)
	}

	resp, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: 256,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(description))),
		},
	})
	if err != nil {
		return nil, types.External("summarize", fmt.Errorf("anthropic request failed: %w", err))
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	raw, err := parseJSON[types.Summary](text.String())
	if err != nil {
		return nil, types.External("summarize", err)
	}

	summary := Normalize(raw)
	if summary.Title == "" {
		return nil, types.External("summarize", fmt.Errorf("response contained no title"))
	}
	if summary.Slug == "" {
		summary.Slug = Slug(summary.Title)
	}
	s.logger.Debug("summarized description", "title", summary.Title, "slug", summary.Slug)
	return &summary, nil
}

// Normalize trims the title to MaxTitleLength and re-sanitizes the slug
func Normalize(s types.Summary) types.Summary {
	return types.Summary{
		Title: TruncateTitle(s.Title, MaxTitleLength),
		Slug:  Slug(s.Slug),
	}
}

// Slug sanitizes text into at most MaxSlugWords dash-separated words
func Slug(text string) string {
	words := strings.Split(location.Sanitize(text), "-")
	if len(words) > MaxSlugWords {
		words = words[:MaxSlugWords]
	}
	return strings.Trim(strings.Join(words, "-"), "-")
}

// TruncateTitle returns the first line of text cut to at most max bytes
// on a word boundary.
func TruncateTitle(text string, max int) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	line = strings.TrimSpace(line)
	if len(line) <= max {
		return line
	}
	cut := line[:max]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:-")
}

func buildPrompt(description string) string {
	var prompt strings.Builder

	prompt.WriteString("You name units of software work.\n\n")
	prompt.WriteString("## Task Description\n\n")
	prompt.WriteString(truncate(description, maxDescriptionChars))
	prompt.WriteString("\n\n")

	prompt.WriteString("## Instructions\n\n")
	prompt.WriteString(fmt.Sprintf("1. **title**: an issue title, imperative mood, at most %d characters\n", MaxTitleLength))
	prompt.WriteString(fmt.Sprintf("2. **slug**: a git branch slug, lowercase words joined by dashes, at most %d words\n\n", MaxSlugWords))

	prompt.WriteString("Respond with JSON only:\n")
	prompt.WriteString("```json\n")
	prompt.WriteString("{\"title\": \"Add login rate limiting\", \"slug\": \"login-rate-limiting\"}\n")
	prompt.WriteString("```\n")

	return prompt.String()
}
