package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/avoss/projectwarden/internal/config"
	"github.com/avoss/projectwarden/internal/engine"
	"github.com/avoss/projectwarden/internal/marketplace"
)

const (
	// sampleLimit bounds how many projects feed the category prompt so it
	// stays inside the model's context window.
	sampleLimit = 50

	// descriptionLimit truncates per-project descriptions in prompts.
	descriptionLimit = 200

	maxSuggestions = 10
)

// Grok classifies projects through an OpenAI-compatible chat endpoint.
// Pointed at api.x.ai by default; any compatible endpoint works.
type Grok struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	log         *slog.Logger
}

// NewGrok builds the AI classifier from config.
func NewGrok(cfg config.AIConfig, log *slog.Logger) *Grok {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &Grok{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
		log:         log,
	}
}

// Classify asks the model whether a project matches the reasons in the
// user's past hide feedback. No feedback means no grounds to hide.
func (g *Grok) Classify(ctx context.Context, project marketplace.Project, feedbackTexts []string) (bool, error) {
	if len(feedbackTexts) == 0 {
		return false, nil
	}

	var reasons strings.Builder
	for _, text := range feedbackTexts {
		fmt.Fprintf(&reasons, "- %s\n", strings.TrimSpace(text))
	}

	prompt := fmt.Sprintf(`A user hides research projects they are not interested in and explains why. Their reasons so far:
%s
Project Name: %s
Description: %s

Based only on the user's stated reasons, should this project be hidden too? Return ONLY a valid JSON object:
{"should_hide": true or false}`, reasons.String(), project.Title, truncate(project.Description, descriptionLimit*4))

	raw, err := g.complete(ctx, prompt)
	if err != nil {
		return false, err
	}

	var out struct {
		ShouldHide bool `json:"should_hide"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return false, fmt.Errorf("parse classify response: %w", err)
	}
	return out.ShouldHide, nil
}

// DerivePattern extracts a similarity pattern from one piece of feedback,
// so "too far, I'm not in California" becomes keywords/regions that catch
// future projects with the same problem.
func (g *Grok) DerivePattern(ctx context.Context, project marketplace.Project, feedbackText string) (engine.Pattern, error) {
	prompt := fmt.Sprintf(`A user hid a project and provided this feedback: "%s"

Project Name: %s
Description: %s

Analyze the feedback and extract:
1. Key reasons why the project was hidden
2. Patterns or criteria that could identify similar projects to hide

Return ONLY a valid JSON object:
{
  "reasons": ["reason1", "reason2"],
  "patterns": {
    "keywords": ["keyword1", "keyword2"],
    "regions": ["region1"],
    "professions": ["profession1"],
    "industries": ["industry1"]
  }
}`, feedbackText, project.Title, truncate(project.Description, descriptionLimit*4))

	raw, err := g.complete(ctx, prompt)
	if err != nil {
		return engine.Pattern{}, err
	}

	var out struct {
		Reasons  []string       `json:"reasons"`
		Patterns engine.Pattern `json:"patterns"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return engine.Pattern{}, fmt.Errorf("parse pattern response: %w", err)
	}
	return out.Patterns, nil
}

// SuggestCategories proposes hideable categories from a sample of the
// user's projects. Counting and ranking against the full list is left to
// the caller.
func (g *Grok) SuggestCategories(ctx context.Context, projects []marketplace.Project) ([]CategorySuggestion, error) {
	sample := projects
	if len(sample) > sampleLimit {
		sample = sample[:sampleLimit]
	}

	var listing strings.Builder
	for _, p := range sample {
		fmt.Fprintf(&listing, "- %s: %s\n", p.Title, truncate(p.Description, descriptionLimit))
	}

	prompt := fmt.Sprintf(`Analyze the following projects and suggest categories that users might want to hide.
Consider patterns like:
- Geographic regions (e.g., "California-only projects")
- Professions (e.g., "Healthcare professionals")
- Industries (e.g., "Manufacturing projects")
- Research types (e.g., "In-person studies")

Projects:
%s
Return ONLY a valid JSON array of category recommendations:
[
  {
    "category_name": "Category Name",
    "description": "Brief description",
    "category_pattern": {
      "keywords": ["keyword1", "keyword2"],
      "regions": ["region1"],
      "professions": ["profession1"],
      "industries": ["industry1"]
    }
  }
]

Return 5-10 relevant categories.`, listing.String())

	raw, err := g.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	cleaned := stripFences(raw)
	var suggestions []CategorySuggestion
	if err := json.Unmarshal([]byte(cleaned), &suggestions); err != nil {
		// Some models answer with a bare object when one category stands out.
		var single CategorySuggestion
		if err2 := json.Unmarshal([]byte(cleaned), &single); err2 != nil {
			return nil, fmt.Errorf("parse category response: %w", err)
		}
		suggestions = []CategorySuggestion{single}
	}

	valid := suggestions[:0]
	for _, s := range suggestions {
		if s.Name != "" && s.Pattern.Valid() {
			valid = append(valid, s)
		}
	}
	if len(valid) > maxSuggestions {
		valid = valid[:maxSuggestions]
	}
	return valid, nil
}

func (g *Grok) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response")
	}

	g.log.Debug("classifier response",
		"model", g.model,
		"prompt_chars", len(prompt),
		"completion_chars", len(resp.Choices[0].Message.Content),
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// stripFences removes a markdown code fence the model may wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
