// Package translate fills missing template language variants with Gemini.
package translate

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"google.golang.org/genai"

	"stationpa/pkg/config"
	"stationpa/pkg/model"
	"stationpa/pkg/tracker"
)

var placeholderRegex = regexp.MustCompile(`\{[A-Za-z0-9_]+\}`)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Translator translates English template text, keeping placeholders intact.
type Translator struct {
	gen     Generator
	tracker *tracker.Tracker
}

// New creates a Gemini-backed translator. It fails when no API key is configured.
func New(ctx context.Context, cfg *config.TranslateConfig, t *tracker.Tracker) (*Translator, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("translate: no API key configured (set translate.key or GEMINI_API_KEY)")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.Key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = "gemini-2.5-flash-lite"
	}
	return NewWithGenerator(&gemini{client: client, model: modelName}, t), nil
}

// NewWithGenerator wraps an arbitrary generator.
func NewWithGenerator(g Generator, t *tracker.Tracker) *Translator {
	return &Translator{gen: g, tracker: t}
}

// Translate renders English text in lang. English input is returned as is.
// The result must carry exactly the placeholders of the input.
func (t *Translator) Translate(ctx context.Context, text string, lang model.Language) (string, error) {
	if lang == model.LanguageEnglish || strings.TrimSpace(text) == "" {
		return text, nil
	}
	name := languageName(lang)
	if name == "" {
		return "", fmt.Errorf("translate: unsupported language %q", lang)
	}

	out, err := t.gen.Generate(ctx, buildPrompt(text, name))
	if err != nil {
		t.tracker.TrackAPIFailure("gemini")
		return "", fmt.Errorf("translate: %w", err)
	}
	t.tracker.TrackAPISuccess("gemini")

	out = cleanResponse(out)
	if out == "" {
		return "", fmt.Errorf("translate: empty response")
	}
	if !samePlaceholders(text, out) {
		slog.Warn("Translation altered placeholders", "lang", lang, "source", text, "result", out)
		return "", fmt.Errorf("translate: placeholders not preserved")
	}
	return out, nil
}

func languageName(lang model.Language) string {
	for _, l := range model.Languages {
		if l.Code == lang {
			return l.Name
		}
	}
	return ""
}

func buildPrompt(text, language string) string {
	var sb strings.Builder
	sb.WriteString("Translate this railway station public address announcement from English into ")
	sb.WriteString(language)
	sb.WriteString(".\n")
	sb.WriteString("Keep every token in curly braces, such as {trainNumber}, exactly as written and untranslated.\n")
	sb.WriteString("Reply with the translated announcement only, on a single line.\n\n")
	sb.WriteString(text)
	return sb.String()
}

// cleanResponse strips code fences and surrounding quotes some models add.
func cleanResponse(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```text")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"")
	return strings.TrimSpace(s)
}

func samePlaceholders(a, b string) bool {
	pa := placeholderRegex.FindAllString(a, -1)
	pb := placeholderRegex.FindAllString(b, -1)
	slices.Sort(pa)
	slices.Sort(pb)
	return slices.Equal(pa, pb)
}

type gemini struct {
	client *genai.Client
	model  string
}

func (g *gemini) Generate(ctx context.Context, prompt string) (string, error) {
	temperature := float32(0.2)
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: &temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no candidates returned")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}
