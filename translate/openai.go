package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/use-agent/anvisa/cache"
	"github.com/use-agent/anvisa/config"
	"github.com/use-agent/anvisa/models"
)

// Client translates through an OpenAI-compatible chat completions API.
type Client struct {
	http  *resty.Client
	cfg   config.TranslatorConfig
	cache *cache.Cache[models.TranslatedQuery]
}

// NewClient creates a Client. A nil memo disables caching.
func NewClient(cfg config.TranslatorConfig, memo *cache.Cache[models.TranslatedQuery]) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	return &Client{http: client, cfg: cfg, cache: memo}
}

// chatRequest is the OpenAI chat completion request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the minimal chat completion response we need.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chatErrorResponse captures an API error from the provider.
type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// translation is the JSON object the model is asked to reply with.
type translation struct {
	Molecule string `json:"molecule_pt"`
	Brand    string `json:"brand_pt"`
}

// Translate implements Translator.
func (c *Client) Translate(ctx context.Context, q models.Query, apiKey string) models.TranslatedQuery {
	out, err := c.translate(ctx, q, apiKey)
	if err != nil {
		slog.Warn("translation failed, using original terms",
			"substance", q.Substance,
			"brand", q.Brand,
			"error", err,
		)
		return original(q)
	}
	return out
}

func (c *Client) translate(ctx context.Context, q models.Query, apiKey string) (models.TranslatedQuery, error) {
	if apiKey == "" {
		apiKey = c.cfg.APIKey
	}
	if apiKey == "" {
		return models.TranslatedQuery{}, fmt.Errorf("%w: no API key", ErrTranslationUnavailable)
	}

	key := cache.Key(c.cfg.Model, q.Substance, q.Brand)
	if c.cache != nil {
		if hit, ok := c.cache.Get(key); ok {
			slog.Debug("translation cache hit", "substance", q.Substance)
			return hit, nil
		}
	}

	var result chatResponse
	var apiErr chatErrorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetBody(chatRequest{
			Model:       c.cfg.Model,
			Messages:    []chatMessage{{Role: "user", Content: buildPrompt(q)}},
			Temperature: 0.1,
			MaxTokens:   200,
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		return models.TranslatedQuery{}, fmt.Errorf("%w: %v", ErrTranslationUnavailable, err)
	}
	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = resp.Status()
		}
		return models.TranslatedQuery{}, fmt.Errorf("%w: API returned %d: %s", ErrTranslationUnavailable, resp.StatusCode(), msg)
	}
	if len(result.Choices) == 0 {
		return models.TranslatedQuery{}, fmt.Errorf("%w: no choices", ErrTranslationUnavailable)
	}

	var t translation
	if err := json.Unmarshal([]byte(stripFences(result.Choices[0].Message.Content)), &t); err != nil {
		return models.TranslatedQuery{}, fmt.Errorf("%w: invalid JSON reply: %v", ErrTranslationUnavailable, err)
	}

	out := models.TranslatedQuery{
		Substance: strings.TrimSpace(t.Molecule),
		Brand:     strings.TrimSpace(t.Brand),
	}
	if out.Substance == "" {
		out.Substance = q.Substance
	}
	// A brand is never invented for a query without one.
	if q.Brand == "" {
		out.Brand = ""
	} else if out.Brand == "" {
		out.Brand = q.Brand
	}

	if c.cache != nil {
		c.cache.Set(key, out)
	}
	return out, nil
}

// buildPrompt asks for a JSON object with the translated terms.
func buildPrompt(q models.Query) string {
	brand := q.Brand
	if brand == "" {
		brand = "N/A"
	}
	return fmt.Sprintf(`Translate these pharmaceutical terms to Brazilian Portuguese:

Molecule: %s
Brand: %s

Reply ONLY with JSON format:
{"molecule_pt": "...", "brand_pt": "..."}

Rules:
- Use Brazilian Portuguese (pt-BR)
- Keep chemical names accurate
- If brand is N/A, return empty string
- No explanations, just JSON`, q.Substance, brand)
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
