package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// errUnrecognizedFood is returned when the model says the label is not food.
var errUnrecognizedFood = errors.New("unrecognized food")

/* ─── OpenAI prompt constants ────────────────────────────────────────── */

const estimateSystemPrompt = `You are a nutrition assistant. Given a food name, return a JSON object with reference values per 100 grams:
- "name" (string, cleaned up title case)
- "calories_per_100g" (number)
- "protein_per_100g" (number, grams)
- "carbs_per_100g" (number, grams)
- "fat_per_100g" (number, grams)

Always provide your best estimate, even for unfamiliar or vague items. Only return {"error": "unrecognized"} if the input is not food at all.
Return only valid JSON, no explanation.`

const searchSystemPrompt = `You are a nutrition assistant. Given a search phrase, return a JSON object {"foods": [...]} with up to 5 common foods matching it.
Each food has "name", "calories_per_100g", "protein_per_100g", "carbs_per_100g", "fat_per_100g".
Return only valid JSON, no explanation.`

/* ─── OpenAI HTTP client ─────────────────────────────────────────────── */

// openAIMessage is a single message in the OpenAI chat completions request.
type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openAIRequest is the request body for the OpenAI chat completions API.
type openAIRequest struct {
	Model          string                 `json:"model"`
	Messages       []openAIMessage        `json:"messages"`
	Temperature    float64                `json:"temperature"`
	ResponseFormat map[string]interface{} `json:"response_format"`
}

// openAIProvider estimates nutrition by asking a chat model for per-100 g
// reference values and scaling them locally.
type openAIProvider struct {
	baseURL string // overridable for tests
	apiKey  string
	model   string
	client  *http.Client
	log     *zap.Logger
}

func newOpenAIProvider(baseURL, apiKey string, log *zap.Logger) *openAIProvider {
	return &openAIProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   "gpt-4o-mini",
		client:  &http.Client{Timeout: 15 * time.Second},
		log:     log.With(zap.String("component", "openAIProvider")),
	}
}

// complete sends a chat completions request and returns the raw content
// string from the first choice. Uses raw net/http to avoid pulling in the SDK.
func (p *openAIProvider) complete(ctx context.Context, messages []openAIMessage) (string, error) {
	if p.apiKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY not set")
	}

	bodyBytes, err := json.Marshal(openAIRequest{
		Model:          p.model,
		Messages:       messages,
		Temperature:    0,
		ResponseFormat: map[string]interface{}{"type": "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/v1/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai returned status %d: %s", resp.StatusCode, string(respBytes))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return result.Choices[0].Message.Content, nil
}

// reference asks the model for one food's per-100 g values.
func (p *openAIProvider) reference(ctx context.Context, label string) (foodItem, error) {
	content, err := p.complete(ctx, []openAIMessage{
		{Role: "system", Content: estimateSystemPrompt},
		{Role: "user", Content: label},
	})
	if err != nil {
		p.log.Warn("estimate request failed", zap.String("label", label), zap.Error(err))
		return foodItem{}, err
	}

	var parsed struct {
		foodItem
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return foodItem{}, fmt.Errorf("parse estimate: %w", err)
	}
	if parsed.Error == "unrecognized" || strings.TrimSpace(parsed.Name) == "" {
		return foodItem{}, errUnrecognizedFood
	}
	return parsed.foodItem, nil
}

func (p *openAIProvider) estimate(ctx context.Context, label string, portionGrams float64) (nutritionEstimate, error) {
	ref, err := p.reference(ctx, label)
	if err != nil {
		return nutritionEstimate{}, err
	}
	return ref.scaled(portionGrams), nil
}

func (p *openAIProvider) search(ctx context.Context, query string) ([]foodItem, error) {
	content, err := p.complete(ctx, []openAIMessage{
		{Role: "system", Content: searchSystemPrompt},
		{Role: "user", Content: query},
	})
	if err != nil {
		p.log.Warn("search request failed", zap.String("query", query), zap.Error(err))
		return nil, err
	}
	var parsed struct {
		Foods []foodItem `json:"foods"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("parse search: %w", err)
	}
	if parsed.Foods == nil {
		parsed.Foods = []foodItem{}
	}
	return parsed.Foods, nil
}
