// Package llm turns paragraph text into short image search queries
// using an OpenAI-compatible chat endpoint (LM Studio, vLLM, etc.) and
// scrubs the model's answer down to usable phrases.
package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/zombar/imagesearch/models"
)

const (
	queryTemperature = 0.7
	queryMaxTokens   = 200
)

// Client wraps an OpenAI-compatible chat API.
type Client struct {
	ai    *openai.Client
	model string
}

// NewClient creates an LLM client for the given base URL and model.
// baseURL may be a full chat-completions URL; the endpoint path is
// stripped since the SDK appends it.
func NewClient(baseURL, apiKey, model string) *Client {
	if apiKey == "" {
		apiKey = "not-needed" // Local servers ignore the token but the SDK requires one
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = normalizeBaseURL(baseURL)
	}
	return &Client{ai: openai.NewClientWithConfig(cfg), model: model}
}

// normalizeBaseURL strips a trailing /chat/completions path, leaving
// the /v1 root the SDK expects.
func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimRight(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/chat/completions")
	return baseURL
}

// GenerateQueries asks the model for search phrases describing the
// paragraph. The raw answer is cleaned before splitting into queries.
func (c *Client) GenerateQueries(ctx context.Context, paragraph string, settings models.Settings) ([]string, error) {
	systemPrompt := settings.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = models.DefaultSystemPrompt
	}
	model := settings.LLMModel
	if model == "" {
		model = c.model
	}

	resp, err := c.ai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: queryTemperature,
		MaxTokens:   queryMaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Text to analyze:\n" + paragraph +
				"\n\nCreate short image search queries for this text."},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("model returned no choices")
	}

	cleaned := CleanResponse(resp.Choices[0].Message.Content)
	if cleaned == "" {
		return []string{}, nil
	}
	return ParseQueries(cleaned), nil
}

// ParseQueries splits a cleaned model answer into individual queries.
// Pipe-separated answers are split on |, otherwise on newlines; each
// piece is stripped of numbering, quotes, and markers.
func ParseQueries(cleaned string) []string {
	var parts []string
	if strings.Contains(cleaned, "|") {
		parts = strings.Split(cleaned, "|")
	} else {
		parts = strings.Split(cleaned, "\n")
	}

	queries := make([]string, 0, len(parts))
	for _, part := range parts {
		q := strings.TrimSpace(part)
		q = strings.TrimLeft(q, "0123456789.- ")
		q = strings.Trim(q, "\"'`")
		if q != "" && len(q) > 2 && !strings.HasPrefix(q, "<") {
			queries = append(queries, q)
		}
	}
	return queries
}

var (
	closedThinkPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)
	xmlTagPattern      = regexp.MustCompile(`<[^>]+>`)
	leadMarkerPattern  = regexp.MustCompile(`^[\d.\-•*\s]+`)
	openThinkPattern   = regexp.MustCompile(`(?i)^/?think\s*`)
)

// explanationPrefixes mark lines of model prose rather than queries.
var explanationPrefixes = []string{
	"Here", "For ", "I created", "I've created", "Created", "Analysis",
	"Text", "Search queries", "Queries", "The user", "Hmm",
}

// CleanResponse strips reasoning tags and explanatory prose from a
// model answer, keeping only lines that look like search phrases.
//
// Chain-of-thought models emit <think> blocks, sometimes unclosed; both
// forms are removed. Long answers are assumed to be explanations with
// the actual queries in short trailing lines.
func CleanResponse(response string) string {
	if strings.Contains(strings.ToLower(response), "think") {
		if strings.Contains(response, "<think>") && strings.Contains(response, "</think>") {
			response = closedThinkPattern.ReplaceAllString(response, "")
		} else {
			// Unclosed think block: keep only what follows the last
			// think marker
			lower := strings.ToLower(response)
			pos := strings.LastIndex(lower, "/think")
			if p := strings.LastIndex(lower, "think"); p > pos {
				pos = p
			}
			if pos != -1 {
				response = strings.TrimSpace(openThinkPattern.ReplaceAllString(response[pos:], ""))
			}
		}
	}

	response = xmlTagPattern.ReplaceAllString(response, "")
	response = strings.TrimSpace(response)

	// A long answer is most likely an explanation; the queries tend to
	// be the short lines at the end
	if len(response) > 500 {
		lines := strings.Split(response, "\n")
		var shortLines []string
		for i := len(lines) - 1; i >= 0 && len(shortLines) < 6; i-- {
			line := strings.TrimSpace(lines[i])
			if line != "" && len(line) > 5 && len(line) < 50 {
				shortLines = append([]string{line}, shortLines...)
			}
		}
		if len(shortLines) > 0 {
			response = strings.Join(shortLines, "\n")
		}
	}

	var cleanLines []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || len(line) > 50 || isExplanation(line) {
			continue
		}
		line = leadMarkerPattern.ReplaceAllString(line, "")
		line = strings.Trim(strings.TrimSpace(line), "\"'`")
		if line != "" && len(line) >= 5 && len(line) <= 50 && !strings.HasPrefix(line, "<") {
			cleanLines = append(cleanLines, line)
		}
	}

	if len(cleanLines) > 0 {
		return strings.Join(cleanLines, "\n")
	}
	return response
}

func isExplanation(line string) bool {
	for _, prefix := range explanationPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
