// Package ai provides an HTTP client for OpenAI-compatible chat APIs
// that enriches converted documents with generated summaries, image
// descriptions and Q&A sections.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
)

// Client calls an OpenAI-compatible chat completion endpoint. It
// satisfies the converter's Analyzer interface.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewClient builds a Client. Empty baseURL or model fall back to the
// OpenAI defaults.
func NewClient(baseURL, apiKey, model string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
	}
}

// NewClientFromEnv builds a Client from OPENAI_API_KEY, and optionally
// OPENAI_BASE_URL and XL2MD_AI_MODEL.
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	return NewClient(os.Getenv("OPENAI_BASE_URL"), apiKey, os.Getenv("XL2MD_AI_MODEL")), nil
}

// SummarizeTable returns a short prose summary of a Markdown table.
func (c *Client) SummarizeTable(ctx context.Context, sheetName, tableMarkdown string) (string, error) {
	prompt := fmt.Sprintf(
		"Summarize the following table from sheet %q in two sentences. Mention notable totals or trends.\n\n%s",
		sheetName, tableMarkdown)
	return c.complete(ctx, []message{textMessage("user", prompt)})
}

// DescribeImage returns a description of a saved image file, sent inline
// as a data URL.
func (c *Client) DescribeImage(ctx context.Context, name, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}
	mime := "image/png"
	if ext := strings.ToLower(filepath.Ext(imagePath)); ext == ".jpg" || ext == ".jpeg" {
		mime = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
	msg := message{
		Role: "user",
		Content: []contentPart{
			{Type: "text", Text: fmt.Sprintf("Describe the chart or image %q in one or two sentences.", name)},
			{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
		},
	}
	return c.complete(ctx, []message{msg})
}

// GenerateQA returns question/answer pairs derived from sheet content.
func (c *Client) GenerateQA(ctx context.Context, sheetName, content string) (string, error) {
	prompt := fmt.Sprintf(
		"Generate three question and answer pairs about the data in sheet %q, formatted as a Markdown list.\n\n%s",
		sheetName, content)
	return c.complete(ctx, []message{textMessage("user", prompt)})
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func textMessage(role, text string) message {
	return message{Role: role, Content: []contentPart{{Type: "text", Text: text}}}
}

func (c *Client) complete(ctx context.Context, messages []message) (string, error) {
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages, Temperature: 0.2})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling chat API: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("chat API error: %s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat API returned status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
