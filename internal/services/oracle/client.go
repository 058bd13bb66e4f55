package oracle

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	xhttp "SignalFlow/pkg/http"
)

// Message is a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type streamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content          string `json:"content,omitempty"`
			ReasoningContent string `json:"reasoning_content,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// ChatClient streams OpenAI-compatible chat completions.
type ChatClient struct {
	endpoint  string
	apiKey    string
	maxTokens int
	http      *xhttp.Client
}

// NewChatClient builds a client. Request lifetime is governed by the caller's context.
func NewChatClient(endpoint, apiKey string, maxTokens int) *ChatClient {
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	return &ChatClient{
		endpoint:  strings.TrimRight(endpoint, "/"),
		apiKey:    apiKey,
		maxTokens: maxTokens,
		http:      xhttp.NewClient(xhttp.WithTimeout(0)),
	}
}

// Stream sends messages to model and calls onChunk with every content delta.
// Reasoning deltas are wrapped in <think> tags so callers see one stream.
// It returns the full concatenated text.
func (c *ChatClient) Stream(ctx context.Context, model string, messages []Message, onChunk func(string)) (string, error) {
	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "text/event-stream",
	}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}
	resp, err := c.http.SendRequest(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     c.endpoint + "/chat/completions",
		Headers: headers,
		Body: chatRequest{
			Model:       model,
			Messages:    messages,
			Temperature: 0.2,
			MaxTokens:   c.maxTokens,
			Stream:      true,
		},
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("chat api status %d: %s", resp.StatusCode, body)
	}

	var (
		full      strings.Builder
		reasoning bool
	)
	emit := func(s string) {
		full.WriteString(s)
		if onChunk != nil {
			onChunk(s)
		}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}
		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		for _, ch := range chunk.Choices {
			if r := ch.Delta.ReasoningContent; r != "" {
				if !reasoning {
					emit("<think>")
					reasoning = true
				}
				emit(r)
			}
			if ct := ch.Delta.Content; ct != "" {
				if reasoning {
					emit("</think>")
					reasoning = false
				}
				emit(ct)
			}
		}
	}
	if reasoning {
		emit("</think>")
	}
	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("read stream: %w", err)
	}
	if full.Len() == 0 {
		return "", fmt.Errorf("empty completion from %s", model)
	}
	return full.String(), nil
}
