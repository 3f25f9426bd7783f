package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/httpkit"
)

// OpenAIClient talks to an OpenAI-compatible /chat/completions endpoint.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenAIClient creates a client. baseURL includes the version
// prefix, e.g. https://api.openai.com/v1.
func NewOpenAIClient(baseURL, apiKey string, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpkit.NewClient(httpkit.WithTimeout(2*time.Minute), httpkit.WithLogger(logger)),
		logger:     logger,
	}
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"` // JSON-encoded object
	} `json:"function"`
}

type openaiRequest struct {
	Model    string           `json:"model"`
	Messages []openaiMessage  `json:"messages"`
	Tools    []map[string]any `json:"tools,omitempty"`
}

type openaiResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      openaiMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Chat sends one chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error) {
	body := openaiRequest{Model: model, Tools: tools}
	for _, m := range messages {
		om, err := toOpenAIMessage(m)
		if err != nil {
			return nil, err
		}
		body.Messages = append(body.Messages, om)
	}

	req, err := httpkit.NewJSONRequest(ctx, http.MethodPost, c.baseURL+"/chat/completions", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var resp openaiResponse
	if err := httpkit.DoJSON(c.httpClient, req, &resp); err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: response has no choices")
	}

	choice := resp.Choices[0]
	msg, err := fromOpenAIMessage(choice.Message)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("chat completion",
		"model", resp.Model,
		"finish_reason", choice.FinishReason,
		"tool_calls", len(msg.ToolCalls),
		"input_tokens", resp.Usage.PromptTokens,
		"output_tokens", resp.Usage.CompletionTokens,
	)

	return &ChatResponse{
		Model:        resp.Model,
		Message:      msg,
		FinishReason: choice.FinishReason,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Ping lists models to check the key and endpoint.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return httpkit.DoJSON(c.httpClient, req, nil)
}

func toOpenAIMessage(m Message) (openaiMessage, error) {
	om := openaiMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
	for _, tc := range m.ToolCalls {
		args, err := json.Marshal(tc.Function.Arguments)
		if err != nil {
			return openaiMessage{}, fmt.Errorf("encode arguments of %s: %w", tc.Function.Name, err)
		}
		otc := openaiToolCall{ID: tc.ID, Type: "function"}
		otc.Function.Name = tc.Function.Name
		otc.Function.Arguments = string(args)
		om.ToolCalls = append(om.ToolCalls, otc)
	}
	return om, nil
}

func fromOpenAIMessage(om openaiMessage) (Message, error) {
	m := Message{Role: om.Role, Content: om.Content, ToolCallID: om.ToolCallID}
	for _, otc := range om.ToolCalls {
		args := map[string]any{}
		if s := strings.TrimSpace(otc.Function.Arguments); s != "" {
			if err := json.Unmarshal([]byte(s), &args); err != nil {
				return Message{}, fmt.Errorf("decode arguments of %s: %w", otc.Function.Name, err)
			}
		}
		m.ToolCalls = append(m.ToolCalls, ToolCall{
			ID:       otc.ID,
			Function: FunctionCall{Name: otc.Function.Name, Arguments: args},
		})
	}
	return m, nil
}
