// Package agent implements the conversation loop between the user, the
// language model and the tools.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/llm"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/memory"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/session"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/tools"
)

// Replies used when the model does not produce one.
const (
	fallbackEmpty      = "I'm sorry, I don't have an answer for that."
	fallbackIterations = "I'm sorry, I could not finish that request."
)

// ErrNoSession is returned for requests that carry no session.
var ErrNoSession = errors.New("request has no session")

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // user or assistant
	Content string `json:"content"`
}

// Request represents an incoming agent request.
type Request struct {
	Session  *session.Session `json:"-"`
	Messages []Message        `json:"messages"`
}

// Response represents the agent's response.
type Response struct {
	Content      string   `json:"content"`
	Model        string   `json:"model"`
	FinishReason string   `json:"finish_reason"`
	ToolsUsed    []string `json:"tools_used,omitempty"`
	Iterations   int      `json:"iterations"`
}

// Config bounds the loop.
type Config struct {
	Model         string
	MaxIterations int
	Location      *time.Location
}

// Loop is the core agent execution loop.
type Loop struct {
	logger        *slog.Logger
	memory        *memory.Store
	llm           llm.Client
	tools         *tools.Registry
	model         string
	maxIterations int
	loc           *time.Location
	now           func() time.Time
}

// NewLoop creates a new agent loop.
func NewLoop(cfg Config, client llm.Client, registry *tools.Registry, mem *memory.Store, logger *slog.Logger) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 6
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Loop{
		logger:        logger,
		memory:        mem,
		llm:           client,
		tools:         registry,
		model:         cfg.Model,
		maxIterations: cfg.MaxIterations,
		loc:           cfg.Location,
		now:           time.Now,
	}
}

// Run answers the request. The session's earlier turns are replayed to
// the model, tool calls are executed on behalf of the session's user
// and the new turn is stored once the model has answered.
func (l *Loop) Run(ctx context.Context, req Request) (*Response, error) {
	if req.Session == nil {
		return nil, ErrNoSession
	}
	convID := req.Session.Token
	log := l.logger.With("user_id", req.Session.UserID)

	history := l.memory.GetMessages(convID)
	log.Info("agent loop started", "messages", len(req.Messages), "history", len(history))

	var turn []llm.Message
	for _, m := range req.Messages {
		role := m.Role
		if role == "" {
			role = llm.RoleUser
		}
		turn = append(turn, llm.Message{Role: role, Content: m.Content})
	}

	ctx = tools.WithSession(ctx, req.Session)
	toolDefs := l.tools.List()
	resp := &Response{Model: l.model}

	for resp.Iterations < l.maxIterations {
		resp.Iterations++

		msgs := make([]llm.Message, 0, len(history)+len(turn)+1)
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: systemPrompt(l.now().In(l.loc))})
		msgs = append(msgs, history...)
		msgs = append(msgs, turn...)

		out, err := l.llm.Chat(ctx, l.model, msgs, toolDefs)
		if err != nil {
			return nil, fmt.Errorf("chat: %w", err)
		}
		if out.Model != "" {
			resp.Model = out.Model
		}
		log.Debug("model responded",
			"iteration", resp.Iterations,
			"tool_calls", len(out.Message.ToolCalls),
			"input_tokens", out.InputTokens,
			"output_tokens", out.OutputTokens,
		)

		reply := out.Message
		reply.Role = llm.RoleAssistant
		turn = append(turn, reply)

		if len(reply.ToolCalls) == 0 {
			resp.Content = reply.Content
			resp.FinishReason = out.FinishReason
			if resp.Content == "" {
				resp.Content = fallbackEmpty
			}
			l.memory.AddMessages(convID, turn...)
			log.Info("agent loop finished", "iterations", resp.Iterations, "tools", resp.ToolsUsed)
			return resp, nil
		}

		for _, call := range reply.ToolCalls {
			resp.ToolsUsed = append(resp.ToolsUsed, call.Function.Name)
			turn = append(turn, llm.Message{
				Role:       llm.RoleTool,
				Content:    l.execute(ctx, log, call),
				ToolCallID: call.ID,
			})
		}
	}

	log.Warn("agent loop hit iteration limit", "limit", l.maxIterations, "tools", resp.ToolsUsed)
	resp.Content = fallbackIterations
	resp.FinishReason = "max_iterations"
	l.memory.AddMessages(convID, append(turn, llm.Message{Role: llm.RoleAssistant, Content: resp.Content})...)
	return resp, nil
}

// execute runs one tool call. Failures are reported to the model as
// text so it can recover or explain them to the user.
func (l *Loop) execute(ctx context.Context, log *slog.Logger, call llm.ToolCall) string {
	args, err := json.Marshal(call.Function.Arguments)
	if err != nil {
		return fmt.Sprintf("Error: invalid arguments: %v", err)
	}

	result, err := l.tools.Execute(ctx, call.Function.Name, string(args))
	if err != nil {
		var unavailable *tools.ErrToolUnavailable
		if errors.As(err, &unavailable) {
			log.Warn("model called unavailable tool", "tool", unavailable.ToolName)
		} else {
			log.Warn("tool failed", "tool", call.Function.Name, "error", err)
		}
		return "Error: " + err.Error()
	}
	return result
}

// Forget drops the stored history of a session.
func (l *Loop) Forget(token string) {
	l.memory.Clear(token)
}

// Stats reports conversation memory usage.
func (l *Loop) Stats() map[string]any {
	return l.memory.Stats()
}
