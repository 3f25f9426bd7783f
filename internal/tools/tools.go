// Package tools defines the tools available to the agent.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/alarm"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/docs"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/tasks"
)

// Tool represents a callable tool.
type Tool struct {
	Name        string                                                         `json:"name"`
	Description string                                                         `json:"description"`
	Parameters  map[string]any                                                 `json:"parameters"`
	Handler     func(ctx context.Context, args map[string]any) (string, error) `json:"-"`
}

// Registry holds available tools and the backends they call. Backends
// are attached with the Set methods; each one registers its tools.
type Registry struct {
	tools  map[string]*Tool
	logger *slog.Logger
	now    func() time.Time
	loc    *time.Location

	alarms   *alarm.Service
	light    Light
	calendar Calendar
	mailbox  Mailbox
	contacts Contacts
	tasks    *tasks.Store
	docs     *docs.Store
	weather  Weather
	news     News
	transit  Transit
	geocoder Geocoder
	timer    Timer
}

// NewRegistry creates a registry with the tools that need no backend.
// A nil loc means the host's local zone.
func NewRegistry(loc *time.Location, logger *slog.Logger) *Registry {
	if loc == nil {
		loc = time.Local
	}
	r := &Registry{
		tools:  make(map[string]*Tool),
		logger: logger,
		now:    time.Now,
		loc:    loc,
	}
	r.registerTimeTools()
	r.registerLocationTools()
	return r
}

// Register adds or replaces a tool.
func (r *Registry) Register(t *Tool) {
	r.tools[t.Name] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all tools for the LLM, sorted by name.
func (r *Registry) List() []map[string]any {
	result := make([]map[string]any, 0, len(r.tools))
	for _, name := range r.Names() {
		t := r.tools[name]
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return result
}

// Execute runs a tool by name with JSON-encoded arguments. An unknown
// name yields *ErrToolUnavailable.
func (r *Registry) Execute(ctx context.Context, name string, argsJSON string) (string, error) {
	tool := r.tools[name]
	if tool == nil {
		return "", &ErrToolUnavailable{ToolName: name}
	}

	var args map[string]any
	if strings.TrimSpace(argsJSON) != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
	}
	if args == nil {
		args = map[string]any{}
	}

	start := time.Now()
	out, err := tool.Handler(ctx, args)
	r.logger.Debug("tool executed",
		"tool", name,
		"duration", time.Since(start).Round(time.Millisecond),
		"error", err,
	)
	return out, err
}

// object builds a JSON schema for an object with string properties.
// props alternates property names and descriptions.
func object(required []string, props ...string) map[string]any {
	properties := map[string]any{}
	for i := 0; i+1 < len(props); i += 2 {
		properties[props[i]] = map[string]any{
			"type":        "string",
			"description": props[i+1],
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// stringArg returns a trimmed string argument, or "" when absent.
func stringArg(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strings.TrimSpace(fmt.Sprint(v))
	}
	return ""
}

// requireString returns a non-empty string argument.
func requireString(args map[string]any, key string) (string, error) {
	v := stringArg(args, key)
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

// floatArg returns a numeric argument. Numbers given as strings are
// accepted since some models quote them.
func floatArg(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
