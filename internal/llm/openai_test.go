package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIClient_Chat(t *testing.T) {
	var got openaiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)

		w.Write([]byte(`{
			"model": "gpt-4o-mini",
			"choices": [{
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "set_alarm", "arguments": "{\"day\":\"Monday\",\"clock\":\"07:00\"}"}
					}]
				}
			}],
			"usage": {"prompt_tokens": 40, "completion_tokens": 9}
		}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL+"/v1/", "sk-test", nil)
	history := []Message{
		{Role: RoleSystem, Content: "You are Ecco6."},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_0", Function: FunctionCall{Name: "get_current_time", Arguments: map[string]any{}}}}},
		{Role: RoleTool, ToolCallID: "call_0", Content: "Friday 2024-03-01 08:00:00"},
		{Role: RoleUser, Content: "Wake me at seven on Monday"},
	}
	tools := []map[string]any{{"type": "function", "function": map[string]any{"name": "set_alarm"}}}

	resp, err := c.Chat(context.Background(), "gpt-4o-mini", history, tools)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if len(got.Messages) != 4 || got.Messages[1].ToolCalls[0].Function.Arguments != "{}" {
		t.Errorf("request messages = %+v", got.Messages)
	}
	if got.Messages[1].ToolCalls[0].Type != "function" || got.Messages[2].ToolCallID != "call_0" {
		t.Errorf("tool call round trip lost fields: %+v", got.Messages)
	}
	if len(got.Tools) != 1 {
		t.Errorf("request tools = %v", got.Tools)
	}

	if resp.FinishReason != "tool_calls" || resp.InputTokens != 40 {
		t.Errorf("response = %+v", resp)
	}
	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("tool calls = %+v", resp.Message.ToolCalls)
	}
	call := resp.Message.ToolCalls[0]
	if call.ID != "call_1" || call.Function.Name != "set_alarm" || call.Function.Arguments["clock"] != "07:00" {
		t.Errorf("tool call = %+v", call)
	}
}

func TestOpenAIClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "nope", nil)
	if _, err := c.Chat(context.Background(), "m", []Message{{Role: RoleUser, Content: "hi"}}, nil); err == nil {
		t.Fatal("Chat should fail on 401")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("Ping should fail on 401")
	}
}

func TestOpenAIClient_BadArguments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","tool_calls":[{"id":"c","type":"function","function":{"name":"x","arguments":"{oops"}}]}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "k", nil)
	if _, err := c.Chat(context.Background(), "m", nil, nil); err == nil {
		t.Fatal("Chat should fail on undecodable arguments")
	}
}
