package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewOpenAIReasonerRequiresKey(t *testing.T) {
	if _, err := NewOpenAIReasoner(OpenAIConfig{}); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestOpenAIReasonerChatWithTools(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got, want := r.URL.Path, "/v1/chat/completions"; got != want {
			t.Errorf("path = %q, want %q", got, want)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [
						{"id": "call_1", "type": "function", "function": {"name": "set_timeframe", "arguments": "{\"timeframe\":\"1D\"}"}},
						{"id": "call_2", "type": "function", "function": {"name": "add_indicator", "arguments": "not json"}}
					]
				}
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`)
	}))
	defer srv.Close()

	r, err := NewOpenAIReasoner(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1/"})
	if err != nil {
		t.Fatal(err)
	}

	tools := []Tool{{
		Name:        "set_timeframe",
		Description: "Change the chart timeframe",
		Parameters:  ObjectSchema("", map[string]*JSONSchema{"timeframe": EnumProp("tf", "1D", "1h")}, "timeframe"),
	}}
	resp, err := r.Chat(context.Background(), []Message{SystemMessage("sys"), UserMessage("daily please")}, tools)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if got, want := len(resp.ToolCalls), 2; got != want {
		t.Fatalf("tool calls = %d, want %d", got, want)
	}
	if resp.ToolCalls[0].Name != "set_timeframe" || string(resp.ToolCalls[0].Arguments) != `{"timeframe":"1D"}` {
		t.Fatalf("tool call = %+v", resp.ToolCalls[0])
	}
	if got, want := string(resp.ToolCalls[1].Arguments), "not json"; got != want {
		t.Fatalf("malformed arguments = %q, want %q passed through", got, want)
	}
	if resp.FinishReason != "tool_calls" || resp.Model != "gpt-4o-mini" {
		t.Fatalf("response = %+v", resp)
	}

	if captured["model"] != defaultOpenAIModel {
		t.Fatalf("model = %v", captured["model"])
	}
	rawTools, _ := captured["tools"].([]any)
	if len(rawTools) != 1 {
		t.Fatalf("tools = %v", captured["tools"])
	}
	fn := rawTools[0].(map[string]any)["function"].(map[string]any)
	if fn["name"] != "set_timeframe" {
		t.Fatalf("function = %v", fn)
	}
	params, _ := json.Marshal(fn["parameters"])
	if !strings.Contains(string(params), `"enum":["1D","1h"]`) {
		t.Fatalf("parameters = %s", params)
	}
}

func TestOpenAIReasonerPropagatesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
	}))
	defer srv.Close()

	r, _ := NewOpenAIReasoner(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	if _, err := r.Chat(context.Background(), []Message{UserMessage("hi")}, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestToOpenAIMessagesKeepsToolCalls(t *testing.T) {
	msgs := toOpenAIMessages([]Message{{
		Role:      RoleAssistant,
		ToolCalls: []ToolCall{{ID: "c1", Name: "navigate", Arguments: json.RawMessage(`{"direction":"left"}`)}},
	}, {Role: RoleTool, ToolCallID: "c1", Content: "ok"}})

	if len(msgs) != 2 || len(msgs[0].ToolCalls) != 1 || msgs[0].ToolCalls[0].Function.Name != "navigate" {
		t.Fatalf("messages = %+v", msgs)
	}
	if msgs[1].ToolCallID != "c1" || msgs[1].Role != "tool" {
		t.Fatalf("tool message = %+v", msgs[1])
	}
}

func TestReasonerFunc(t *testing.T) {
	var r Reasoner = ReasonerFunc(func(ctx context.Context, m []Message, _ []Tool) (*Response, error) {
		return &Response{Content: m[0].Content}, nil
	})
	resp, err := r.Chat(context.Background(), []Message{AssistantMessage("echo")}, nil)
	if err != nil || resp.Content != "echo" {
		t.Fatalf("resp = %+v err = %v", resp, err)
	}
}
