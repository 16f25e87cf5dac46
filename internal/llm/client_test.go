package llm

import (
	"context"
	"testing"

	"github.com/aventura-app/aventura/internal/config"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LLMConfig
		wantErr bool
	}{
		{"anthropic with key", config.LLMConfig{Provider: "anthropic", AnthropicKey: "sk-test"}, false},
		{"anthropic without key", config.LLMConfig{Provider: "anthropic"}, true},
		{"openai with key", config.LLMConfig{Provider: "openai", OpenAIKey: "sk-test"}, false},
		{"openai without key", config.LLMConfig{Provider: "openai"}, true},
		{"ollama needs nothing", config.LLMConfig{Provider: "ollama"}, false},
		{"unknown provider", config.LLMConfig{Provider: "palantir"}, true},
		{"empty provider", config.LLMConfig{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClient: %v", err)
			}
			if client == nil {
				t.Fatal("nil client without error")
			}
		})
	}
}

func TestMockClientRecordsCalls(t *testing.T) {
	mock := &MockClient{Response: &Response{Content: "ok"}}

	resp, err := mock.Complete(context.Background(), Request{Prompt: "hello", Model: "judge"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q", resp.Content)
	}
	if len(mock.Calls) != 1 || mock.Calls[0].Model != "judge" {
		t.Errorf("Calls = %+v", mock.Calls)
	}
}

func TestMockClientHonorsContext(t *testing.T) {
	mock := &MockClient{Response: &Response{Content: "ok"}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := mock.Complete(ctx, Request{}); err == nil {
		t.Fatal("expected context error")
	}
}
