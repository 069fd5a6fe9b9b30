package sentiment

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestNewOpenAIModelDefault(t *testing.T) {
	c := NewOpenAI(Config{APIKey: "test-key"})
	if c.model != openai.GPT4oMini {
		t.Fatalf("model = %q, want %q", c.model, openai.GPT4oMini)
	}
	custom := NewOpenAI(Config{APIKey: "test-key", Model: "gpt-4o"})
	if custom.model != "gpt-4o" {
		t.Fatalf("model = %q, want the configured override", custom.model)
	}
}
