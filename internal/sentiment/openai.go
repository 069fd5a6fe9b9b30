package sentiment

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"social-ingest/internal/model"
)

// OpenAIClassifier implements Classifier using the Chat Completions API.
type OpenAIClassifier struct {
	client *openai.Client
	model  string
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string // optional
}

func NewOpenAI(cfg Config) *OpenAIClassifier {
	var c *openai.Client
	if cfg.BaseURL != "" {
		cc := openai.DefaultConfig(cfg.APIKey)
		cc.BaseURL = cfg.BaseURL
		c = openai.NewClientWithConfig(cc)
	} else {
		c = openai.NewClient(cfg.APIKey)
	}
	m := cfg.Model
	if m == "" {
		m = openai.GPT4oMini
	}
	return &OpenAIClassifier{client: c, model: m}
}

const systemPrompt = `You are a sentiment classifier for social media comment threads.
Answer with exactly one word: neutral, negative or positive.`

func (o *OpenAIClassifier) Classify(ctx context.Context, text string) (model.SentimentLabel, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	// Trim input to keep tokens reasonable
	if len([]rune(text)) > 4000 {
		text = string([]rune(text)[:4000])
	}
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0,
		MaxTokens:   3,
	})
	if err != nil {
		return model.SentimentUnset, err
	}
	if len(resp.Choices) == 0 {
		return model.SentimentUnset, fmt.Errorf("sentiment: empty completion")
	}
	return parseLabel(resp.Choices[0].Message.Content)
}

func parseLabel(s string) (model.SentimentLabel, error) {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(s), ".!")) {
	case "neutral":
		return model.SentimentNeutral, nil
	case "negative":
		return model.SentimentNegative, nil
	case "positive":
		return model.SentimentPositive, nil
	default:
		return model.SentimentUnset, fmt.Errorf("sentiment: unexpected answer %q", s)
	}
}
