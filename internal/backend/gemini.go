// Package backend wraps the Gemini API behind a prompt-in, text-out
// interface with per-call timeouts.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/gemrelay/gemrelay/internal/config"
)

// Client talks to the Gemini backend, either the Gemini API or Vertex AI
// depending on configuration.
type Client struct {
	logger  *slog.Logger
	client  *genai.Client
	model   string
	config  *genai.GenerateContentConfig
	timeout time.Duration
}

// Chat is an opaque conversational context held by a user session.
type Chat struct {
	chat *genai.Chat
}

// New creates a backend client. With UseVertex set, project and region
// select the Vertex AI transport; otherwise the API key is used.
func New(ctx context.Context, log *slog.Logger, cfg config.GeminiConfig) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}

	cc := &genai.ClientConfig{}
	if cfg.UseVertex {
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.Project
		cc.Location = cfg.Region
	} else {
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = cfg.APIKey
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{
		logger:  log.With(slog.String("component", "backend")),
		client:  client,
		model:   cfg.Model,
		config:  generateConfig(cfg),
		timeout: cfg.Timeout(),
	}, nil
}

func generateConfig(cfg config.GeminiConfig) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:        genai.Ptr(cfg.Temperature),
		TopP:               genai.Ptr(cfg.TopP),
		MaxOutputTokens:    cfg.MaxOutputTokens,
		ResponseModalities: []string{"TEXT"},
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdOff},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdOff},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdOff},
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdOff},
		},
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		},
	}
}

// NewChat creates a fresh conversational context on the backend.
func (c *Client) NewChat(ctx context.Context) (any, error) {
	chat, err := c.client.Chats.Create(ctx, c.model, c.config, nil)
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return &Chat{chat: chat}, nil
}

// Send forwards prompt parts through the user's chat context and resolves
// the response. The configured timeout bounds the round-trip.
func (c *Client) Send(ctx context.Context, handle any, parts []Part) (Reply, error) {
	chat, ok := handle.(*Chat)
	if !ok || chat == nil || chat.chat == nil {
		return Reply{}, fmt.Errorf("invalid chat handle")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := chat.chat.SendMessage(ctx, toGenaiParts(parts)...)
	if err != nil {
		return Reply{}, fmt.Errorf("send message: %w", err)
	}
	return resolveReply(resp), nil
}

// Generate performs a one-shot generation without conversational context,
// used when history is disabled.
func (c *Client) Generate(ctx context.Context, parts []Part) (Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	content := make([]*genai.Content, 0, 1)
	genaiParts := toGenaiParts(parts)
	partPtrs := make([]*genai.Part, 0, len(genaiParts))
	for i := range genaiParts {
		partPtrs = append(partPtrs, &genaiParts[i])
	}
	content = append(content, &genai.Content{Role: genai.RoleUser, Parts: partPtrs})

	resp, err := c.client.Models.GenerateContent(ctx, c.model, content, c.config)
	if err != nil {
		return Reply{}, fmt.Errorf("generate content: %w", err)
	}
	return resolveReply(resp), nil
}

func toGenaiParts(parts []Part) []genai.Part {
	out := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		if len(p.Data) > 0 {
			out = append(out, genai.Part{InlineData: &genai.Blob{Data: p.Data, MIMEType: p.MIME}})
			continue
		}
		out = append(out, genai.Part{Text: p.Text})
	}
	return out
}

// resolveReply collapses the candidates/parts shape into a tagged Reply.
// Absent candidates or parts map to an empty reply, not an error.
func resolveReply(resp *genai.GenerateContentResponse) Reply {
	if resp == nil || len(resp.Candidates) == 0 {
		return EmptyReply()
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return EmptyReply()
	}
	for _, part := range content.Parts {
		if part != nil && part.Text != "" {
			return TextReply(part.Text)
		}
	}
	return EmptyReply()
}
