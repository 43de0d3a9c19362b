package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	ollama "github.com/ollama/ollama/api"
)

// OllamaClient talks to a local Ollama server. The host comes from
// OLLAMA_HOST, defaulting to http://localhost:11434.
type OllamaClient struct {
	cli   *ollama.Client
	model string
}

func NewOllamaClient(model string) (*OllamaClient, error) {
	cli, err := ollama.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("could not create ollama client: %w", err)
	}
	model = strings.TrimPrefix(model, "ollama:")
	if model == "" {
		model = "llama3.1"
	}
	return &OllamaClient{cli: cli, model: model}, nil
}

func (o *OllamaClient) Name() string { return "ollama:" + o.model }
func (o *OllamaClient) Close() error { return nil }

func (o *OllamaClient) Complete(ctx context.Context, req Request) (Completion, error) {
	var msgs []ollama.Message
	if req.System != "" {
		msgs = append(msgs, ollama.Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, ollama.Message{Role: "user", Content: req.User})

	// num_ctx must hold the whole prompt plus room for the answer.
	numCtx := EstimateRequestTokens(req) + 4096
	if numCtx < 8192 {
		numCtx = 8192
	}
	opts := map[string]any{
		"temperature": req.Temperature,
		"num_ctx":     numCtx,
	}
	if req.MaxTokens > 0 {
		opts["num_predict"] = req.MaxTokens
	}
	chat := &ollama.ChatRequest{
		Model:    o.model,
		Messages: msgs,
		Options:  opts,
	}
	if req.JSON {
		chat.Format = json.RawMessage(`"json"`)
	}

	var (
		b   strings.Builder
		out Completion
	)
	err := o.cli.Chat(ctx, chat, func(res ollama.ChatResponse) error {
		b.WriteString(res.Message.Content)
		if res.Done {
			out.TokensIn = res.PromptEvalCount
			out.TokensOut = res.EvalCount
		}
		return nil
	})
	if err != nil {
		return Completion{}, fmt.Errorf("ollama chat failed: %w", err)
	}
	out.Text = b.String()
	if strings.TrimSpace(out.Text) == "" {
		return Completion{}, ErrEmptyCompletion
	}
	return fillUsage(out, req), nil
}

// EstimateRequestTokens approximates the prompt size of req.
func EstimateRequestTokens(req Request) int {
	return fillUsage(Completion{}, req).TokensIn
}
