package analyst

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	oa "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
)

// DefaultOpenAIModel es el modelo por defecto del proveedor OpenAI.
const DefaultOpenAIModel = "gpt-4o"

// OpenAI implementa ports.Analyst sobre chat completions.
type OpenAI struct {
	cli   oa.Client
	model string
}

// NewOpenAI crea el cliente. baseURL vacío usa el endpoint público.
func NewOpenAI(apiKey, model, baseURL string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{cli: oa.NewClient(opts...), model: model}
}

func (o *OpenAI) Name() string { return "OpenAI" }

// Analyze pide el informe en una sola completion.
func (o *OpenAI) Analyze(ctx context.Context, req domain.AnalysisRequest) (string, error) {
	model := o.modelFor(req)
	slog.Info("requesting analysis", "provider", "openai", "model", model, "documents", len(req.Documents))

	return o.complete(ctx, model, []oa.ChatCompletionMessageParamUnion{
		oa.UserMessage(composeContext(req)),
	})
}

// Converse mantiene el historial de mensajes entre turnos.
func (o *OpenAI) Converse(ctx context.Context, req domain.AnalysisRequest, in io.Reader, out io.Writer) error {
	model := o.modelFor(req)
	history := []oa.ChatCompletionMessageParamUnion{
		oa.SystemMessage(composeContext(req)),
	}

	return repl(ctx, in, out, func(ctx context.Context, message string) (string, error) {
		history = append(history, oa.UserMessage(message))
		reply, err := o.complete(ctx, model, history)
		if err != nil {
			history = history[:len(history)-1]
			return "", err
		}
		history = append(history, oa.AssistantMessage(reply))
		return reply, nil
	})
}

func (o *OpenAI) complete(ctx context.Context, model string, messages []oa.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := o.cli.Chat.Completions.New(ctx, oa.ChatCompletionNewParams{
		Model:    oa.ChatModel(model),
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("analyst.OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("analyst.OpenAI: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (o *OpenAI) modelFor(req domain.AnalysisRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return o.model
}
