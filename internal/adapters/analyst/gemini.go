package analyst

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
	"google.golang.org/genai"
)

// DefaultGeminiModel es el modelo por defecto del proveedor Gemini.
const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini implementa ports.Analyst sobre la API de Gemini.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini crea el cliente. baseURL vacío usa el endpoint público.
func NewGemini(ctx context.Context, apiKey, model, baseURL string) (*Gemini, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("analyst.NewGemini: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Name() string { return "Gemini" }

// Analyze genera el informe con una única llamada generateContent.
func (g *Gemini) Analyze(ctx context.Context, req domain.AnalysisRequest) (string, error) {
	model := g.modelFor(req)
	slog.Info("requesting analysis", "provider", "gemini", "model", model, "documents", len(req.Documents))

	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(composeContext(req)), nil)
	if err != nil {
		return "", fmt.Errorf("analyst.Gemini.Analyze: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("analyst.Gemini.Analyze: empty response")
	}
	return text, nil
}

// Converse abre un chat con el contexto como instrucción de sistema.
func (g *Gemini) Converse(ctx context.Context, req domain.AnalysisRequest, in io.Reader, out io.Writer) error {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: composeContext(req)}}},
	}
	chat, err := g.client.Chats.Create(ctx, g.modelFor(req), cfg, nil)
	if err != nil {
		return fmt.Errorf("analyst.Gemini.Converse: create chat: %w", err)
	}

	return repl(ctx, in, out, func(ctx context.Context, message string) (string, error) {
		resp, err := chat.Send(ctx, &genai.Part{Text: message})
		if err != nil {
			return "", fmt.Errorf("analyst.Gemini.Converse: %w", err)
		}
		return resp.Text(), nil
	})
}

func (g *Gemini) modelFor(req domain.AnalysisRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return g.model
}
