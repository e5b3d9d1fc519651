// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm wraps the text-generation collaborator: a completion call that
// takes a prompt and a token budget and returns unstructured text.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/foursight/internal/httputil"
	"github.com/pdiddy/foursight/pkg/types"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultModel is used when AIConfig.Model is empty.
const DefaultModel = "gemini-2.5-flash"

// DefaultMaxTokens is the completion budget when callers pass zero.
const DefaultMaxTokens = 256

// ErrNoAPIKey is returned by NewGenAI when no credential is configured.
var ErrNoAPIKey = errors.New("llm: API key is required")

// ErrEmptyCompletion is returned when the model produced no text.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// Completer produces text for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return f(ctx, prompt, maxTokens)
}

// generateFunc is the single SDK call GenAI depends on; tests replace it.
type generateFunc func(ctx context.Context, model, prompt string, maxTokens int32) (string, error)

// GenAI completes prompts with Google's Gemini API.
type GenAI struct {
	model      string
	maxRetries int
	generate   generateFunc
	log        *zap.Logger
}

// NewGenAI creates a Gemini-backed completer from cfg.
func NewGenAI(ctx context.Context, cfg types.AIConfig, log *zap.Logger) (*GenAI, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating GenAI client: %w", err)
	}

	generate := func(ctx context.Context, model, prompt string, maxTokens int32) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
			MaxOutputTokens: maxTokens,
		})
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
	return newGenAI(cfg, generate, log), nil
}

func newGenAI(cfg types.AIConfig, generate generateFunc, log *zap.Logger) *GenAI {
	if log == nil {
		log = zap.NewNop()
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &GenAI{
		model:      model,
		maxRetries: cfg.MaxRetries,
		generate:   generate,
		log:        log.Named("llm"),
	}
}

// Model returns the model name used for completions.
func (g *GenAI) Model() string { return g.model }

// Complete sends prompt to the model with up to maxTokens output tokens.
// Rate limits and server errors are retried through httputil.Retry.
func (g *GenAI) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	var text string
	err := httputil.Retry(ctx, g.maxRetries, func(ctx context.Context) error {
		out, err := g.generate(ctx, g.model, prompt, int32(maxTokens))
		if err != nil {
			return classify(err)
		}
		text = strings.TrimSpace(out)
		return nil
	})
	if err != nil {
		g.log.Debug("completion failed", zap.String("model", g.model), zap.Error(err))
		return "", fmt.Errorf("completing with %s: %w", g.model, err)
	}
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// classify maps SDK errors onto the httputil retry taxonomy.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", apiErr.Message, &httputil.StatusError{Code: apiErr.Code, Body: apiErr.Status})
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return fmt.Errorf("%s: %w", apiErrPtr.Message, &httputil.StatusError{Code: apiErrPtr.Code, Body: apiErrPtr.Status})
	}
	return err
}
