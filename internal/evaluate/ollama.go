package evaluate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Ollama is a TextCompletion backed by a local Ollama server.
type Ollama struct {
	baseURL string
	model   string
	http    *resty.Client
}

func NewOllama(baseURL, model string) *Ollama {
	return &Ollama{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		// Model inference on CPU can take minutes; no client timeout.
		http: resty.New(),
	}
}

// resultFormat asks the model for structured output matching Result.
var resultFormat = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"score":  map[string]any{"type": "number"},
		"reason": map[string]any{"type": "string"},
	},
	"required": []string{"score", "reason"},
}

// Complete sends a chat request and returns the raw assistant content.
func (o *Ollama) Complete(ctx context.Context, system, user string) (string, error) {
	body := map[string]any{
		"model": o.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"stream": false,
		"format": resultFormat,
	}

	var resp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	r, err := o.http.R().SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&resp).
		Post(o.baseURL + "/api/chat")
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	if r.IsError() {
		return "", fmt.Errorf("ollama chat: %s; body: %s", r.Status(), r.String())
	}
	return resp.Message.Content, nil
}

// IsRunning reports whether the Ollama server answers on /api/tags.
func (o *Ollama) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	r, err := o.http.R().SetContext(ctx).Get(o.baseURL + "/api/tags")
	return err == nil && !r.IsError()
}

// HasModel reports whether the configured model is present locally.
func (o *Ollama) HasModel(ctx context.Context) bool {
	var resp struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	r, err := o.http.R().SetContext(ctx).SetResult(&resp).Get(o.baseURL + "/api/tags")
	if err != nil || r.IsError() {
		return false
	}
	for _, m := range resp.Models {
		if m.Name == o.model || strings.HasPrefix(m.Name, o.model+":") {
			return true
		}
	}
	return false
}

// EnsureModel pulls the configured model when it is not already local.
func (o *Ollama) EnsureModel(ctx context.Context) error {
	if o.HasModel(ctx) {
		return nil
	}

	r, err := o.http.R().SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"name": o.model, "stream": false}).
		Post(o.baseURL + "/api/pull")
	if err != nil {
		return fmt.Errorf("pulling model %s: %w", o.model, err)
	}
	if r.IsError() {
		return fmt.Errorf("pull %s: %s; body: %s", o.model, r.Status(), r.String())
	}
	return nil
}
