package evaluate

import (
	"context"
	"fmt"
	"log/slog"
)

// Result is the outcome of scoring one translation. Suggestion is optional;
// the model is only asked for score and reason, but a backend may volunteer
// a rewrite.
type Result struct {
	Score      float64 `json:"score"`
	Reason     string  `json:"reason"`
	Suggestion string  `json:"suggestion,omitempty"`
}

// TextCompletion produces a completion for a system+user prompt pair. The
// server wires in either the local Ollama model or the stub, depending on
// the model download setting.
type TextCompletion interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

const systemPrompt = `You are a professional translation reviewer. ` +
	`Evaluate how well the translated text conveys the source text: accuracy, fluency and tone. ` +
	`Respond with a JSON object containing "score" (a number from 0 to 100) and "reason" (a short explanation). ` +
	`Respond with JSON only.`

// Evaluator scores source/translation pairs with a language model. Scoring
// never fails: model and parse errors become a zero score with a diagnostic
// reason so review flows keep moving.
type Evaluator struct {
	llm TextCompletion
	log *slog.Logger
}

func New(llm TextCompletion, log *slog.Logger) *Evaluator {
	return &Evaluator{llm: llm, log: log}
}

// Evaluate scores one translation of source into the target locale.
func (e *Evaluator) Evaluate(ctx context.Context, source, translation, locale string) Result {
	user := fmt.Sprintf("Source text: %s\nTranslated text (%s): %s", source, locale, translation)

	raw, err := e.llm.Complete(ctx, systemPrompt, user)
	if err != nil {
		e.log.Warn("completion failed", "error", err)
		return Result{Score: 0, Reason: fmt.Sprintf("evaluation failed: %v", err)}
	}

	res := ParseResult(raw)
	res.Score = clampScore(res.Score)
	return res
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// Stub is a TextCompletion that returns a fixed neutral verdict. It serves
// requests when no local model is available.
type Stub struct{}

func (Stub) Complete(ctx context.Context, system, user string) (string, error) {
	return `{"score": 50, "reason": "Model evaluation is not enabled; returning a neutral placeholder score.", "suggestion": "Enable the local model to get a real evaluation."}`, nil
}
