// Package extract turns raw conversational turns into structured intents
// and profile deltas via the external extraction collaborator, and hosts the
// bus-driven analyzer that orchestrates one turn's NLP pipeline.
package extract

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/yalor/ace/internal/bus"
	"github.com/yalor/ace/internal/llm"
	"github.com/yalor/ace/internal/profile"
)

const extractionTimeout = 3 * time.Second

// Chatter is the interface for chat completion against the inference
// endpoint.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []llm.Message, jsonSchema *llm.Schema) (string, error)
}

// Result is the structured extraction output for one turn. A zero Result
// means "no commercial signal this turn".
type Result struct {
	Intents     []bus.Intent       `json:"intents"`
	Delta       profile.Delta      `json:"profile_delta"`
	Confidences map[string]float64 `json:"confidence_scores"`
	Confidence  float64            `json:"confidence"` // 0-100 extraction confidence
}

// Extractor is the extraction collaborator contract: given a session and a
// recent-history digest, return intents and a profile delta.
type Extractor interface {
	Extract(ctx context.Context, sessionID, historyDigest string) Result
}

// LLMExtractor implements Extractor against a structured-output LLM.
type LLMExtractor struct {
	client Chatter
	model  string
}

// NewLLMExtractor creates an LLMExtractor using the given client and model
// name.
func NewLLMExtractor(client Chatter, model string) *LLMExtractor {
	return &LLMExtractor{client: client, model: model}
}

// Extract analyses the history digest and returns a structured Result. On
// any failure (timeout, malformed JSON, inference error) it returns a zero
// Result: the pipeline degrades, it never blocks on extraction failures.
func (e *LLMExtractor) Extract(ctx context.Context, sessionID, historyDigest string) Result {
	if historyDigest == "" {
		return Result{}
	}

	ctx, cancel := context.WithTimeout(ctx, extractionTimeout)
	defer cancel()

	raw, err := e.client.Chat(ctx, e.model, BuildPrompt(historyDigest), resultSchema())
	if err != nil {
		slog.Warn("intent extraction chat failed", "session_id", sessionID, "error", err)
		return Result{}
	}

	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		slog.Warn("failed to unmarshal extraction result", "session_id", sessionID, "error", err, "response", raw)
		return Result{}
	}
	return result
}

// resultSchema returns the JSON schema for structured extraction output.
func resultSchema() *llm.Schema {
	return &llm.Schema{
		Type: "object",
		Properties: map[string]llm.SchemaProperty{
			"intents": {
				Type:        "array",
				Description: "Commercial intents found this turn, most recent first; empty if none",
				Items: &llm.Schema{
					Type: "object",
					Properties: map[string]llm.SchemaProperty{
						"type":       {Type: "string", Description: "DIRECT if explicitly stated, LATENT if implied"},
						"timing":     {Type: "string", Description: "IMMEDIATE if the need is now, DEFERRED otherwise"},
						"topic":      {Type: "string", Description: "Short phrase describing the intent, e.g. 'Looking for BBQ meats'"},
						"evidence":   {Type: "array", Description: "Exact substrings from the user's message proving the intent"},
						"confidence": {Type: "number", Description: "Per-intent confidence 0-100"},
					},
					Required: []string{"type", "timing", "topic", "evidence", "confidence"},
				},
			},
			"profile_delta": {
				Type:        "object",
				Description: "Traits inferable from this turn; omit fields with no new information",
			},
			"confidence_scores": {
				Type:        "object",
				Description: "Per-trait confidence 0.0-1.0 for each populated delta field",
			},
			"confidence": {Type: "number", Description: "Overall extraction confidence 0-100"},
		},
		Required: []string{"intents", "confidence"},
	}
}
