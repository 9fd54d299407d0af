// Package pipeline implements the three-stage LLM reasoning pipeline
// (Classify → Generate → Summarize) described in spec §4.C: retrying,
// JSON-extracting, schema-validating wrappers around a raw completion
// provider. The provider itself is a named interface boundary — concrete
// adapters (Anthropic, OpenAI) live in internal/infrastructure/llmclient.
package pipeline

import "context"

// Prompt is a single completion request sent to a provider. System and
// User are kept separate so adapters can map them onto whatever message
// shape their SDK expects.
type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// RawCompletion is a provider's unprocessed text response, plus whatever
// the provider returned when generation failed partway through — spec
// §4.C's "failed_generation payload" retry hook.
type RawCompletion struct {
	Text             string
	FailedGeneration string
}

// Provider is the out-of-scope LLM wire boundary (spec §1). Implementations
// must respect ctx's deadline; pipeline stages set a 15s hard deadline per
// call (spec §5).
type Provider interface {
	Complete(ctx context.Context, prompt Prompt) (RawCompletion, error)
}
