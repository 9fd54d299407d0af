package pipeline

import (
	"fmt"

	"github.com/ngoclaw/orchestrator/internal/domain/entity"
	"github.com/xeipuuv/gojsonschema"
)

// RiskFlags is Classify's per-dimension risk assessment.
type RiskFlags struct {
	Spam          entity.RiskLevel `json:"spam"`
	Policy        entity.RiskLevel `json:"policy"`
	Hallucination entity.RiskLevel `json:"hallucination"`
}

// ClassifyResult is the Brain's structured decision for one turn.
type ClassifyResult struct {
	ThoughtProcess      string         `json:"thought_process"`
	SituationSummary    string         `json:"situation_summary"`
	IntentLevel         string         `json:"intent_level"`
	UserSentiment       string         `json:"user_sentiment"`
	RiskFlags           RiskFlags      `json:"risk_flags"`
	Action              string         `json:"action"`
	NewStage            string         `json:"new_stage"`
	ShouldRespond       bool           `json:"should_respond"`
	SelectedCTAID       string         `json:"selected_cta_id,omitempty"`
	CTAScheduledAt      string         `json:"cta_scheduled_at,omitempty"`
	FollowupInMinutes   int            `json:"followup_in_minutes"`
	FollowupReason      string         `json:"followup_reason"`
	Confidence          float64        `json:"confidence"`
	NeedsHumanAttention bool           `json:"needs_human_attention"`
}

// Stage returns the fuzzy-parsed new stage, falling back to fallback
// when Classify's output is unparseable (spec §9 enum-parsing rule).
func (r ClassifyResult) Stage(fallback entity.Stage) entity.Stage {
	return entity.ParseStage(r.NewStage, fallback)
}

// GenerateResult is the Mouth's self-checked reply draft.
type GenerateResult struct {
	MessageText      string   `json:"message_text"`
	MessageLanguage  string   `json:"message_language"`
	SelfCheckPassed  bool     `json:"self_check_passed"`
	Violations       []string `json:"violations"`
}

// SummarizeResult is the Memory's compacted rolling summary.
type SummarizeResult struct {
	UpdatedRollingSummary string `json:"updated_rolling_summary"`
}

const classifySchemaJSON = `{
  "type": "object",
  "required": ["action", "new_stage", "should_respond", "followup_in_minutes", "confidence", "needs_human_attention"],
  "properties": {
    "thought_process": {"type": "string"},
    "situation_summary": {"type": "string"},
    "intent_level": {"type": "string"},
    "user_sentiment": {"type": "string"},
    "risk_flags": {
      "type": "object",
      "properties": {
        "spam": {"type": "string"},
        "policy": {"type": "string"},
        "hallucination": {"type": "string"}
      }
    },
    "action": {"type": "string"},
    "new_stage": {"type": "string"},
    "should_respond": {"type": "boolean"},
    "selected_cta_id": {"type": "string"},
    "cta_scheduled_at": {"type": "string"},
    "followup_in_minutes": {"type": "integer"},
    "followup_reason": {"type": "string"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "needs_human_attention": {"type": "boolean"}
  }
}`

const generateSchemaJSON = `{
  "type": "object",
  "required": ["message_text", "self_check_passed"],
  "properties": {
    "message_text": {"type": "string"},
    "message_language": {"type": "string"},
    "self_check_passed": {"type": "boolean"},
    "violations": {"type": "array", "items": {"type": "string"}}
  }
}`

const summarizeSchemaJSON = `{
  "type": "object",
  "required": ["updated_rolling_summary"],
  "properties": {
    "updated_rolling_summary": {"type": "string"}
  }
}`

var (
	classifySchema  = mustLoadSchema(classifySchemaJSON)
	generateSchema  = mustLoadSchema(generateSchemaJSON)
	summarizeSchema = mustLoadSchema(summarizeSchemaJSON)
)

func mustLoadSchema(raw string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("pipeline: invalid embedded schema: %v", err))
	}
	return schema
}

// validateAgainst runs a compiled schema against raw JSON bytes, returning a
// single combined error describing every violation found.
func validateAgainst(schema *gojsonschema.Schema, raw []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("schema validation failed to run: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msg := "schema validation failed:"
	for _, e := range result.Errors() {
		msg += " " + e.String() + ";"
	}
	return fmt.Errorf(msg)
}
