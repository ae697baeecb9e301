package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// analysisSchema is the wire contract for the model's JSON payload. The LLM
// output gets no correctness guarantee, so shape validation is the one line
// of defense before the result reaches history and the UI.
const analysisSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["grammar_corrections", "fluency_score"],
  "properties": {
    "grammar_corrections": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["original", "correction"],
        "properties": {
          "original": {"type": "string"},
          "correction": {"type": "string"},
          "explanation": {"type": "string"}
        }
      }
    },
    "fluency_score": {"type": "integer", "minimum": 0, "maximum": 100},
    "tips": {"type": "array", "items": {"type": "string"}},
    "positive_feedback": {"type": "string"},
    "reply": {"type": ["string", "null"]}
  }
}`

var compiledAnalysisSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("analysis.schema.json", strings.NewReader(analysisSchema)); err != nil {
		panic(err)
	}
	return c.MustCompile("analysis.schema.json")
}

// ValidateAnalysisPayload checks raw JSON against the analysis contract.
func ValidateAnalysisPayload(content []byte) error {
	var value interface{}
	if err := json.Unmarshal(content, &value); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return compiledAnalysisSchema.Validate(value)
}
