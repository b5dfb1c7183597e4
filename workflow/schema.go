package workflow

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// documentSchema is the JSON Schema for the caller-facing workflow document.
// Inputs and metadata are intentionally unconstrained: inputs may hold any
// literal or a "{{var}}" template, and metadata is opaque to the engine.
const documentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["nodes"],
  "properties": {
    "id": {"type": "string"},
    "name": {"type": "string"},
    "nodes": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "type"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {"type": "string", "minLength": 1},
          "position": {
            "type": "object",
            "properties": {
              "x": {"type": "number"},
              "y": {"type": "number"}
            }
          },
          "inputs": {"type": "object"},
          "metadata": {"type": "object"}
        }
      }
    },
    "connections": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["from", "to"],
        "properties": {
          "from": {"type": "string", "minLength": 1},
          "from_output": {"type": "string"},
          "to": {"type": "string", "minLength": 1},
          "to_input": {"type": "string"},
          "data_type": {"type": "string"}
        }
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(documentSchema))
		if err != nil {
			schemaErr = fmt.Errorf("parse workflow schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("workflow.json", doc); err != nil {
			schemaErr = fmt.Errorf("register workflow schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile("workflow.json")
	})
	return schema, schemaErr
}

// ValidateDocument checks a raw caller-facing workflow document against the
// document schema. The returned error carries the jsonschema validation
// detail so boundary handlers can surface it verbatim with a 400.
func ValidateDocument(raw []byte) error {
	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("workflow document is not valid JSON: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("invalid workflow document: %w", err)
	}
	return nil
}
