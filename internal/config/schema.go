package config

import (
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// pipelineSchema is the structural contract of a pipeline document.
// Unknown properties are deliberately allowed everywhere: forward
// compatibility keeps them in the parsed tree without interpreting them.
const pipelineSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "blocks"],
  "properties": {
    "version": { "type": ["string", "number"] },
    "name": { "type": "string" },
    "agent": { "$ref": "#/definitions/agent" },
    "blocks": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "task"],
        "properties": {
          "name": { "type": "string", "minLength": 1 },
          "agent": { "$ref": "#/definitions/agent" },
          "task": {
            "type": "object",
            "required": ["jobs"],
            "properties": {
              "prologue": {
                "type": "object",
                "properties": {
                  "commands": { "type": "array", "items": { "type": "string" } }
                }
              },
              "jobs": {
                "type": "array",
                "minItems": 1,
                "items": {
                  "type": "object",
                  "required": ["name", "commands"],
                  "properties": {
                    "name": { "type": "string", "minLength": 1 },
                    "commands": {
                      "type": "array",
                      "minItems": 1,
                      "items": { "type": "string" }
                    }
                  }
                }
              }
            }
          }
        }
      }
    }
  },
  "definitions": {
    "agent": {
      "type": "object",
      "required": ["machine"],
      "properties": {
        "machine": {
          "type": "object",
          "required": ["type"],
          "properties": {
            "type": { "type": "string", "minLength": 1 },
            "os_image": { "type": "string" }
          }
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// compileSchema compiles the embedded pipeline schema exactly once.
func compileSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = jsonschema.CompileString("pipeline.schema.json", pipelineSchema)
	})
	return compiledSchema, schemaErr
}

// validateSchema checks a decoded YAML document against the pipeline schema.
func validateSchema(doc interface{}) error {
	schema, err := compileSchema()
	if err != nil {
		return fmt.Errorf("failed to compile pipeline schema: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			leaf := leafCause(ve)
			return &ConfigError{
				Reason:   leaf.Message,
				Location: instancePath(leaf.InstanceLocation),
			}
		}
		return &ConfigError{Reason: err.Error()}
	}

	return nil
}

// leafCause walks to the most specific cause of a validation error.
func leafCause(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}

// instancePath renders a JSON-pointer instance location as a readable
// document path, e.g. "/blocks/0/task" -> "blocks/0/task".
func instancePath(loc string) string {
	if loc == "" || loc == "/" {
		return "document"
	}
	if loc[0] == '/' {
		return loc[1:]
	}
	return loc
}
