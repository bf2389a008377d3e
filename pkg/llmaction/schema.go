package llmaction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/lineagekit/discovery/pkg/models"
	jsonschemavalidate "github.com/santhosh-tekuri/jsonschema/v5"
)

// extractionSchema is generated once from models.ExtractionResult (invopop's
// reflector walks the Go struct tags) and compiled once with santhosh-tekuri
// for repeated validation. This is the final integrity gate after schema
// repair: repair fixes the *shape* (aliases, missing lists); this catches
// anything repair didn't, e.g. a field value of the wrong JSON type.
var (
	extractionSchema     *jsonschemavalidate.Schema
	extractionSchemaOnce sync.Once
	extractionSchemaErr  error
)

const extractionSchemaURL = "https://lineagekit.internal/schemas/extraction-result.json"

func compiledExtractionSchema() (*jsonschemavalidate.Schema, error) {
	extractionSchemaOnce.Do(func() {
		reflector := &jsonschema.Reflector{DoNotReference: true}
		raw := reflector.Reflect(&models.ExtractionResult{})
		doc, err := json.Marshal(raw)
		if err != nil {
			extractionSchemaErr = fmt.Errorf("marshal reflected schema: %w", err)
			return
		}

		compiler := jsonschemavalidate.NewCompiler()
		if err := compiler.AddResource(extractionSchemaURL, bytes.NewReader(doc)); err != nil {
			extractionSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile(extractionSchemaURL)
		if err != nil {
			extractionSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}
		extractionSchema = schema
	})
	return extractionSchema, extractionSchemaErr
}

// validateExtraction checks a repaired ExtractionResult against the
// reflected struct schema, catching shape errors that alias-coercion
// doesn't (e.g. wrong value types surviving the repair pass).
func validateExtraction(result *models.ExtractionResult) error {
	schema, err := compiledExtractionSchema()
	if err != nil {
		return fmt.Errorf("load extraction schema: %w", err)
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal extraction result: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode extraction result: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
