package schema

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/user/infercore/internal/errors"
)

// ValidateAndRepair turns raw model text into a validated value against the
// target schema. Parse and validation failures surface as typed parse errors
// carrying the raw text, the pre-repair parsed value and the failure detail;
// invalid data is never silently accepted or defaulted.
func ValidateAndRepair(text string, schemaMap map[string]interface{}, schemaName string) (interface{}, error) {
	raw, err := Extract(text)
	if err != nil {
		return nil, errors.NewParseError(text, nil, err.Error(), err)
	}

	parsed, err := parseOrdered(raw)
	if err != nil {
		return nil, errors.NewParseError(text, nil, fmt.Sprintf("invalid JSON: %v", err), err)
	}
	preRepair := toPlain(parsed)

	repaired := toPlain(Repair(parsed, schemaMap))

	compiled, err := compile(schemaMap, schemaName)
	if err != nil {
		return nil, errors.WrapError(err, "Invalid output schema", errors.ExitValidationError)
	}

	if err := compiled.Validate(repaired); err != nil {
		return nil, errors.NewParseError(text, preRepair, err.Error(), err)
	}
	return repaired, nil
}

// compile builds a validator from the in-memory schema document
func compile(schemaMap map[string]interface{}, schemaName string) (*jsonschema.Schema, error) {
	if schemaName == "" {
		schemaName = "output"
	}
	doc, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, err
	}
	return jsonschema.CompileString(schemaName+".schema.json", string(doc))
}
