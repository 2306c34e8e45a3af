package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/mark3labs/mcp-go/mcp"
)

// SynthesizeArguments asks the LLM to produce a JSON argument object
// for tool satisfying query, validates the result's type and shape
// against the tool's declared input schema, and retries once — with
// the validator's complaint appended to the prompt — before giving up.
func (p *Pipeline) SynthesizeArguments(ctx context.Context, query string, tool mcp.Tool) (map[string]interface{}, error) {
	system := "You produce a single JSON object of arguments for calling a tool, matching its JSON Schema exactly. " +
		"Reply with the JSON object only, no prose, no code fences."
	user := fmt.Sprintf("Request: %s\nTool: %s\nDescription: %s\nInput schema: %s",
		query, tool.Name, tool.Description, string(tool.RawInputSchema))

	args, err := p.synthesizeOnce(ctx, system, user, tool.RawInputSchema)
	if err == nil {
		return args, nil
	}

	retryUser := fmt.Sprintf("%s\n\nYour previous reply was rejected: %v\nReply again with corrected JSON only.", user, err)
	args, retryErr := p.synthesizeOnce(ctx, system, retryUser, tool.RawInputSchema)
	if retryErr != nil {
		return nil, fmt.Errorf("synthesized arguments failed validation after retry: %w", retryErr)
	}
	return args, nil
}

// synthesizeOnce runs one LLM completion and validates its JSON output
// against rawSchema, without retrying.
func (p *Pipeline) synthesizeOnce(ctx context.Context, system, user string, rawSchema json.RawMessage) (map[string]interface{}, error) {
	reply, err := p.llm.Complete(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("synthesizing arguments: %w", err)
	}

	reply = strings.TrimSpace(strings.Trim(reply, "`"))
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(reply), &args); err != nil {
		return nil, fmt.Errorf("parsing synthesized arguments: %w", err)
	}

	if err := validateAgainstSchema(args, rawSchema); err != nil {
		return nil, err
	}
	return args, nil
}

// validateAgainstSchema decodes rawSchema into invopop/jsonschema's own
// Schema struct — the same type C10's dashboard self-doc endpoint
// reflects Go structs into — and walks it recursively against args,
// checking each property's declared type, not just presence. invopop/jsonschema
// generates schemas from Go structs; it has no Validate method, so the
// walk below is hand-written against its Schema shape.
func validateAgainstSchema(args map[string]interface{}, rawSchema json.RawMessage) error {
	if len(rawSchema) == 0 {
		return nil
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(rawSchema, &schema); err != nil {
		return fmt.Errorf("decoding schema: %w", err)
	}
	return validateValue(anyMap(args), &schema, "")
}

func anyMap(args map[string]interface{}) interface{} {
	return args
}

// validateValue checks value's shape against schema, recursing into
// object properties and array items. path is the dotted location used
// in error messages.
func validateValue(value interface{}, schema *jsonschema.Schema, path string) error {
	if schema == nil {
		return nil
	}

	if err := checkType(value, schema.Type, path); err != nil {
		return err
	}

	switch schema.Type {
	case "object", "":
		obj, ok := value.(map[string]interface{})
		if !ok {
			return nil
		}
		for _, field := range schema.Required {
			if _, present := obj[field]; !present {
				return fmt.Errorf("missing required field %q", joinPath(path, field))
			}
		}
		if schema.Properties != nil {
			for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
				name, propSchema := pair.Key, pair.Value
				v, present := obj[name]
				if !present {
					continue
				}
				if err := validateValue(v, propSchema, joinPath(path, name)); err != nil {
					return err
				}
			}
		}

	case "array":
		arr, ok := value.([]interface{})
		if !ok {
			return nil
		}
		if schema.Items != nil {
			for i, item := range arr {
				if err := validateValue(item, schema.Items, fmt.Sprintf("%s[%d]", path, i)); err != nil {
					return err
				}
			}
		}
	}

	if len(schema.Enum) > 0 && !enumContains(schema.Enum, value) {
		return fmt.Errorf("field %q: value %v is not one of the allowed enum values", path, value)
	}

	return nil
}

// checkType enforces JSON Schema's primitive type names against value's
// decoded Go type. An empty typeName (schema silent on type) always
// passes.
func checkType(value interface{}, typeName, path string) error {
	if typeName == "" || value == nil {
		return nil
	}
	ok := false
	switch typeName {
	case "object":
		_, ok = value.(map[string]interface{})
	case "array":
		_, ok = value.([]interface{})
	case "string":
		_, ok = value.(string)
	case "number":
		_, ok = value.(float64)
	case "integer":
		f, isFloat := value.(float64)
		ok = isFloat && f == float64(int64(f))
	case "boolean":
		_, ok = value.(bool)
	default:
		return nil
	}
	if !ok {
		return fmt.Errorf("field %q: expected type %q, got %T", path, typeName, value)
	}
	return nil
}

func enumContains(enum []interface{}, value interface{}) bool {
	for _, e := range enum {
		if fmt.Sprintf("%v", e) == fmt.Sprintf("%v", value) {
			return true
		}
	}
	return false
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}
