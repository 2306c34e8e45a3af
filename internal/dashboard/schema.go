package dashboard

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// ControlRequestSchema describes the shape handleControl expects,
// reflected from the supervisor's typed request structs so the
// dashboard can self-document its control API (served from
// /api/control/schema) without hand-maintaining a second copy of the
// field list.
func ControlRequestSchema(sample interface{}) (map[string]interface{}, error) {
	reflector := jsonschema.Reflector{}
	schema := reflector.Reflect(sample)

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshaling control request schema: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshaling control request schema: %w", err)
	}
	return out, nil
}
