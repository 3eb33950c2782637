package tools

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateSchema derives the JSON Schema offered to the model from an input
// struct. Field descriptions come from `jsonschema_description` tags; fields
// without omitempty are required.
func GenerateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)

	raw, err := json.Marshal(schema)
	if err != nil {
		panic("tools: marshal schema: " + err.Error())
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		panic("tools: unmarshal schema: " + err.Error())
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}
