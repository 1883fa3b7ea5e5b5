// Package persona supplies per-source default call parameters.
package persona

import (
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
)

// paramSchema bounds the override parameters a persona may set per source.
// Entries failing validation are dropped at construction so a bad tuning
// file cannot poison live calls.
var paramSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"temperature": {
			Type:    "number",
			Minimum: floatPtr(0),
			Maximum: floatPtr(2),
		},
		"top_p": {
			Type:    "number",
			Minimum: floatPtr(0),
			Maximum: floatPtr(1),
		},
		"max_tokens": {
			Type:    "integer",
			Minimum: floatPtr(1),
		},
		"system_suffix": {
			Type: "string",
		},
	},
	AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
}

// Overrides resolves default params by source name or family key. An
// absent lookup yields an empty map, never an error.
type Overrides struct {
	defaults map[string]map[string]any
}

// NewOverrides validates each entry against the parameter schema and keeps
// only the valid ones.
func NewOverrides(defaults map[string]map[string]any) *Overrides {
	kept := make(map[string]map[string]any, len(defaults))

	resolved, err := paramSchema.Resolve(nil)
	if err != nil {
		slog.Error("failed to resolve override param schema", "error", err.Error())
		return &Overrides{defaults: kept}
	}

	for source, params := range defaults {
		if len(params) == 0 {
			continue
		}
		if err := resolved.Validate(params); err != nil {
			slog.Warn("dropping invalid override params", "source", source, "error", err.Error())
			continue
		}
		kept[source] = params
	}
	return &Overrides{defaults: kept}
}

// Defaults returns a copy of the params registered for the given key.
func (o *Overrides) Defaults(source string) map[string]any {
	if o == nil {
		return map[string]any{}
	}
	params, ok := o.defaults[source]
	if !ok {
		return map[string]any{}
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

func floatPtr(v float64) *float64 {
	return &v
}
