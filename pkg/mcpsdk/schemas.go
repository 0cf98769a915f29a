package mcpsdk

import "github.com/google/jsonschema-go/jsonschema"

// noArgsSchema is the input schema of tools that take no arguments: an
// object that accepts no properties.
func noArgsSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:                 "object",
		Properties:           map[string]*jsonschema.Schema{},
		Required:             []string{},
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}
}
