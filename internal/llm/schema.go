package llm

// JSONSchema is the subset of JSON Schema used for tool parameters.
type JSONSchema struct {
	Type                 string                 `json:"type"`
	Description          string                 `json:"description,omitempty"`
	Properties           map[string]*JSONSchema `json:"properties,omitempty"`
	Required             []string               `json:"required,omitempty"`
	Enum                 []string               `json:"enum,omitempty"`
	Items                *JSONSchema            `json:"items,omitempty"`
	AdditionalProperties *bool                  `json:"additionalProperties,omitempty"`
}

// ObjectSchema builds a closed object schema.
func ObjectSchema(desc string, props map[string]*JSONSchema, required ...string) *JSONSchema {
	closed := false
	if props == nil {
		props = map[string]*JSONSchema{}
	}
	return &JSONSchema{
		Type:                 "object",
		Description:          desc,
		Properties:           props,
		Required:             required,
		AdditionalProperties: &closed,
	}
}

func StringProp(desc string) *JSONSchema { return &JSONSchema{Type: "string", Description: desc} }
func NumberProp(desc string) *JSONSchema { return &JSONSchema{Type: "number", Description: desc} }
func IntProp(desc string) *JSONSchema    { return &JSONSchema{Type: "integer", Description: desc} }
func BoolProp(desc string) *JSONSchema   { return &JSONSchema{Type: "boolean", Description: desc} }

func EnumProp(desc string, values ...string) *JSONSchema {
	return &JSONSchema{Type: "string", Description: desc, Enum: values}
}

func ArrayProp(desc string, items *JSONSchema) *JSONSchema {
	return &JSONSchema{Type: "array", Description: desc, Items: items}
}
