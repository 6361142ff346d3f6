package commands

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/bdobrica/Shiori/internal/shiori/platform"
)

// Payload is the wire form of a structured interaction:
//
//	{"command": "shiori", "options": [{"name": "pin", "type": "subcommand_group",
//	  "options": [{"name": "remove", "type": "subcommand",
//	    "options": [{"name": "id", "type": "integer", "value": 3}]}]}]}
type Payload struct {
	Command string            `json:"command"`
	Options []platform.Option `json:"options"`
}

// Validator checks raw interaction payloads against a JSON schema compiled
// from the declared command trees.
type Validator struct {
	top    string
	schema *jsonschema.Schema
}

// NewValidator compiles a schema accepting payloads for the top-level
// command top whose single option is one of groups. Declared subcommands
// must carry their required leaves with values of the declared type;
// undeclared subcommands pass so the owning module can answer them.
func NewValidator(top string, groups []OptionSpec) (*Validator, error) {
	raw, err := json.Marshal(buildSchema(top, groups))
	if err != nil {
		return nil, fmt.Errorf("commands: encode schema: %w", err)
	}
	schema, err := jsonschema.CompileString("shiori-interaction.json", string(raw))
	if err != nil {
		return nil, fmt.Errorf("commands: compile schema: %w", err)
	}
	return &Validator{top: top, schema: schema}, nil
}

// Decode validates raw and returns the decoded payload.
func (v *Validator) Decode(raw []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return Payload{}, fmt.Errorf("commands: decode interaction: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return Payload{}, fmt.Errorf("commands: invalid interaction: %w", err)
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("commands: decode interaction: %w", err)
	}
	return p, nil
}

type schemaNode = map[string]any

func jsonType(t platform.OptionType) string {
	switch t {
	case platform.OptionInteger:
		return "integer"
	case platform.OptionBoolean:
		return "boolean"
	default:
		return "string"
	}
}

func optionNode(name string, typ platform.OptionType) schemaNode {
	return schemaNode{
		"type":     "object",
		"required": []string{"name", "type"},
		"properties": schemaNode{
			"name": schemaNode{"const": name},
			"type": schemaNode{"const": string(typ)},
		},
	}
}

func leafSchema(leaf OptionSpec) schemaNode {
	n := optionNode(leaf.Name, leaf.Type)
	n["required"] = []string{"name", "type", "value"}
	n["properties"].(schemaNode)["value"] = schemaNode{"type": jsonType(leaf.Type)}
	return n
}

func subcommandSchema(sub OptionSpec) schemaNode {
	n := optionNode(sub.Name, platform.OptionSubcommand)
	var leaves []any
	var required []any
	for _, leaf := range sub.Options {
		leaves = append(leaves, leafSchema(leaf))
		if leaf.Required {
			required = append(required, schemaNode{
				"contains": schemaNode{
					"type":       "object",
					"required":   []string{"name"},
					"properties": schemaNode{"name": schemaNode{"const": leaf.Name}},
				},
			})
		}
	}
	items := schemaNode{"type": "object"}
	if len(leaves) > 0 {
		items = schemaNode{"anyOf": leaves}
	}
	options := schemaNode{"type": "array", "items": items}
	if len(required) > 0 {
		options["allOf"] = required
	}
	n["properties"].(schemaNode)["options"] = options
	return n
}

func groupSchema(group OptionSpec) schemaNode {
	n := optionNode(group.Name, platform.OptionSubcommandGroup)
	var subs []any
	var names []any
	for _, sub := range group.Options {
		subs = append(subs, subcommandSchema(sub))
		names = append(names, sub.Name)
	}
	// Undeclared subcommands pass through to the module.
	unknown := schemaNode{
		"type":       "object",
		"required":   []string{"name"},
		"properties": schemaNode{"name": schemaNode{"type": "string"}},
	}
	if len(names) > 0 {
		unknown["properties"] = schemaNode{"name": schemaNode{"type": "string", "not": schemaNode{"enum": names}}}
	}
	subs = append(subs, unknown)
	n["properties"].(schemaNode)["options"] = schemaNode{
		"type":     "array",
		"maxItems": 1,
		"items":    schemaNode{"anyOf": subs},
	}
	return n
}

func buildSchema(top string, groups []OptionSpec) schemaNode {
	var alts []any
	for _, g := range groups {
		alts = append(alts, groupSchema(g))
	}
	items := schemaNode{"anyOf": alts}
	if len(alts) == 0 {
		items = schemaNode{"not": schemaNode{}}
	}
	return schemaNode{
		"$schema":  "https://json-schema.org/draft/2020-12/schema",
		"type":     "object",
		"required": []string{"command", "options"},
		"properties": schemaNode{
			"command": schemaNode{"const": top},
			"options": schemaNode{
				"type":     "array",
				"minItems": 1,
				"maxItems": 1,
				"items":    items,
			},
		},
	}
}
