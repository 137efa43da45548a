package invoice

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "invoice.json"

// BuildInvoiceJSONSchema returns the JSON-Schema (draft 2020-12) for an Invoice as a generic map.
// Every field is required; unknown keys are allowed and dropped on decode.
func BuildInvoiceJSONSchema() map[string]any {
	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"item_name":   map[string]any{"type": "string"},
			"quantity":    numberProp(),
			"unit_price":  numberProp(),
			"total_price": numberProp(),
		},
		"required": []string{"item_name", "quantity", "unit_price", "total_price"},
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"invoice_number": map[string]any{"type": "string"},
			"vendor_name":    map[string]any{"type": "string"},
			"invoice_date":   map[string]any{"type": "string"},
			"total_amount":   numberProp(),
			"tax_amount":     numberProp(),
			"items": map[string]any{
				"type":  "array",
				"items": item,
			},
		},
		"required": []string{"invoice_number", "vendor_name", "invoice_date", "total_amount", "tax_amount", "items"},
	}
}

// numberProp accepts a JSON number or a decimal string such as "150.50",
// "12." or "1e3". Hex, inf and NaN are refused.
func numberProp() map[string]any {
	return map[string]any{
		"type":    []string{"number", "string"},
		"pattern": `^\s*[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?\s*$`,
	}
}

// Validator checks extracted objects against the invoice schema
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the invoice schema
func NewValidator() (*Validator, error) {
	b, err := json.Marshal(BuildInvoiceJSONSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate checks m against the schema and decodes it into an Invoice
func (v *Validator) Validate(m map[string]any) (Invoice, error) {
	if err := v.schema.Validate(m); err != nil {
		return Invoice{}, fmt.Errorf("json does not match schema: %w", err)
	}

	b, err := json.Marshal(m)
	if err != nil {
		return Invoice{}, fmt.Errorf("marshal extracted object: %w", err)
	}
	var inv Invoice
	if err := json.Unmarshal(b, &inv); err != nil {
		return Invoice{}, fmt.Errorf("decode invoice: %w", err)
	}
	if inv.Items == nil {
		inv.Items = []LineItem{}
	}
	return inv, nil
}
