package agent

import (
	"fmt"

	"github.com/xenking/salesvoice/internal/llm"
)

// ToolName identifies an operation the model can invoke.
type ToolName string

const (
	SearchProducts ToolName = "search_products"
	CreateOrder    ToolName = "create_order"
	ConfirmOrder   ToolName = "confirm_order"
)

// ToolNames lists every supported tool in the order they are offered.
var ToolNames = []ToolName{SearchProducts, CreateOrder, ConfirmOrder}

// UnknownToolError is returned for a tool name the agent does not provide.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// ParseToolName maps a tool name requested by the model to a ToolName.
func ParseToolName(s string) (ToolName, error) {
	switch n := ToolName(s); n {
	case SearchProducts, CreateOrder, ConfirmOrder:
		return n, nil
	default:
		return "", &UnknownToolError{Name: s}
	}
}

// Tools returns the declarations advertised to the model.
func Tools() []llm.Tool {
	return []llm.Tool{
		{
			Name:        string(SearchProducts),
			Description: "Search for products in the catalog based on name, category or price.",
			Parameters: []byte(`{
				"type": "object",
				"properties": {
					"query": {
						"type": "string",
						"description": "The name or category of product to search for (e.g., 'Coca Cola', 'Drinks')."
					},
					"max_price": {
						"type": "number",
						"description": "The maximum price of the product."
					}
				},
				"required": []
			}`),
		},
		{
			Name:        string(CreateOrder),
			Description: "Create an order for a product.",
			Parameters: []byte(`{
				"type": "object",
				"properties": {
					"product_id": {
						"type": "string",
						"description": "The ID of the product to order."
					},
					"quantity": {
						"type": "integer",
						"description": "The quantity to order."
					}
				},
				"required": ["product_id", "quantity"]
			}`),
		},
		{
			Name:        string(ConfirmOrder),
			Description: "Confirm the order and finalize the purchase. Only call this when the customer explicitly asks to finalize.",
			Parameters: []byte(`{
				"type": "object",
				"properties": {
					"confirmed": {
						"type": "boolean",
						"description": "Whether to confirm the order."
					}
				},
				"required": []
			}`),
		},
	}
}
