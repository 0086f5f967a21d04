package tools

import (
	"fmt"
	"math"

	"github.com/cloudwego/eino/schema"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
)

const (
	ToolItemSearch   = "get_formatted_item_context"
	ToolReviewSearch = "get_formatted_reviews_context"
)

var paramTypes = map[string]schema.DataType{
	"string":  schema.String,
	"integer": schema.Integer,
	"number":  schema.Number,
	"boolean": schema.Boolean,
	"array":   schema.Array,
	"object":  schema.Object,
}

// ItemSearchManifest declares the item search tool.
func ItemSearchManifest(defaultTopK int) model.ToolManifest {
	return model.ToolManifest{
		Name: ToolItemSearch,
		Description: "Search the product catalog with a free-text query. Returns one line per item " +
			"in rank order formatted as '- <id>, price: <price>, <description>'. Use it whenever the " +
			"user asks about products, and quote the ids exactly when referencing items.",
		Parameters: map[string]model.ParamSpec{
			"query": {
				Type:        "string",
				Description: "What the user is looking for, e.g. 'red running shoes under 50 dollars'.",
			},
			"top_k": {
				Type:        "integer",
				Description: "How many items to return.",
				Default:     float64(defaultTopK),
			},
		},
		Required: []string{"query"},
		Returns: model.ReturnSpec{
			Type:        "string",
			Description: "Newline separated item lines, best match first.",
		},
	}
}

// ReviewSearchManifest declares the review search tool. It is meant to be
// chained after item search with the ids it returned.
func ReviewSearchManifest(defaultTopK int) model.ToolManifest {
	return model.ToolManifest{
		Name: ToolReviewSearch,
		Description: "Search customer reviews of specific items. Pass the item ids obtained from " +
			ToolItemSearch + ". Returns one line per review formatted as '- <review id>, <review text>'.",
		Parameters: map[string]model.ParamSpec{
			"query": {
				Type:        "string",
				Description: "What to look for in the reviews, e.g. 'comfortable for long runs'.",
			},
			"item_list": {
				Type:        "array",
				Items:       "string",
				Description: "Item ids to restrict the reviews to.",
			},
			"top_k": {
				Type:        "integer",
				Description: "How many reviews to return.",
				Default:     float64(defaultTopK),
			},
		},
		Required: []string{"query", "item_list"},
		Returns: model.ReturnSpec{
			Type:        "string",
			Description: "Newline separated review lines, best match first.",
		},
	}
}

// ValidateManifests checks a manifest set before it is exposed to the model.
func ValidateManifests(manifests []model.ToolManifest) error {
	seen := make(map[string]bool, len(manifests))
	for _, m := range manifests {
		if m.Name == "" {
			return fmt.Errorf("tool manifest without name")
		}
		if seen[m.Name] {
			return fmt.Errorf("duplicate tool %q", m.Name)
		}
		seen[m.Name] = true
		if m.Description == "" {
			return fmt.Errorf("tool %q: description is required", m.Name)
		}
		for _, r := range m.Required {
			if _, ok := m.Parameters[r]; !ok {
				return fmt.Errorf("tool %q: required parameter %q is not declared", m.Name, r)
			}
		}
		for name, p := range m.Parameters {
			if _, ok := paramTypes[p.Type]; !ok {
				return fmt.Errorf("tool %q: parameter %q has unknown type %q", m.Name, name, p.Type)
			}
			if p.Type == "array" {
				if _, ok := paramTypes[p.Items]; !ok {
					return fmt.Errorf("tool %q: parameter %q has unknown item type %q", m.Name, name, p.Items)
				}
			}
			if p.Default != nil && !defaultMatches(p.Type, p.Default) {
				return fmt.Errorf("tool %q: default of %q does not match type %s", m.Name, name, p.Type)
			}
		}
	}
	return nil
}

func defaultMatches(typ string, v any) bool {
	switch typ {
	case "string":
		_, ok := v.(string)
		return ok
	case "integer":
		switch n := v.(type) {
		case int, int32, int64:
			return true
		case float64:
			// JSON numbers decode as float64
			return n == math.Trunc(n)
		}
		return false
	case "number":
		switch v.(type) {
		case int, int32, int64, float32, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "array":
		switch v.(type) {
		case []string, []any:
			return true
		}
		return false
	case "object":
		_, ok := v.(map[string]any)
		return ok
	}
	return false
}

// toolInfo converts a manifest into the eino tool description.
func toolInfo(m model.ToolManifest) *schema.ToolInfo {
	required := make(map[string]bool, len(m.Required))
	for _, r := range m.Required {
		required[r] = true
	}
	params := make(map[string]*schema.ParameterInfo, len(m.Parameters))
	for name, p := range m.Parameters {
		info := &schema.ParameterInfo{
			Type:     paramTypes[p.Type],
			Desc:     p.Description,
			Required: required[name],
		}
		if p.Type == "array" {
			info.ElemInfo = &schema.ParameterInfo{Type: paramTypes[p.Items]}
		}
		params[name] = info
	}
	return &schema.ToolInfo{
		Name:        m.Name,
		Desc:        m.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}
}
