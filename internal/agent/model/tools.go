package model

// ParamSpec describes one tool parameter.
type ParamSpec struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Items       string `json:"items,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// ReturnSpec describes what a tool returns.
type ReturnSpec struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ToolManifest is the declaration of a tool exposed to the agent model.
type ToolManifest struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Parameters  map[string]ParamSpec `json:"parameters"`
	Required    []string             `json:"required"`
	Returns     ReturnSpec           `json:"returns"`
}
