package domain

// Category is a user-defined label grouping domains for shared rules and quotas.
type Category struct {
	Name  string `json:"name" validate:"required"`
	Color string `json:"color,omitempty"`
}
