package models

// Category groups templates inside a workspace. SubCategories are a
// flat string set with no further nesting; entries are append-only
// unless explicitly removed by an authorized action.
type Category struct {
	ID            string   `json:"id"`
	WorkspaceID   string   `json:"workspaceId"`
	Name          string   `json:"name"`
	SubCategories []string `json:"subCategories"`
}

// HasSubCategory reports whether the flat set already contains name.
func (c *Category) HasSubCategory(name string) bool {
	for _, s := range c.SubCategories {
		if s == name {
			return true
		}
	}
	return false
}
