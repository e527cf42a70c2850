package types

// ComponentAccess pairs an application component with an access level.
// Query results for component access mappings are sets of these.
type ComponentAccess struct {
	Component   string `json:"component"`
	AccessLevel string `json:"access_level"`
}

// EntityRef identifies an entity within its entity type
type EntityRef struct {
	Type   string `json:"type"`
	Entity string `json:"entity"`
}
