package rbac

// Resources guarded by the administration application.
const (
	ResourceUser       = "user"
	ResourceRole       = "role"
	ResourcePermission = "permission"
	ResourceRoute      = "route"
	ResourceNews       = "news"
	ResourceSetting    = "setting"
)

// CatalogEntry is a seedable catalog item.
type CatalogEntry struct {
	Resource    string
	Action      Action
	Description string
}

// DefaultCatalog lists the permissions every installation starts with.
func DefaultCatalog() []CatalogEntry {
	crud := []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage}
	resources := []struct {
		name  string
		label string
		extra []Action
	}{
		{ResourceUser, "users", []Action{ActionImport, ActionExport}},
		{ResourceRole, "roles", nil},
		{ResourcePermission, "permissions", nil},
		{ResourceRoute, "routes", nil},
		{ResourceNews, "news", []Action{ActionExport}},
		{ResourceSetting, "settings", nil},
	}
	var entries []CatalogEntry
	for _, res := range resources {
		for _, action := range append(append([]Action{}, crud...), res.extra...) {
			entries = append(entries, CatalogEntry{
				Resource:    res.name,
				Action:      action,
				Description: describe(action, res.label),
			})
		}
	}
	return entries
}

func describe(action Action, label string) string {
	switch action {
	case ActionCreate:
		return "Create " + label
	case ActionRead:
		return "View " + label
	case ActionUpdate:
		return "Edit " + label
	case ActionDelete:
		return "Delete " + label
	case ActionManage:
		return "Full control of " + label
	case ActionImport:
		return "Import " + label
	case ActionExport:
		return "Export " + label
	}
	return string(action) + " " + label
}
