package routes

import (
	"sort"

	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
)

// ProjectMenu prunes the route forest to what ability may see.
//
// Hidden routes never appear. Only two levels are projected: top-level routes
// and their direct children. A child is checked on its own permissions but is
// only reachable through a visible parent, so an invisible parent hides its
// whole subtree even when the child alone would pass.
func ProjectMenu(all []Route, ability rbac.Ability) []MenuNode {
	visible := func(r Route) bool {
		if r.Hidden {
			return false
		}
		return r.IsPublic() || ability.CanPerformAny(r.Requirements()...)
	}

	children := make(map[int64][]Route)
	var tops []Route
	for _, r := range all {
		if r.ParentID == nil {
			tops = append(tops, r)
			continue
		}
		children[*r.ParentID] = append(children[*r.ParentID], r)
	}

	sortRoutes(tops)
	menu := make([]MenuNode, 0, len(tops))
	for _, top := range tops {
		if !visible(top) {
			continue
		}
		node := newNode(top)
		kids := children[top.ID]
		sortRoutes(kids)
		for _, child := range kids {
			if visible(child) {
				node.Children = append(node.Children, newNode(child))
			}
		}
		menu = append(menu, node)
	}
	return menu
}

func sortRoutes(rs []Route) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Order != rs[j].Order {
			return rs[i].Order < rs[j].Order
		}
		return rs[i].ID < rs[j].ID
	})
}

func newNode(r Route) MenuNode {
	return MenuNode{
		ID:    r.ID,
		Path:  r.Path,
		Name:  r.Name,
		Title: r.Title,
		Icon:  r.Icon,
		Order: r.Order,
	}
}
