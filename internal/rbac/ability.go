package rbac

import (
	"encoding/json"
	"sort"
)

// GrantKey formats a grant as "resource:ACTION".
func GrantKey(resource string, action Action) string {
	return resource + ":" + string(action)
}

// Requirement is a single (action, resource) pair an endpoint or route may demand.
type Requirement struct {
	Action   Action `json:"action"`
	Resource string `json:"resource"`
}

// Need builds a Requirement.
func Need(action Action, resource string) Requirement {
	return Requirement{Action: action, Resource: resource}
}

// RequirementsOf converts permissions into any-of requirements.
func RequirementsOf(perms []Permission) []Requirement {
	reqs := make([]Requirement, 0, len(perms))
	for _, p := range perms {
		reqs = append(reqs, Need(p.Action, p.Resource))
	}
	return reqs
}

func (r Requirement) String() string {
	return GrantKey(r.Resource, r.Action)
}

// Ability is the derived set of grants held by a principal. It is never
// persisted and is safe for concurrent reads.
type Ability struct {
	grants map[string]struct{}
}

// NewAbility builds an Ability from canonical grant keys.
func NewAbility(grants ...string) Ability {
	set := make(map[string]struct{}, len(grants))
	for _, g := range grants {
		set[g] = struct{}{}
	}
	return Ability{grants: set}
}

// DeriveAbility unions the permissions of every role. MANAGE is stored as-is;
// its wildcard meaning is applied only by CanPerform.
func DeriveAbility(roles []Role) Ability {
	set := make(map[string]struct{})
	for _, role := range roles {
		for _, p := range role.Permissions {
			if !p.Action.Valid() {
				continue
			}
			set[p.Key()] = struct{}{}
		}
	}
	return Ability{grants: set}
}

// CanPerform reports whether the ability allows action on resource.
func (a Ability) CanPerform(action Action, resource string) bool {
	if !action.Valid() {
		return false
	}
	if _, ok := a.grants[GrantKey(resource, ActionManage)]; ok {
		return true
	}
	_, ok := a.grants[GrantKey(resource, action)]
	return ok
}

// CanPerformAny reports whether at least one requirement is satisfied. An
// empty list is never satisfied; callers decide what "no requirements" means.
func (a Ability) CanPerformAny(reqs ...Requirement) bool {
	for _, r := range reqs {
		if a.CanPerform(r.Action, r.Resource) {
			return true
		}
	}
	return false
}

// Has reports whether the exact grant key is present.
func (a Ability) Has(grant string) bool {
	_, ok := a.grants[grant]
	return ok
}

// Len returns the number of distinct grants.
func (a Ability) Len() int {
	return len(a.grants)
}

// Grants returns the grant keys in sorted order.
func (a Ability) Grants() []string {
	out := make([]string, 0, len(a.grants))
	for g := range a.grants {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON renders the ability as a sorted list of grant keys.
func (a Ability) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Grants())
}
