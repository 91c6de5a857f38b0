package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
	"github.com/odyssey-erp/odyssey-admin/internal/routes"
)

// AccessCLI explains what a principal may do: its ability, its menu and,
// optionally, whether it may open a given path.
type AccessCLI struct {
	principals rbac.PrincipalResolver
	routes     *routes.Service
}

// NewAccessCLI constructs the helper.
func NewAccessCLI(principals rbac.PrincipalResolver, routeService *routes.Service) (*AccessCLI, error) {
	if principals == nil || routeService == nil {
		return nil, errors.New("access cli: principal resolver and route service are required")
	}
	return &AccessCLI{principals: principals, routes: routeService}, nil
}

// AccessOptions defines available flags for the access command.
type AccessOptions struct {
	UserID     int64
	Path       string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// AccessSummary describes the JSON response for the access command.
type AccessSummary struct {
	UserID  int64             `json:"user_id"`
	Email   string            `json:"email"`
	Status  rbac.Status       `json:"status"`
	Roles   []string          `json:"roles"`
	Grants  []string          `json:"grants"`
	Menu    []routes.MenuNode `json:"menu"`
	Path    string            `json:"path,omitempty"`
	Allowed *bool             `json:"allowed,omitempty"`
}

// InspectCommand prints the summary. It exits 10 when a path was given and
// the principal may not open it.
func (c *AccessCLI) InspectCommand(ctx context.Context, opts AccessOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.UserID <= 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "access: --user is required and must be positive")
		return 1
	}
	principal, err := c.principals.ResolvePrincipal(ctx, opts.UserID)
	if errors.Is(err, rbac.ErrNotFound) {
		_, _ = fmt.Fprintf(opts.Stderr, "access: user %d not found\n", opts.UserID)
		return 1
	}
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "access: %v\n", err)
		return 1
	}

	summary := AccessSummary{
		UserID: principal.ID,
		Email:  principal.Email,
		Status: principal.Status,
		Roles:  make([]string, 0, len(principal.Roles)),
		Grants: rbac.DeriveAbility(principal.Roles).Grants(),
		Menu:   []routes.MenuNode{},
	}
	for _, role := range principal.Roles {
		summary.Roles = append(summary.Roles, role.Name)
	}
	if principal.IsActive() {
		menu, err := c.routes.GetMenuForPrincipal(ctx, principal.ID)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "access: menu: %v\n", err)
			return 1
		}
		summary.Menu = menu
	}
	if path := strings.TrimSpace(opts.Path); path != "" {
		allowed, err := c.routes.CheckAccess(ctx, principal.ID, path)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "access: check %s: %v\n", path, err)
			return 1
		}
		summary.Path = path
		summary.Allowed = &allowed
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "access: encode json: %v\n", err)
			return 1
		}
	} else {
		renderAccessHuman(opts.Stdout, summary)
	}
	if summary.Allowed != nil && !*summary.Allowed {
		return 10
	}
	return 0
}

func renderAccessHuman(out io.Writer, s AccessSummary) {
	_, _ = fmt.Fprintf(out, "User %d <%s> status %s\n", s.UserID, s.Email, s.Status)
	if len(s.Roles) == 0 {
		_, _ = fmt.Fprintln(out, "Roles: none")
	} else {
		_, _ = fmt.Fprintf(out, "Roles: %s\n", strings.Join(s.Roles, ", "))
	}
	if len(s.Grants) == 0 {
		_, _ = fmt.Fprintln(out, "Grants: none")
	} else {
		_, _ = fmt.Fprintln(out, "Grants:")
		for _, grant := range s.Grants {
			_, _ = fmt.Fprintf(out, " - %s\n", grant)
		}
	}
	_, _ = fmt.Fprintln(out, "Menu:")
	for _, node := range s.Menu {
		_, _ = fmt.Fprintf(out, " - %s (%s)\n", node.Title, node.Path)
		for _, child := range node.Children {
			_, _ = fmt.Fprintf(out, "   - %s (%s)\n", child.Title, child.Path)
		}
	}
	if s.Allowed != nil {
		verdict := "denied"
		if *s.Allowed {
			verdict = "allowed"
		}
		_, _ = fmt.Fprintf(out, "Access to %s: %s\n", s.Path, verdict)
	}
}
