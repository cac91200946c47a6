// ABOUTME: Route guard deciding navigation by session state and role
// ABOUTME: Evaluates an ordered rule list top-down; the first matching rule decides

package guard

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/markalston/storefront-client/internal/models"
)

// Redirect targets
const (
	AdminLoginPath     = "/admin-page/login"
	AdminDashboardPath = "/admin-page/dashboard"
	LoginPath          = "/login"
)

// Meta marks the access requirements of a route
type Meta struct {
	AdminOnly bool `json:"adminOnly,omitempty"`
	GuestOnly bool `json:"guestOnly,omitempty"`
	AuthOnly  bool `json:"authOnly,omitempty"`
}

// Route is a navigable path and its requirements
type Route struct {
	Path string `json:"path"`
	Meta Meta   `json:"meta"`
}

// Viewer is what the guard knows about the session
type Viewer struct {
	Authenticated bool
	Role          *models.Role
}

// ViewerOf builds a Viewer from the session identity, nil when anonymous
func ViewerOf(identity *models.Identity) Viewer {
	if identity == nil {
		return Viewer{}
	}
	role := identity.Role
	return Viewer{Authenticated: true, Role: &role}
}

// IsAdmin reports whether the viewer holds the admin role
func (v Viewer) IsAdmin() bool {
	return v.Role != nil && *v.Role == models.RoleAdmin
}

// Decision is the outcome of evaluating a route
type Decision struct {
	Allow    bool   `json:"allow"`
	Redirect string `json:"redirect,omitempty"`
	Rule     string `json:"rule"`
}

// Rule is one predicate in the guard's ordered list
type Rule struct {
	Name    string
	Applies func(Meta) bool
	Decide  func(path string, v Viewer) Decision
}

// DefaultRules returns adminOnly, guestOnly and authOnly in precedence order
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    "adminOnly",
			Applies: func(m Meta) bool { return m.AdminOnly },
			Decide: func(_ string, v Viewer) Decision {
				if v.IsAdmin() {
					return Decision{Allow: true}
				}
				return Decision{Redirect: AdminLoginPath}
			},
		},
		{
			Name:    "guestOnly",
			Applies: func(m Meta) bool { return m.GuestOnly },
			Decide: func(_ string, v Viewer) Decision {
				if v.Authenticated && v.IsAdmin() {
					return Decision{Redirect: AdminDashboardPath}
				}
				return Decision{Allow: true}
			},
		},
		{
			Name:    "authOnly",
			Applies: func(m Meta) bool { return m.AuthOnly },
			Decide: func(path string, v Viewer) Decision {
				if v.Authenticated {
					return Decision{Allow: true}
				}
				return Decision{Redirect: LoginPath + "?redirect=" + url.QueryEscape(path)}
			},
		},
	}
}

// Guard evaluates routes against its rules
type Guard struct {
	rules  []Rule
	routes []Route
}

// New creates a guard over the route table with the default rules
func New(routes []Route) *Guard {
	return NewWithRules(routes, DefaultRules())
}

// NewWithRules creates a guard with a custom rule order
func NewWithRules(routes []Route, rules []Rule) *Guard {
	return &Guard{rules: rules, routes: routes}
}

// Routes returns the route table
func (g *Guard) Routes() []Route {
	return append([]Route(nil), g.routes...)
}

// Evaluate decides whether the viewer may enter the route
func (g *Guard) Evaluate(route Route, v Viewer) Decision {
	for _, rule := range g.rules {
		if !rule.Applies(route.Meta) {
			continue
		}
		d := rule.Decide(route.Path, v)
		d.Rule = rule.Name
		if !d.Allow {
			slog.Debug("Route guard redirect", "path", route.Path, "rule", rule.Name, "redirect", d.Redirect)
		}
		return d
	}
	return Decision{Allow: true, Rule: "public"}
}

// Check looks the path up in the route table and evaluates it.
// Unknown paths are public.
func (g *Guard) Check(path string, v Viewer) Decision {
	route, ok := g.Lookup(path)
	if !ok {
		route = Route{Path: path}
	}
	route.Path = path
	return g.Evaluate(route, v)
}

// Lookup finds the route matching path. Segments starting with ':' match anything.
func (g *Guard) Lookup(path string) (Route, bool) {
	for _, r := range g.routes {
		if matchPath(r.Path, path) {
			return r, true
		}
	}
	return Route{}, false
}

func matchPath(pattern, path string) bool {
	pp := splitPath(pattern)
	sp := splitPath(path)
	if len(pp) != len(sp) {
		return false
	}
	for i := range pp {
		if strings.HasPrefix(pp[i], ":") {
			continue
		}
		if pp[i] != sp[i] {
			return false
		}
	}
	return true
}

func splitPath(p string) []string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
