// ABOUTME: Route table for the storefront and its admin area
// ABOUTME: Shop pages are public except cart-bound and account pages

package guard

// DefaultRoutes is the storefront's navigation table
var DefaultRoutes = []Route{
	{Path: "/"},
	{Path: "/about"},
	{Path: "/contact"},
	{Path: "/moq-campaigns"},
	{Path: "/category/:categoryName"},
	{Path: "/cart"},
	{Path: "/login", Meta: Meta{GuestOnly: true}},
	{Path: "/profile", Meta: Meta{AuthOnly: true}},
	{Path: "/orders", Meta: Meta{AuthOnly: true}},
	{Path: "/checkout", Meta: Meta{AuthOnly: true}},
	{Path: "/admin-page/login", Meta: Meta{GuestOnly: true}},
	{Path: "/admin-page/register", Meta: Meta{GuestOnly: true}},
	{Path: "/admin-page/dashboard", Meta: Meta{AdminOnly: true}},
	{Path: "/admin-page/settings", Meta: Meta{AdminOnly: true}},
	{Path: "/admin-page/products", Meta: Meta{AdminOnly: true}},
	{Path: "/admin-page/orders", Meta: Meta{AdminOnly: true}},
	{Path: "/admin-page/categories", Meta: Meta{AdminOnly: true}},
}
