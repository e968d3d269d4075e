package tenant

import "github.com/atriumhq/console/internal/models"

// NavItem is one entry in a role's navigation set. Icon names follow the
// frontend's icon library.
type NavItem struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Icon string `json:"icon"`
}

var adminNavigation = []NavItem{
	{Name: "Admin Dashboard", Path: "/admin/dashboard", Icon: "LayoutDashboard"},
	{Name: "Organizations", Path: "/organizations", Icon: "Building2"},
	{Name: "Teams", Path: "/teams", Icon: "Users"},
	{Name: "Links", Path: "/admin/links", Icon: "Link"},
	{Name: "Top Bar", Path: "/admin/topbar", Icon: "MenuSquare"},
	{Name: "User Management", Path: "/profiles", Icon: "UserCircle2"},
	{Name: "Apps", Path: "/admin/apps", Icon: "AppWindow"},
	{Name: "Settings", Path: "/settings", Icon: "Settings"},
}

var organizationNavigation = []NavItem{
	{Name: "Dashboard", Path: "/dashboard", Icon: "LayoutDashboard"},
	{Name: "Links", Path: "/links", Icon: "Link"},
	{Name: "AI Chat", Path: "/chat", Icon: "Bot"},
	{Name: "Organizations", Path: "/user-organization", Icon: "Building2"},
	{Name: "Teams", Path: "/user-teams", Icon: "Users"},
}

var teamNavigation = []NavItem{
	{Name: "Dashboard", Path: "/dashboard", Icon: "LayoutDashboard"},
	{Name: "Links", Path: "/links", Icon: "Link"},
	{Name: "AI Chat", Path: "/chat", Icon: "Bot"},
	{Name: "Teams", Path: "/user-teams", Icon: "Users"},
}

var userNavigation = []NavItem{
	{Name: "Dashboard", Path: "/dashboard", Icon: "LayoutDashboard"},
	{Name: "Links", Path: "/links", Icon: "Link"},
	{Name: "AI Chat", Path: "/chat", Icon: "Bot"},
}

// NavigationFor returns the navigation set for a role. Global admins get the
// admin set regardless of any membership role.
func NavigationFor(role models.Role, isGlobalAdmin bool) []NavItem {
	if isGlobalAdmin || role == models.RoleGlobalAdmin {
		return adminNavigation
	}
	switch role {
	case models.RoleOrganizationAdmin:
		return organizationNavigation
	case models.RoleTeamAdmin:
		return teamNavigation
	default:
		return userNavigation
	}
}
