package auth

// TemplateUserKey is the helper name templates use for the signed-in identity.
var TemplateUserKey = "current_user"

// TemplateHelpers returns helper functions and data for the view engine.
//
// Usage:
//
//	engine := django.New("./views", ".html")
//	for name, fn := range auth.TemplateHelpers(session) {
//	    engine.AddFunc(name, fn)
//	}
//
// In templates:
//
//	{% if is_authenticated() %}
//	{% if has_role("admin") %}
//	{% if can_access_decorator() %}
func TemplateHelpers(session SessionReader) map[string]any {
	return map[string]any{
		TemplateUserKey: func() Identity {
			return session.Current().Identity
		},
		"is_authenticated": func() bool {
			return session.Current().Authenticated()
		},
		"is_loading": func() bool {
			return session.Current().Loading
		},
		"current_role": func() string {
			return string(session.Current().Role)
		},
		"has_role": func(role string) bool {
			current := session.Current()
			return current.Authenticated() && current.Role == role
		},
		"is_at_least": func(role string) bool {
			current := session.Current()
			return current.Authenticated() && RoleAtLeast(current.Role, role)
		},
		"can_access_decorator": func() bool {
			current := session.Current()
			return current.Authenticated() && CanAccessDecoratorViews(current.Role)
		},
		"can_access_admin": func() bool {
			current := session.Current()
			return current.Authenticated() && CanAccessAdminViews(current.Role)
		},

		// role constants for easy template access
		"roles": map[string]string{
			"user":      string(RoleUser),
			"decorator": string(RoleDecorator),
			"admin":     string(RoleAdmin),
		},
	}
}
