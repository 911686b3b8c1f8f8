package auth

import (
	"context"
	"net/url"
)

// RoleService resolves the authorization role from the backend's per-user
// record, authorized with the stored bearer token. On any error it returns
// DefaultRole instead of propagating: resolution failure must never block an
// authenticated, least-privileged view, only keep elevated views unreachable.
type RoleService struct {
	backend *BackendClient
	logger  Logger
	sink    ActivitySink
}

var _ RoleResolver = (*RoleService)(nil)

// NewRoleService returns a RoleResolver backed by the shared client.
func NewRoleService(backend *BackendClient) *RoleService {
	return &RoleService{
		backend: backend,
		logger:  defLogger{},
		sink:    noopActivitySink{},
	}
}

func (s *RoleService) WithLogger(l Logger) *RoleService {
	if l != nil {
		s.logger = l
	}
	return s
}

// WithActivitySink configures the sink notified on fallback resolutions.
func (s *RoleService) WithActivitySink(sink ActivitySink) *RoleService {
	s.sink = normalizeActivitySink(sink)
	return s
}

// ResolveRole fetches the user record and extracts the role field.
func (s *RoleService) ResolveRole(ctx context.Context, email string) Role {
	var out struct {
		Role string `json:"role"`
	}

	if err := s.backend.GetAuthorized(ctx, "/api/users/"+url.PathEscape(email), &out); err != nil {
		s.logger.Warn("role resolution failed, defaulting", "email", email, "role", DefaultRole, "error", err)
		s.recordFallback(ctx, email, err)
		return DefaultRole
	}

	role, ok := ParseRole(out.Role)
	if !ok {
		s.logger.Warn("backend returned an unknown role, defaulting", "email", email, "role", out.Role)
		s.recordFallback(ctx, email, ErrRoleResolution)
		return DefaultRole
	}

	return role
}

func (s *RoleService) recordFallback(ctx context.Context, email string, cause error) {
	event := ActivityEvent{
		EventType: ActivityEventRoleFallback,
		Email:     email,
		Role:      DefaultRole,
		Metadata:  map[string]any{"error": cause.Error()},
	}

	if err := normalizeActivitySink(s.sink).Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}
