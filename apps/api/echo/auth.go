package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tahfeezapp/tahfeez/core/auth"
	"github.com/tahfeezapp/tahfeez/core/session"
	"github.com/tahfeezapp/tahfeez/core/user"
)

const (
	contextIdentityKey = "identity"
	contextRoleKey     = "role"
)

// authMiddleware authenticates the request from its bearer token, stashes
// the verified identity and its role record in the echo.Context, and scopes
// the request context to the token so the stores resolve the same identity.
func (s *Server) authMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := ctx.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, "Bearer ") {
				return errUnauthorized
			}
			token := strings.TrimPrefix(header, "Bearer ")

			ident, _, err := s.deps.Provider.VerifyToken(token)
			if err != nil {
				return errUnauthorized
			}

			role := user.RoleStudent
			if usr, err := s.deps.Users.GetUserByID(ctx.Request().Context(), ident.ID); err == nil {
				role = usr.Role
			}

			ctx.Set(contextIdentityKey, ident)
			ctx.Set(contextRoleKey, role)
			ctx.SetRequest(ctx.Request().WithContext(
				auth.ContextWithToken(ctx.Request().Context(), token),
			))
			return next(ctx)
		}
	}
}

// teacherMiddleware restricts an endpoint to identities holding the teacher
// role.
func teacherMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if contextActor(ctx).IsTeacher() {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func contextIdentity(ctx echo.Context) auth.Identity {
	ident, _ := ctx.Get(contextIdentityKey).(auth.Identity)
	return ident
}

func contextActor(ctx echo.Context) session.Actor {
	ident := contextIdentity(ctx)
	role, _ := ctx.Get(contextRoleKey).(string)
	return session.Actor{ID: ident.ID, Role: role}
}
