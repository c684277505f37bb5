package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/medpaste/internal/platform/auth"
)

// Audit emits one "phi_access" event per request that touches a patient's
// medication sheet: who, which patient, what action, and the outcome.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !strings.HasPrefix(c.Path(), "/api/v1/patients/") {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok && !c.Response().Committed {
				status = he.Code
			}
			ctx := c.Request().Context()
			rid, _ := c.Get("request_id").(string)

			logger.Info().
				Str("type", "phi_access").
				Str("request_id", rid).
				Str("user_id", auth.UserIDFromContext(ctx)).
				Strs("user_roles", auth.RolesFromContext(ctx)).
				Str("patient_id", c.Param("id")).
				Str("action", actionOf(c.Request().Method, c.Path())).
				Int("status", status).
				Msg("phi_access")

			return err
		}
	}
}

func actionOf(method, route string) string {
	switch {
	case strings.HasSuffix(route, "/paste"):
		return "paste"
	case method == http.MethodGet || method == http.MethodHead:
		return "read"
	case method == http.MethodPut || method == http.MethodPatch:
		return "update"
	case method == http.MethodDelete:
		return "delete"
	}
	return "create"
}
