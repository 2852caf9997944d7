package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	ClinicianIDKey   contextKey = "clinician_id"
	ClinicianNameKey contextKey = "clinician_name"
	RolesKey         contextKey = "roles"
)

// TokenCookie carries the bearer token for browser page requests.
const TokenCookie = "mskdash_token"

// DefaultClinicianName is shown when no identity is configured.
const DefaultClinicianName = "Clinician X"

type Claims struct {
	jwt.RegisteredClaims
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

type JWTConfig struct {
	Issuer     string
	Audience   string
	SigningKey []byte
	// Skipper lets public endpoints through without a token.
	Skipper func(c echo.Context) bool
}

// Clinician is the signed-in user shown in the page header.
type Clinician struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Roles []string `json:"roles,omitempty"`
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if ck, err := c.Cookie(TokenCookie); err == nil && ck.Value != "" {
			return ck.Value, nil
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}
	return strings.TrimSpace(parts[1]), nil
}

// JWTMiddleware validates HS256 bearer tokens and stores the clinician on
// the request context.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}
			tokenStr, err := bearerToken(c)
			if err != nil {
				return err
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
				return cfg.SigningKey, nil
			}, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			name := claims.Name
			if name == "" {
				name = claims.Subject
			}
			c.SetRequest(c.Request().WithContext(WithClinician(c.Request().Context(), Clinician{
				ID:    claims.Subject,
				Name:  name,
				Roles: claims.Roles,
			})))
			return next(c)
		}
	}
}

// DevAuthMiddleware signs every request in as the configured clinician.
func DevAuthMiddleware(name string) echo.MiddlewareFunc {
	if name == "" {
		name = DefaultClinicianName
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := WithClinician(c.Request().Context(), Clinician{
				ID:    "dev-clinician",
				Name:  name,
				Roles: []string{RoleClinician},
			})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func WithClinician(ctx context.Context, cl Clinician) context.Context {
	ctx = context.WithValue(ctx, ClinicianIDKey, cl.ID)
	ctx = context.WithValue(ctx, ClinicianNameKey, cl.Name)
	return context.WithValue(ctx, RolesKey, cl.Roles)
}

func ClinicianFromContext(ctx context.Context) Clinician {
	id, _ := ctx.Value(ClinicianIDKey).(string)
	name, _ := ctx.Value(ClinicianNameKey).(string)
	roles, _ := ctx.Value(RolesKey).([]string)
	return Clinician{ID: id, Name: name, Roles: roles}
}

// ClinicianName returns the display name for the request, falling back to
// DefaultClinicianName.
func ClinicianName(c echo.Context) string {
	if name := ClinicianFromContext(c.Request().Context()).Name; name != "" {
		return name
	}
	return DefaultClinicianName
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(RolesKey).([]string)
	return roles
}
