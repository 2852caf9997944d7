package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// StaticPrefix is where the stylesheet and other assets are served.
const StaticPrefix = "/static/"

// Operational endpoints carry no patient data and are scraped without a
// token.
var publicRoutes = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// AuthSkipper lets operational endpoints and static assets through without
// a clinician token. Pass it as JWTConfig.Skipper.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Path()) || IsPublicPath(c.Request().URL.Path)
}

// IsPublicPath reports whether a route pattern or request path is public.
func IsPublicPath(path string) bool {
	return publicRoutes[path] || path == "/static*" || strings.HasPrefix(path, StaticPrefix)
}
