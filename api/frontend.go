package api

import (
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// RegisterFrontend serves the board UI from dir, falling back to index.html
// for unknown paths. API and health routes are never shadowed. It reports
// whether dir was usable.
func RegisterFrontend(e *echo.Echo, dir string) bool {
	if dir == "" {
		return false
	}
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return false
	}
	e.Use(middleware.StaticWithConfig(middleware.StaticConfig{
		Root:  dir,
		Index: "index.html",
		HTML5: true,
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return p == "/api" || strings.HasPrefix(p, "/api/") || p == "/healthz"
		},
	}))
	return true
}
