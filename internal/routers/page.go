package routers

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/labstack/echo/v4"
)

//go:embed web/index.html web/static
var webFS embed.FS

var indexTemplate = template.Must(template.ParseFS(webFS, "web/index.html"))

type PageConfig struct {
	Title           string
	DefaultModel    string
	SettingsSidebar bool
}

// RegisterPageRoutes serves the browser shell and its script. The page is
// rendered once at startup; nothing about it depends on the request.
func RegisterPageRoutes(e *echo.Group, cfg PageConfig) error {
	if cfg.Title == "" {
		cfg.Title = "Chat"
	}
	var page bytes.Buffer
	if err := indexTemplate.Execute(&page, cfg); err != nil {
		return err
	}
	body := page.Bytes()

	static, err := fs.Sub(webFS, "web/static")
	if err != nil {
		return err
	}

	e.GET("/", func(c echo.Context) error {
		return c.HTMLBlob(http.StatusOK, body)
	})
	e.GET("/static/*", echo.WrapHandler(http.StripPrefix("/static/", http.FileServer(http.FS(static)))))
	return nil
}
