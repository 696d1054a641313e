// Package views embeds the HTML templates.
package views

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/gofiber/template/html/v2"

	"inboxai/internal/address"
	"inboxai/models"
)

//go:embed *.html layouts/*.html partials/*.html
var files embed.FS

// Engine returns the template engine over the embedded files.
func Engine() *html.Engine {
	engine := html.NewFileSystem(http.FS(files), ".html")

	engine.AddFunc("lower", strings.ToLower)
	engine.AddFunc("trim", strings.TrimSpace)
	engine.AddFunc("hasPrefix", strings.HasPrefix)
	// Bodies are sanitized by the renderer before they reach a template.
	engine.AddFunc("safeHTML", func(s string) template.HTML { return template.HTML(s) })
	engine.AddFunc("displayName", func(h string) string { return address.DisplayName(h, h) })
	engine.AddFunc("categoryName", categoryName)
	engine.AddFunc("viewName", func(v models.View) string {
		s := string(v)
		if s == "" {
			return ""
		}
		return strings.ToUpper(s[:1]) + s[1:]
	})
	engine.AddFunc("count", func(n int) string {
		if n <= 1 {
			return ""
		}
		return fmt.Sprintf("(%d)", n)
	})
	return engine
}

func categoryName(c models.Category) string {
	switch c {
	case models.CategoryPersonal:
		return "Primary"
	case models.CategoryUpdates:
		return "Updates"
	case models.CategoryPromotions:
		return "Promotions"
	case models.CategorySocial:
		return "Social"
	case models.CategoryAll:
		return "All"
	}
	return string(c)
}
