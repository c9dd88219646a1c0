// Package web is the HTML front end: a gin router, handlers for the item
// pages, and the templates and stylesheet embedded into the binary.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Skryldev/itemstore/db"
	"github.com/Skryldev/itemstore/service"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Deps are the collaborators the handlers need.
type Deps struct {
	Items *service.ItemService
	DB    *db.DB
	// Stats is optional; when set its snapshot is reported by /healthz.
	Stats  *db.QueryStats
	Logger *slog.Logger
}

type handler struct {
	items  *service.ItemService
	db     *db.DB
	stats  *db.QueryStats
	logger *slog.Logger
}

var funcs = template.FuncMap{
	"add": func(a, b int) int { return a + b },
	"sub": func(a, b int) int { return a - b },
}

func parseTemplates() (*template.Template, error) {
	t, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("web: parse templates: %w", err)
	}
	return t, nil
}

// NewRouter builds the gin engine. The caller picks the gin mode.
func NewRouter(deps Deps) (*gin.Engine, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("web: static assets: %w", err)
	}

	h := &handler{items: deps.Items, db: deps.DB, stats: deps.Stats, logger: logger}

	router := gin.New()
	router.Use(requestLogger(logger))
	router.Use(gin.CustomRecovery(h.recovered))
	router.SetHTMLTemplate(tmpl)

	router.StaticFS("/static", http.FS(static))
	router.GET("/healthz", h.health)

	router.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/items") })

	items := router.Group("/items")
	items.GET("", h.listItems)
	items.POST("", h.createItem)
	items.GET("/new", h.newItemForm)
	items.GET("/edit/:id", h.editItemForm)
	items.POST("/edit/:id", h.updateItem)
	items.GET("/delete/:id", h.deleteItem)

	router.NoRoute(func(c *gin.Context) {
		c.HTML(http.StatusNotFound, "error.html", gin.H{
			"title":   "Not found",
			"status":  http.StatusNotFound,
			"message": "The page you asked for does not exist.",
		})
	})

	return router, nil
}
