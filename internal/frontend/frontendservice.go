package frontend

import (
	"html/template"
	"net/http"

	"github.com/jo-hoe/imagequiz/internal/core"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const (
	MainPageName  = "index.html"
	AdminPageName = "admin.html"
	sessionHeader = "X-Quiz-Session"
)

type FrontendService struct {
	coreService *core.CoreService
	config      *core.ServiceConfig
}

// pageData is available to every view.
type pageData struct {
	SessionHeader     string
	AllowRegistration bool
}

func NewFrontendService(config *core.ServiceConfig, coreService *core.CoreService) *FrontendService {
	return &FrontendService{
		coreService: coreService,
		config:      config,
	}
}

// rootRedirectHandler redirects root path to index.html
func (service *FrontendService) rootRedirectHandler(ctx echo.Context) error {
	return ctx.Redirect(http.StatusMovedPermanently, "/"+MainPageName)
}

func (service *FrontendService) SetRoutes(e *echo.Echo) {
	e.Renderer = &Template{
		templates: template.Must(template.New("").ParseFS(templateFS, viewsPattern)),
	}

	e.GET("/", service.rootRedirectHandler)
	e.GET("/"+MainPageName, service.pageHandler(MainPageName))
	e.GET("/"+AdminPageName, service.pageHandler(AdminPageName))
	e.GET("/icon.svg", service.iconHandler)
}

func (service *FrontendService) pageHandler(name string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		service.setNoCache(ctx)
		return ctx.Render(http.StatusOK, name, pageData{
			SessionHeader:     sessionHeader,
			AllowRegistration: service.config.Auth.AllowRegistration,
		})
	}
}

func (service *FrontendService) setNoCache(ctx echo.Context) {
	ctx.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	ctx.Response().Header().Set("Pragma", "no-cache")
	ctx.Response().Header().Set("Expires", "0")
}

func (service *FrontendService) iconHandler(ctx echo.Context) error {
	data, err := assetsFS.ReadFile("views/icon.svg")
	if err != nil {
		log.Error().Err(err).Int("status", http.StatusInternalServerError).Msg("iconHandler: failed to read icon.svg")
		return ctx.String(http.StatusInternalServerError, "Failed to load icon")
	}
	// Cache for 7 days
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, "image/svg+xml", data)
}
