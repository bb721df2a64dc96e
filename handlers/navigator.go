package handlers

import (
	"context"
	"errors"
	"net/http"

	"cropguard-web/config"
	"cropguard-web/middleware"
	"cropguard-web/models"
	"cropguard-web/services"
	"cropguard-web/views"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// Page names
const (
	PageDetect    = "detect"
	PageAnalytics = "analytics"
	PageHistory   = "history"
	PageResearch  = "research"
	PageContact   = "contact"
)

var navItems = []views.NavItem{
	{Name: PageDetect, Label: "Detect", Icon: "📷"},
	{Name: PageAnalytics, Label: "Analytics", Icon: "📊"},
	{Name: PageHistory, Label: "History", Icon: "🕘"},
	{Name: PageResearch, Label: "Research", Icon: "🔬"},
	{Name: PageContact, Label: "Contact", Icon: "✉️"},
}

var pageTitles = map[string]string{
	PageDetect:    "Disease Detection",
	PageAnalytics: "Analytics",
	PageHistory:   "Prediction History",
	PageResearch:  "Research",
	PageContact:   "Contact",
}

// Loader fills the page-specific part of p. It runs concurrently with the
// navigation stats request and must only touch p.
type Loader func(ctx context.Context, c *gin.Context, s *services.Session, p *views.Page)

// Navigator renders pages and runs their loaders
type Navigator struct {
	api     services.InferenceAPI
	cfg     *config.Config
	version string
	loaders map[string]Loader
}

// NewNavigator creates a navigator
func NewNavigator(api services.InferenceAPI, cfg *config.Config, version string) *Navigator {
	return &Navigator{
		api:     api,
		cfg:     cfg,
		version: version,
		loaders: make(map[string]Loader),
	}
}

// Register sets the loader run whenever page is shown
func (n *Navigator) Register(page string, loader Loader) {
	n.loaders[page] = loader
}

// NewPage builds the common part of a page with name active
func (n *Navigator) NewPage(name string) *views.Page {
	p := &views.Page{
		Name:             name,
		Title:            pageTitles[name],
		Version:          n.version,
		SearchDebounceMS: n.cfg.SearchDebounce.Milliseconds(),
	}
	for _, item := range navItems {
		item.Active = item.Name == name
		p.Nav = append(p.Nav, item)
	}
	return p
}

// Home redirects to the detection page
func (n *Navigator) Home(c *gin.Context) {
	c.Redirect(http.StatusFound, "/"+PageDetect)
}

// Show returns the handler for GET /<page>
func (n *Navigator) Show(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := n.NewPage(name)
		n.Render(c, http.StatusOK, p, n.loaders[name])
	}
}

// Render loads the navigation stats and the page data concurrently and
// renders the layout
func (n *Navigator) Render(c *gin.Context, status int, p *views.Page, load Loader) {
	s := middleware.SessionFrom(c)

	g, ctx := errgroup.WithContext(c.Request.Context())
	var stats *models.SystemStats
	g.Go(func() error {
		st, err := n.api.GetStats(ctx)
		if err != nil {
			if !services.IsCanceled(err) {
				log.Warnf("Failed to load navigation stats: %v", err)
			}
			return nil
		}
		stats = st
		return nil
	})
	if load != nil {
		g.Go(func() error {
			load(ctx, c, s, p)
			return nil
		})
	}
	_ = g.Wait()

	if stats != nil {
		s.SetStats(stats)
	}
	v := s.View()
	p.Stats = v.Stats
	switch p.Name {
	case PageDetect:
		fillDetect(n.cfg, v, p)
	case PageContact:
		fillContact(p)
	}

	c.HTML(status, views.LayoutTemplate, p)
}

func fillDetect(cfg *config.Config, v services.SessionView, p *views.Page) {
	modelType := p.Detect.ModelType
	if modelType == "" && v.Current != nil {
		modelType = v.Current.ModelType
	}
	p.Detect = views.DetectView{
		SessionView:      v,
		ModelType:        modelType,
		MaxUploadMB:      cfg.MaxUploadMB,
		MaxCommentLength: services.MaxCommentLength,
	}
}

// alertFor adds the alert matching err to p and returns the status the
// page should be served with. Superseded requests render silently.
func alertFor(p *views.Page, err error, fallback, networkMsg string) int {
	if services.IsCanceled(err) {
		return http.StatusOK
	}
	p.Error(services.UserMessage(err, fallback, networkMsg))
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusOK
}
