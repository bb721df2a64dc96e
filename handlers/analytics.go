package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"cropguard-web/middleware"
	"cropguard-web/models"
	"cropguard-web/services"
	"cropguard-web/views"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

var chartTitles = map[string]string{
	services.ChartModels:   "Model usage",
	services.ChartDiseases: "Top diseases",
	services.ChartActivity: "Daily predictions",
}

// AnalyticsHandler serves the analytics page and its charts
type AnalyticsHandler struct {
	loader   *services.AnalyticsLoader
	renderer *services.ChartRenderer
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(loader *services.AnalyticsLoader, renderer *services.ChartRenderer) *AnalyticsHandler {
	return &AnalyticsHandler{loader: loader, renderer: renderer}
}

// Load refreshes the session's analytics snapshot for the analytics page.
// On failure the previous snapshot, if any, stays on screen.
func (h *AnalyticsHandler) Load(ctx context.Context, c *gin.Context, s *services.Session, p *views.Page) {
	p.Analytics = services.BuildAnalyticsView(h.snapshot(ctx, s, p))
}

// LoadResearch fills the research page. The model accuracy figures come
// from the analytics snapshot.
func (h *AnalyticsHandler) LoadResearch(ctx context.Context, c *gin.Context, s *services.Session, p *views.Page) {
	tab := c.DefaultQuery("tab", researchTabs[0].Name)
	known := false
	for _, t := range researchTabs {
		t.Active = t.Name == tab
		known = known || t.Active
		p.Research.Tabs = append(p.Research.Tabs, t)
	}
	if !known {
		tab = researchTabs[0].Name
		p.Research.Tabs[0].Active = true
	}
	p.Research.Tab = tab

	a := s.Analytics()
	if a == nil {
		var err error
		if a, err = h.loader.Load(ctx, s); err != nil && !services.IsCanceled(err) {
			log.Warnf("Failed to load model accuracy: %v", err)
		}
	}
	view := services.BuildAnalyticsView(a)
	p.Research.FruitAccuracy = view.FruitAccuracy
	p.Research.LeafAccuracy = view.LeafAccuracy
}

var researchTabs = []views.Tab{
	{Name: "models", Label: "Models"},
	{Name: "dataset", Label: "Dataset"},
	{Name: "methodology", Label: "Methodology"},
}

func (h *AnalyticsHandler) snapshot(ctx context.Context, s *services.Session, p *views.Page) *models.Analytics {
	a, err := h.loader.Load(ctx, s)
	if err == nil {
		return a
	}
	if !services.IsCanceled(err) {
		log.WithField("session", s.ID).Warnf("Failed to load analytics: %v", err)
		p.Error(services.UserMessage(err, services.MsgAnalyticsFailed, services.MsgAnalyticsNetwork))
	}
	return s.Analytics()
}

// Chart renders one analytics chart as PNG, e.g. /analytics/charts/models.png
func (h *AnalyticsHandler) Chart(c *gin.Context) {
	name := strings.TrimSuffix(c.Param("name"), ".png")
	s := middleware.SessionFrom(c)

	a := s.Analytics()
	if a == nil {
		var err error
		a, err = h.loader.Load(c.Request.Context(), s)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": services.UserMessage(err, services.MsgAnalyticsFailed, services.MsgAnalyticsNetwork)})
			return
		}
	}

	block, err := services.BlockFor(a, name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Chart not found"})
		return
	}

	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, chartTitles[name], block); err != nil {
		if errors.Is(err, services.ErrNoChartData) {
			c.JSON(http.StatusNotFound, gin.H{"error": block.EmptyText})
			return
		}
		log.Errorf("Failed to render %s chart: %v", name, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render chart"})
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}
