package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cropguard-web/middleware"
	"cropguard-web/services"
	"cropguard-web/views"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// HistoryHandler serves the history page and its CSV export
type HistoryHandler struct {
	nav     *Navigator
	manager *services.HistoryManager
	now     func() time.Time
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(nav *Navigator, manager *services.HistoryManager) *HistoryHandler {
	return &HistoryHandler{nav: nav, manager: manager, now: time.Now}
}

func parseHistoryQuery(c *gin.Context) services.HistoryQuery {
	page, _ := strconv.Atoi(c.Query("page"))
	minConfidence, _ := strconv.ParseFloat(c.Query("min_confidence"), 64)
	return services.HistoryQuery{
		Page:          page,
		Action:        c.Query("action"),
		Model:         c.Query("model"),
		Query:         c.Query("q"),
		Disease:       c.Query("disease"),
		MinConfidence: minConfidence,
		Reload:        c.Request.URL.RawQuery == "",
	}
}

// Load fetches the requested history page. On failure the page the session
// already holds stays on screen.
func (h *HistoryHandler) Load(ctx context.Context, c *gin.Context, s *services.Session, p *views.Page) {
	view, err := h.manager.Load(ctx, s, parseHistoryQuery(c))
	if err != nil {
		if !services.IsCanceled(err) {
			log.WithField("session", s.ID).Warnf("Failed to load history: %v", err)
			p.Error(services.UserMessage(err, services.MsgHistoryFailed, services.MsgHistoryNetwork))
		}
		view = h.manager.Current(s)
	}
	p.History = view
}

// Export downloads the displayed history entries as CSV
func (h *HistoryHandler) Export(c *gin.Context) {
	s := middleware.SessionFrom(c)

	view := h.manager.Current(s)
	if !s.History().Loaded {
		if loaded, err := h.manager.Load(c.Request.Context(), s, services.HistoryQuery{}); err == nil {
			view = loaded
		} else if !services.IsCanceled(err) {
			log.WithField("session", s.ID).Warnf("Failed to load history for export: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := services.WriteCSV(&buf, view.Entries); err != nil {
		p := h.nav.NewPage(PageHistory)
		p.History = view
		status := http.StatusOK
		if services.IsNothingToExport(err) {
			status = http.StatusUnprocessableEntity
			p.Error(err.Error())
		} else {
			log.Errorf("Failed to write history CSV: %v", err)
			p.Error("Failed to export history")
		}
		h.nav.Render(c, status, p, nil)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", services.ExportFileName(h.now())))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
