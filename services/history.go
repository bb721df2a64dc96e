package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"cropguard-web/models"

	"github.com/apex/log"
)

// Pagination actions
const (
	ActionFirst   = "first"
	ActionPrev    = "prev"
	ActionNext    = "next"
	ActionLast    = "last"
	ActionRefresh = "refresh"
)

// CSVHeader is the first line of the history export
var CSVHeader = []string{"Date", "Time", "Model Type", "Disease", "Confidence", "Rating", "Correct", "Comment"}

// ErrNothingToExport is returned when exporting an empty history
var ErrNothingToExport = &ValidationError{Message: "No history to export"}

// HistoryQuery is what the history page was asked to show
type HistoryQuery struct {
	Page          int
	Action        string
	Model         string
	Query         string
	Disease       string
	MinConfidence float64
	// Reload refetches the current page even when only filters changed
	Reload bool
}

// HistoryStats is derived from the displayed entries
type HistoryStats struct {
	Total             int
	AverageConfidence float64
	MostCommonDisease string
}

// HistoryView is everything the history template needs
type HistoryView struct {
	Entries       []models.HistoryEntry
	PageEntries   int
	Page          int
	TotalPages    int
	Total         int
	Estimated     bool
	FirstDisabled bool
	PrevDisabled  bool
	NextDisabled  bool
	LastDisabled  bool
	Stats         HistoryStats
	Diseases      []string
	Model         string
	Query         string
	Disease       string
	MinConfidence float64
}

// Empty reports whether the API returned nothing for this page
func (v HistoryView) Empty() bool {
	return v.PageEntries == 0
}

// NoMatches reports whether the filters hid every entry of a non-empty page
func (v HistoryView) NoMatches() bool {
	return v.PageEntries > 0 && len(v.Entries) == 0
}

// HistoryManager pages through prediction history for a session
type HistoryManager struct {
	api      InferenceAPI
	pageSize int
}

// NewHistoryManager creates a history manager with a fixed page size
func NewHistoryManager(api InferenceAPI, pageSize int) *HistoryManager {
	if pageSize <= 0 {
		pageSize = 15
	}
	return &HistoryManager{api: api, pageSize: pageSize}
}

// TotalPages returns max(1, ceil(count/limit))
func TotalPages(count, limit int) int {
	if limit <= 0 || count <= 0 {
		return 1
	}
	return (count + limit - 1) / limit
}

// TargetPage applies a pagination action to the current page and clamps
// the result to [1, totalPages]
func TargetPage(current, totalPages int, action string, requested int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	page := current
	switch action {
	case ActionFirst, ActionRefresh:
		page = 1
	case ActionPrev:
		page = current - 1
	case ActionNext:
		page = current + 1
	case ActionLast:
		page = totalPages
	default:
		if requested > 0 {
			page = requested
		}
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	return page
}

// Load fetches the page described by q and stores it in the session. A
// change of search text, disease or confidence filter alone only narrows the
// page already loaded.
func (m *HistoryManager) Load(ctx context.Context, s *Session, q HistoryQuery) (HistoryView, error) {
	cur := s.History()
	if q.Model != "" && !models.IsValidModelType(q.Model) {
		q.Model = ""
	}

	if cur.Loaded && !q.Reload && q.Action == "" && (q.Page == 0 || q.Page == cur.Page) && q.Model == cur.ModelFilter {
		return m.view(s.setHistoryFilters(q.Query, q.Disease, q.MinConfidence)), nil
	}

	ctx, ticket := s.Begin(ctx, KindHistory)
	defer s.End(ticket)

	current := cur.Page
	if q.Model != cur.ModelFilter {
		current = 1
		if q.Action != ActionLast {
			q.Action = ActionFirst
		}
	}

	count, known := m.count(ctx, q.Model)
	if IsCanceled(ctx.Err()) {
		return HistoryView{}, ctx.Err()
	}
	pages := TotalPages(cur.Total, m.pageSize)
	if known {
		pages = TotalPages(count, m.pageSize)
	}
	page := TargetPage(current, pages, q.Action, q.Page)
	offset := (page - 1) * m.pageSize

	entries, err := m.api.GetHistory(ctx, m.pageSize, offset, q.Model)
	if err != nil {
		return HistoryView{}, err
	}

	if !known {
		count = offset + len(entries)
		if len(entries) == m.pageSize {
			count++
		}
	} else if offset+len(entries) > count {
		count = offset + len(entries)
	}

	var view HistoryView
	err = s.Apply(ticket, func(s *Session) {
		s.history = HistoryState{
			Page:          page,
			ModelFilter:   q.Model,
			Query:         q.Query,
			Disease:       q.Disease,
			MinConfidence: q.MinConfidence,
			Total:         count,
			Entries:       entries,
			Estimated:     !known,
			Loaded:        true,
		}
		view = m.view(s.history)
	})
	if err != nil {
		return HistoryView{}, err
	}

	log.WithFields(log.Fields{"session": s.ID, "page": page, "model": q.Model, "entries": len(entries)}).Debug("History page loaded")
	return view, nil
}

// Current rebuilds the view of the page held by the session without a fetch
func (m *HistoryManager) Current(s *Session) HistoryView {
	return m.view(s.History())
}

// count returns the number of history entries for the model filter and
// whether that number came from the API rather than an estimate
func (m *HistoryManager) count(ctx context.Context, model string) (int, bool) {
	if model == "" {
		stats, err := m.api.GetStats(ctx)
		if err != nil {
			if !IsCanceled(err) {
				log.Warnf("Failed to load history count from stats: %v", err)
			}
			return 0, false
		}
		return stats.TotalPredictions, true
	}

	analytics, err := m.api.GetAnalytics(ctx)
	if err != nil {
		if !IsCanceled(err) {
			log.Warnf("Failed to load history count from analytics: %v", err)
		}
		return 0, false
	}
	for _, mc := range analytics.ModelDistribution {
		if mc.Model == model {
			return mc.Count, true
		}
	}
	return 0, false
}

func (m *HistoryManager) view(h HistoryState) HistoryView {
	page := h.Page
	if page < 1 {
		page = 1
	}
	pages := TotalPages(h.Total, m.pageSize)
	if page > pages {
		pages = page
	}
	entries := FilterEntries(h.Entries, h.Query, h.Disease, h.MinConfidence)
	return HistoryView{
		Entries:       entries,
		PageEntries:   len(h.Entries),
		Page:          page,
		TotalPages:    pages,
		Total:         h.Total,
		Estimated:     h.Estimated,
		FirstDisabled: page == 1,
		PrevDisabled:  page == 1,
		NextDisabled:  page == pages,
		LastDisabled:  page == pages,
		Stats:         ComputeStats(entries),
		Diseases:      diseaseOptions(h.Entries),
		Model:         h.ModelFilter,
		Query:         h.Query,
		Disease:       h.Disease,
		MinConfidence: h.MinConfidence,
	}
}

// FilterEntries keeps entries matching the free-text query (disease, model
// or comment), the exact disease class and the minimum confidence percentage
func FilterEntries(entries []models.HistoryEntry, query, disease string, minConfidence float64) []models.HistoryEntry {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]models.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if disease != "" && e.PredictedClass != disease {
			continue
		}
		if minConfidence > 0 && ConfidencePercent(e.Confidence) < minConfidence {
			continue
		}
		if query != "" && !matchesQuery(e, query) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func matchesQuery(e models.HistoryEntry, query string) bool {
	fields := []string{
		e.PredictedClass,
		FormatDiseaseName(e.PredictedClass),
		e.ModelType,
		e.CommentValue(),
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

// ComputeStats derives total, average confidence and the most common
// disease. Ties keep the disease seen first.
func ComputeStats(entries []models.HistoryEntry) HistoryStats {
	stats := HistoryStats{Total: len(entries)}
	if len(entries) == 0 {
		return stats
	}

	var sum float64
	counts := make(map[string]int)
	var order []string
	for _, e := range entries {
		sum += e.Confidence
		if _, ok := counts[e.PredictedClass]; !ok {
			order = append(order, e.PredictedClass)
		}
		counts[e.PredictedClass]++
	}

	// order is first-seen order, so a strict comparison keeps the earliest on ties
	best, bestCount := "", 0
	for _, class := range order {
		if counts[class] > bestCount {
			best, bestCount = class, counts[class]
		}
	}
	stats.AverageConfidence = sum / float64(len(entries))
	stats.MostCommonDisease = best
	return stats
}

func diseaseOptions(entries []models.HistoryEntry) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range entries {
		if e.PredictedClass == "" || seen[e.PredictedClass] {
			continue
		}
		seen[e.PredictedClass] = true
		out = append(out, e.PredictedClass)
	}
	return out
}

// ExportFileName returns the download name of a CSV export made at now
func ExportFileName(now time.Time) string {
	return fmt.Sprintf("cropguard_history_%s.csv", now.UTC().Format("2006-01-02"))
}

// WriteCSV writes the header and one row per entry, in order
func WriteCSV(w io.Writer, entries []models.HistoryEntry) error {
	if len(entries) == 0 {
		return ErrNothingToExport
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, e := range entries {
		if err := cw.Write(csvRow(e)); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

func csvRow(e models.HistoryEntry) []string {
	date, clock := "", ""
	if t, ok := e.Time(); ok {
		date = t.Format("2006-01-02")
		clock = t.Format("15:04:05")
	}
	rating := ""
	if r := e.RatingValue(); r > 0 {
		rating = strconv.Itoa(r)
	}
	correct := ""
	if e.IsCorrect != nil {
		correct = "No"
		if *e.IsCorrect {
			correct = "Yes"
		}
	}
	return []string{
		date,
		clock,
		e.ModelType,
		e.PredictedClass,
		FormatConfidence(e.Confidence),
		rating,
		correct,
		e.CommentValue(),
	}
}

// IsNothingToExport reports whether err is the empty-export error
func IsNothingToExport(err error) bool {
	return errors.Is(err, ErrNothingToExport)
}
