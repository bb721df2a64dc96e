package services

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"cropguard-web/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(class string, confidence float64) models.HistoryEntry {
	return models.HistoryEntry{PredictedClass: class, Confidence: confidence, ModelType: models.ModelLeaf}
}

// servePages answers /history with total entries split by limit/offset
func servePages(total int) {
	api.handle(EndPointHistory, func(w http.ResponseWriter, r *http.Request) {
		q, _ := url.ParseQuery(r.URL.RawQuery)
		var limit, offset int
		fmt.Sscan(q.Get("limit"), &limit)
		fmt.Sscan(q.Get("offset"), &offset)

		var items []string
		for i := offset; i < total && i < offset+limit; i++ {
			items = append(items, fmt.Sprintf(`{"id":%d,"timestamp":"2024-03-01T10:00:00","predicted_class":"Apple_scab","confidence":0.9,"model_type":"fruit"}`, total-i))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, "[%s]", strings.Join(items, ","))
	})
}

func TestTotalPages(t *testing.T) {
	testCases := []struct {
		count, limit, expected int
	}{
		{0, 15, 1},
		{1, 15, 1},
		{15, 15, 1},
		{16, 15, 2},
		{45, 15, 3},
		{46, 15, 4},
		{10, 0, 1},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, TotalPages(tc.count, tc.limit), "%d/%d", tc.count, tc.limit)
	}
}

func TestTargetPage(t *testing.T) {
	testCases := []struct {
		name      string
		current   int
		pages     int
		action    string
		requested int
		expected  int
	}{
		{name: "first", current: 3, pages: 5, action: ActionFirst, expected: 1},
		{name: "prev", current: 3, pages: 5, action: ActionPrev, expected: 2},
		{name: "prev on first", current: 1, pages: 5, action: ActionPrev, expected: 1},
		{name: "next", current: 3, pages: 5, action: ActionNext, expected: 4},
		{name: "next on last", current: 5, pages: 5, action: ActionNext, expected: 5},
		{name: "last", current: 2, pages: 5, action: ActionLast, expected: 5},
		{name: "refresh", current: 4, pages: 5, action: ActionRefresh, expected: 1},
		{name: "explicit", current: 1, pages: 5, requested: 3, expected: 3},
		{name: "explicit beyond", current: 1, pages: 5, requested: 9, expected: 5},
		{name: "zero pages", current: 3, pages: 0, action: ActionNext, expected: 1},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, TargetPage(tc.current, tc.pages, tc.action, tc.requested), tc.name)
	}
}

func TestComputeStats_TieKeepsFirstSeen(t *testing.T) {
	entries := []models.HistoryEntry{
		entry("Tomato_Early_blight", 0.9),
		entry("Apple_scab", 0.8),
		entry("Apple_scab", 0.7),
		entry("Tomato_Early_blight", 0.6),
	}

	stats := ComputeStats(entries)
	assert.Equal(t, 4, stats.Total)
	assert.InDelta(t, 0.75, stats.AverageConfidence, 1e-9)
	assert.Equal(t, "Tomato_Early_blight", stats.MostCommonDisease)

	stats = ComputeStats(append(entries, entry("Apple_scab", 0.5)))
	assert.Equal(t, "Apple_scab", stats.MostCommonDisease)

	assert.Equal(t, HistoryStats{}, ComputeStats(nil))
}

func TestComputeStats_TieGoesToEarliestNotFirstToReachCount(t *testing.T) {
	testCases := []struct {
		name    string
		classes []string
		want    string
	}{
		{"later class reaches the tie first", []string{"A", "B", "B", "A"}, "A"},
		{"three-way tie", []string{"C", "B", "A", "A", "B", "C"}, "C"},
		{"strict winner", []string{"A", "B", "B"}, "B"},
		{"single entry", []string{"A"}, "A"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var entries []models.HistoryEntry
			for _, class := range tc.classes {
				entries = append(entries, entry(class, 0.5))
			}
			assert.Equal(t, tc.want, ComputeStats(entries).MostCommonDisease)
		})
	}
}

func TestFilterEntries(t *testing.T) {
	comment := "spots on the fruit"
	entries := []models.HistoryEntry{
		entry("Tomato_Late_blight", 0.97),
		{PredictedClass: "Apple_scab", Confidence: 0.82, ModelType: models.ModelFruit, Comment: &comment},
		entry("Potato_healthy", 0.6),
	}

	assert.Len(t, FilterEntries(entries, "", "", 0), 3)
	assert.Len(t, FilterEntries(entries, "late blight", "", 0), 1)
	assert.Len(t, FilterEntries(entries, "SPOTS", "", 0), 1)
	assert.Len(t, FilterEntries(entries, "fruit", "", 0), 1)
	assert.Len(t, FilterEntries(entries, "", "Potato_healthy", 0), 1)
	assert.Len(t, FilterEntries(entries, "", "", 80), 2)
	assert.Len(t, FilterEntries(entries, "blight", "", 98), 0)
}

func TestWriteCSV(t *testing.T) {
	rating := 4
	correct := models.FlexBool(true)
	comment := `said "wow", then left`
	entries := []models.HistoryEntry{
		{Timestamp: "2024-03-01T10:15:30", PredictedClass: "Apple_scab", Confidence: 0.913, ModelType: "fruit", Rating: &rating, IsCorrect: &correct, Comment: &comment},
		{Timestamp: "2024-03-01T09:00:00", PredictedClass: "Tomato_healthy", Confidence: 0.5, ModelType: "leaf"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, entries))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Time,Model Type,Disease,Confidence,Rating,Correct,Comment", lines[0])
	assert.Equal(t, `2024-03-01,10:15:30,fruit,Apple_scab,91.3%,4,Yes,"said ""wow"", then left"`, lines[1])
	assert.Equal(t, "2024-03-01,09:00:00,leaf,Tomato_healthy,50.0%,,,", lines[2])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, nil)
	assert.True(t, IsNothingToExport(err))
	assert.Equal(t, 0, buf.Len())
}

func TestExportFileName(t *testing.T) {
	assert.Equal(t, "cropguard_history_2024-03-01.csv", ExportFileName(time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)))
}

func TestHistoryManager_Pagination(t *testing.T) {
	it(func() {
		api.respondJSON(EndPointStats, http.StatusOK, `{"total_predictions":40}`)
		servePages(40)
		m := NewHistoryManager(client, 15)
		s := newSession("s1")

		view, err := m.Load(context.Background(), s, HistoryQuery{})
		require.NoError(t, err)
		assert.Equal(t, 1, view.Page)
		assert.Equal(t, 3, view.TotalPages)
		assert.Len(t, view.Entries, 15)
		assert.True(t, view.FirstDisabled)
		assert.True(t, view.PrevDisabled)
		assert.False(t, view.NextDisabled)
		assert.False(t, view.Estimated)

		view, err = m.Load(context.Background(), s, HistoryQuery{Action: ActionLast})
		require.NoError(t, err)
		assert.Equal(t, 3, view.Page)
		assert.Len(t, view.Entries, 10)
		assert.True(t, view.NextDisabled)
		assert.True(t, view.LastDisabled)
		assert.Equal(t, "limit=15&offset=30", api.last().Query)

		view, err = m.Load(context.Background(), s, HistoryQuery{Action: ActionNext})
		require.NoError(t, err)
		assert.Equal(t, 3, view.Page)

		view, err = m.Load(context.Background(), s, HistoryQuery{Action: ActionPrev})
		require.NoError(t, err)
		assert.Equal(t, 2, view.Page)

		view, err = m.Load(context.Background(), s, HistoryQuery{Action: ActionRefresh})
		require.NoError(t, err)
		assert.Equal(t, 1, view.Page)
	})
}

func TestHistoryManager_FilterOnlyDoesNotRefetch(t *testing.T) {
	it(func() {
		api.respondJSON(EndPointStats, http.StatusOK, `{"total_predictions":3}`)
		servePages(3)
		m := NewHistoryManager(client, 15)
		s := newSession("s1")

		_, err := m.Load(context.Background(), s, HistoryQuery{})
		require.NoError(t, err)
		calls := api.count()

		view, err := m.Load(context.Background(), s, HistoryQuery{Query: "no such disease"})
		require.NoError(t, err)
		assert.Equal(t, calls, api.count())
		assert.True(t, view.NoMatches())
		assert.False(t, view.Empty())

		_, err = m.Load(context.Background(), s, HistoryQuery{Reload: true})
		require.NoError(t, err)
		assert.Greater(t, api.count(), calls)
	})
}

func TestHistoryManager_ModelFilterUsesAnalyticsCount(t *testing.T) {
	it(func() {
		api.respondJSON(EndPointAnalytics, http.StatusOK, `{"model_distribution":[{"model":"fruit","count":20},{"model":"leaf","count":5}]}`)
		servePages(20)
		m := NewHistoryManager(client, 15)
		s := newSession("s1")

		view, err := m.Load(context.Background(), s, HistoryQuery{Model: models.ModelFruit})
		require.NoError(t, err)
		assert.Equal(t, 2, view.TotalPages)
		assert.Equal(t, 20, view.Total)
		assert.Equal(t, models.ModelFruit, view.Model)
		assert.Contains(t, api.last().Query, "model_type=fruit")
	})
}

func TestHistoryManager_EstimatesWithoutCount(t *testing.T) {
	it(func() {
		api.respondJSON(EndPointStats, http.StatusInternalServerError, `{"error":"db down"}`)
		servePages(40)
		m := NewHistoryManager(client, 15)
		s := newSession("s1")

		view, err := m.Load(context.Background(), s, HistoryQuery{})
		require.NoError(t, err)
		assert.True(t, view.Estimated)
		assert.Equal(t, 2, view.TotalPages, "a full page implies at least one more")

		view, err = m.Load(context.Background(), s, HistoryQuery{Action: ActionNext})
		require.NoError(t, err)
		assert.Equal(t, 2, view.Page)
		assert.Equal(t, 3, view.TotalPages)
	})
}

func TestHistoryManager_Empty(t *testing.T) {
	it(func() {
		api.respondJSON(EndPointStats, http.StatusOK, `{"total_predictions":0}`)
		api.respondJSON(EndPointHistory, http.StatusOK, `[]`)
		m := NewHistoryManager(client, 15)
		s := newSession("s1")

		view, err := m.Load(context.Background(), s, HistoryQuery{Action: ActionLast})
		require.NoError(t, err)
		assert.True(t, view.Empty())
		assert.Equal(t, 1, view.Page)
		assert.Equal(t, 1, view.TotalPages)
		assert.True(t, view.FirstDisabled)
		assert.True(t, view.LastDisabled)
	})
}

func TestHistoryManager_StaleResponseIsDropped(t *testing.T) {
	it(func() {
		api.respondJSON(EndPointStats, http.StatusOK, `{"total_predictions":40}`)
		servePages(40)
		m := NewHistoryManager(client, 15)
		s := newSession("s1")

		_, err := m.Load(context.Background(), s, HistoryQuery{})
		require.NoError(t, err)

		started := make(chan struct{})
		release := make(chan struct{})
		api.handle(EndPointStats, func(w http.ResponseWriter, r *http.Request) {
			close(started)
			select {
			case <-release:
			case <-r.Context().Done():
			}
		})

		done := make(chan error, 1)
		go func() {
			_, err := m.Load(context.Background(), s, HistoryQuery{Action: ActionLast})
			done <- err
		}()
		<-started

		api.respondJSON(EndPointStats, http.StatusOK, `{"total_predictions":40}`)
		view, err := m.Load(context.Background(), s, HistoryQuery{Action: ActionNext})
		require.NoError(t, err)
		assert.Equal(t, 2, view.Page)

		close(release)
		assert.True(t, IsCanceled(<-done))
		assert.Equal(t, 2, s.History().Page)
	})
}
