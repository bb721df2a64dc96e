package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"cropguard-web/models"

	"github.com/apex/log"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	maxDiseaseBars  = 8
	maxActivityBars = 7
	noValue         = "—"
)

// Chart names served as PNG
const (
	ChartModels   = "models"
	ChartDiseases = "diseases"
	ChartActivity = "activity"
)

// Placeholders for empty chart blocks
const (
	MsgNoDistribution = "No distribution data available"
	MsgNoDiseases     = "No disease data available"
	MsgNoActivity     = "No activity data available"
)

var (
	// ErrNoChartData is returned when a chart has nothing to plot
	ErrNoChartData = errors.New("no chart data")
	// ErrUnknownChart is returned for chart names other than models, diseases and activity
	ErrUnknownChart = errors.New("unknown chart")
)

// Bar is one proportionally sized bar of a chart block
type Bar struct {
	Label   string
	Model   string
	Count   int
	Percent float64
}

// ChartBlock is a rendered chart or its placeholder
type ChartBlock struct {
	Name      string
	Bars      []Bar
	EmptyText string
}

// Empty reports whether the block renders its placeholder
func (b ChartBlock) Empty() bool {
	return len(b.Bars) == 0
}

// AnalyticsView is the analytics page view model
type AnalyticsView struct {
	Loaded            bool
	TotalPredictions  int
	TotalUsers        int
	TotalContacts     int
	AverageConfidence string
	UserAccuracy      string
	AverageRating     string
	FruitAccuracy     string
	LeafAccuracy      string
	Models            ChartBlock
	Diseases          ChartBlock
	Activity          ChartBlock
}

// BuildAnalyticsView turns an analytics snapshot into overview cards and
// chart bars. Missing optional metrics render as a placeholder.
func BuildAnalyticsView(a *models.Analytics) AnalyticsView {
	if a == nil {
		return AnalyticsView{
			UserAccuracy:      noValue,
			AverageRating:     noValue,
			AverageConfidence: noValue,
			FruitAccuracy:     noValue,
			LeafAccuracy:      noValue,
			Models:            ChartBlock{Name: ChartModels, EmptyText: MsgNoDistribution},
			Diseases:          ChartBlock{Name: ChartDiseases, EmptyText: MsgNoDiseases},
			Activity:          ChartBlock{Name: ChartActivity, EmptyText: MsgNoActivity},
		}
	}

	v := AnalyticsView{
		Loaded:            true,
		TotalPredictions:  a.TotalPredictions,
		TotalUsers:        a.TotalUsers,
		TotalContacts:     a.TotalContacts,
		AverageConfidence: noValue,
		UserAccuracy:      formatOptionalPercent(a.UserReportedAccuracy),
		AverageRating:     noValue,
		FruitAccuracy:     noValue,
		LeafAccuracy:      noValue,
		Models:            ModelBars(a.ModelDistribution),
		Diseases:          DiseaseBars(a.DiseaseDistribution),
		Activity:          ActivityBars(a.DailyPredictions),
	}
	if a.AverageConfidence > 0 {
		v.AverageConfidence = FormatConfidence(a.AverageConfidence)
	}
	if a.AverageRating != nil {
		v.AverageRating = fmt.Sprintf("%.1f", *a.AverageRating)
	}
	if a.SystemAccuracy != nil {
		v.FruitAccuracy = fmt.Sprintf("%.1f%%", a.SystemAccuracy.FruitModel)
		v.LeafAccuracy = fmt.Sprintf("%.1f%%", a.SystemAccuracy.LeafModel)
	}
	return v
}

func formatOptionalPercent(p *float64) string {
	if p == nil {
		return noValue
	}
	return fmt.Sprintf("%.1f%%", *p)
}

// ModelBars sizes each model by its share of all predictions
func ModelBars(dist []models.ModelCount) ChartBlock {
	block := ChartBlock{Name: ChartModels, EmptyText: MsgNoDistribution}
	total := 0
	for _, mc := range dist {
		total += mc.Count
	}
	for _, mc := range dist {
		block.Bars = append(block.Bars, Bar{
			Label:   modelLabel(mc.Model),
			Model:   mc.Model,
			Count:   mc.Count,
			Percent: share(mc.Count, total),
		})
	}
	return block
}

// DiseaseBars keeps the first eight diseases sized against the largest count
func DiseaseBars(dist []models.DiseaseCount) ChartBlock {
	block := ChartBlock{Name: ChartDiseases, EmptyText: MsgNoDiseases}
	max := 0
	for _, dc := range dist {
		if dc.Count > max {
			max = dc.Count
		}
	}
	for i, dc := range dist {
		if i == maxDiseaseBars {
			break
		}
		block.Bars = append(block.Bars, Bar{
			Label:   FormatDiseaseName(dc.Disease),
			Model:   dc.Model,
			Count:   dc.Count,
			Percent: share(dc.Count, max),
		})
	}
	return block
}

// ActivityBars keeps the last seven days sized against the largest count
func ActivityBars(days []models.DailyCount) ChartBlock {
	block := ChartBlock{Name: ChartActivity, EmptyText: MsgNoActivity}
	max := 0
	for _, d := range days {
		if d.Count > max {
			max = d.Count
		}
	}
	start := 0
	if len(days) > maxActivityBars {
		start = len(days) - maxActivityBars
	}
	for _, d := range days[start:] {
		block.Bars = append(block.Bars, Bar{
			Label:   shortDate(d.Date),
			Model:   d.Model,
			Count:   d.Count,
			Percent: share(d.Count, max),
		})
	}
	return block
}

func share(n, of int) float64 {
	if of <= 0 {
		return 0
	}
	return math.Round(float64(n)/float64(of)*1000) / 10
}

func modelLabel(model string) string {
	switch model {
	case models.ModelFruit:
		return "Fruit Detection"
	case models.ModelLeaf:
		return "Leaf Detection"
	}
	return FormatModelName(model) + " Detection"
}

func shortDate(date string) string {
	if t, ok := models.ParseTimestamp(date); ok {
		return t.Format("Jan 2")
	}
	return date
}

// AnalyticsLoader fetches the analytics snapshot for a session
type AnalyticsLoader struct {
	api InferenceAPI
}

// NewAnalyticsLoader creates an analytics loader
func NewAnalyticsLoader(api InferenceAPI) *AnalyticsLoader {
	return &AnalyticsLoader{api: api}
}

// Load fetches analytics and stores the snapshot in the session unless a
// newer load replaced it
func (l *AnalyticsLoader) Load(ctx context.Context, s *Session) (*models.Analytics, error) {
	ctx, ticket := s.Begin(ctx, KindAnalytics)
	defer s.End(ticket)

	analytics, err := l.api.GetAnalytics(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Apply(ticket, func(s *Session) { s.analytics = analytics }); err != nil {
		return nil, err
	}
	return analytics, nil
}

var barColors = map[string]drawing.Color{
	models.ModelFruit: drawing.ColorFromHex("e67e22"),
	models.ModelLeaf:  drawing.ColorFromHex("27ae60"),
}

// ChartRenderer draws chart blocks as PNG bar charts
type ChartRenderer struct {
	Width  int
	Height int
}

// NewChartRenderer creates a renderer producing images of the given size
func NewChartRenderer(width, height int) *ChartRenderer {
	return &ChartRenderer{Width: width, Height: height}
}

// BlockFor picks the named chart block out of an analytics snapshot
func BlockFor(a *models.Analytics, name string) (ChartBlock, error) {
	view := BuildAnalyticsView(a)
	switch name {
	case ChartModels:
		return view.Models, nil
	case ChartDiseases:
		return view.Diseases, nil
	case ChartActivity:
		return view.Activity, nil
	}
	return ChartBlock{}, fmt.Errorf("%w: %s", ErrUnknownChart, name)
}

// Render writes block as a PNG bar chart of raw counts
func (r *ChartRenderer) Render(w io.Writer, title string, block ChartBlock) error {
	if block.Empty() {
		return ErrNoChartData
	}

	max := 0
	bars := make([]chart.Value, 0, len(block.Bars))
	for _, b := range block.Bars {
		if b.Count > max {
			max = b.Count
		}
		style := chart.Style{StrokeWidth: 0}
		if c, ok := barColors[b.Model]; ok {
			style.FillColor = c
			style.StrokeColor = c
		}
		bars = append(bars, chart.Value{Label: b.Label, Value: float64(b.Count), Style: style})
	}
	if max == 0 {
		max = 1
	}

	barWidth := 40
	if n := len(bars); n > 0 && r.Width/(n*2) < barWidth {
		barWidth = r.Width / (n * 2)
	}

	graph := chart.BarChart{
		Title:      title,
		Width:      r.Width,
		Height:     r.Height,
		BarWidth:   barWidth,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: float64(max)},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%d", int(f))
				}
				return ""
			},
		},
		Bars: bars,
	}

	if err := graph.Render(chart.PNG, w); err != nil {
		log.Errorf("Failed to render %s chart: %v", block.Name, err)
		return fmt.Errorf("failed to render %s chart: %w", block.Name, err)
	}
	return nil
}
