package views

import (
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"cropguard-web/models"
	"cropguard-web/services"
)

//go:embed templates/*.html
var templateFS embed.FS

// LayoutTemplate is the entry point every page renders through
const LayoutTemplate = "layout"

// Funcs are the helpers available to every template
func Funcs() template.FuncMap {
	return template.FuncMap{
		"diseaseName":      services.FormatDiseaseName,
		"modelName":        services.FormatModelName,
		"confidence":       services.FormatConfidence,
		"confidencePct":    services.ConfidencePercent,
		"confidenceClass":  services.ConfidenceClass,
		"confidenceStatus": services.ConfidenceStatus,
		"analyzingText":    services.AnalyzingText,
		"stars":            services.Stars,
		"counterClass":     services.CounterClass,
		"modelIcon":        modelIcon,
		"entryTime":        entryTime,
		"mb":               func(v float64) string { return fmt.Sprintf("%.2f MB", v) },
		"pct":              func(v float64) string { return fmt.Sprintf("%.1f", v) },
		"add":              func(a, b int) int { return a + b },
		"ratings":          func() []int { return []int{1, 2, 3, 4, 5} },
		"hasList":          func(l []string) bool { return len(l) > 0 },
		"isCorrect":        func(b *models.FlexBool) bool { return b != nil && bool(*b) },
		"dataURL":          previewURL,
	}
}

// Templates parses the embedded page templates
func Templates() (*template.Template, error) {
	t, err := template.New(LayoutTemplate).Funcs(Funcs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return t, nil
}

// MustTemplates is Templates for program start-up
func MustTemplates() *template.Template {
	return template.Must(Templates())
}

// previewURL marks a preview generated by the imaging package as a safe URL.
// Anything that is not an image data URL is dropped.
func previewURL(s string) template.URL {
	if !strings.HasPrefix(s, "data:image/") {
		return ""
	}
	return template.URL(s)
}

func modelIcon(model string) string {
	if model == models.ModelFruit {
		return "🍎"
	}
	return "🍃"
}

func entryTime(e models.HistoryEntry) string {
	t, ok := e.Time()
	if !ok {
		return e.Timestamp
	}
	return t.Format("Jan 2, 2006 " + time.Kitchen)
}
