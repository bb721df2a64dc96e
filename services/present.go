package services

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// titleCase upper-cases the first letter of every word. Casers carry state,
// so each call gets its own.
func titleCase(s string) string {
	return cases.Title(language.English, cases.NoLower).String(s)
}

// FormatDiseaseName turns a class label like "Tomato___Late_blight" into
// "Tomato Late Blight"
func FormatDiseaseName(class string) string {
	words := strings.Fields(strings.ReplaceAll(class, "_", " "))
	return titleCase(strings.Join(words, " "))
}

// FormatModelName returns the display name of a model type
func FormatModelName(modelType string) string {
	if modelType == "" {
		return ""
	}
	return titleCase(modelType)
}

// ConfidencePercent converts a [0,1] confidence to a percentage rounded to
// one decimal, the value every threshold is checked against
func ConfidencePercent(confidence float64) float64 {
	return math.Round(confidence*1000) / 10
}

// FormatConfidence renders a [0,1] confidence as "97.3%"
func FormatConfidence(confidence float64) string {
	return fmt.Sprintf("%.1f%%", ConfidencePercent(confidence))
}

// ConfidenceClass returns the badge class for a percentage
func ConfidenceClass(percent float64) string {
	switch {
	case percent >= 95:
		return "high"
	case percent >= 80:
		return "medium"
	}
	return "low"
}

// ConfidenceStatus returns the label shown under the confidence bar
func ConfidenceStatus(percent float64) string {
	switch {
	case percent >= 95:
		return "Excellent"
	case percent >= 80:
		return "Good"
	}
	return "Fair"
}

// AnalyzingText is the loading message shown while a model runs
func AnalyzingText(modelType string) string {
	return fmt.Sprintf("Analyzing %s...", FormatModelName(modelType))
}

// Stars renders a 0-5 rating as filled and empty stars
func Stars(rating int) string {
	if rating < 0 {
		rating = 0
	}
	if rating > 5 {
		rating = 5
	}
	return strings.Repeat("★", rating) + strings.Repeat("☆", 5-rating)
}
