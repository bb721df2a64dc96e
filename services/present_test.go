package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDiseaseName(t *testing.T) {
	testCases := []struct {
		class    string
		expected string
	}{
		{class: "Tomato___Late_blight", expected: "Tomato Late Blight"},
		{class: "apple_scab", expected: "Apple Scab"},
		{class: "Pepper,_bell___healthy", expected: "Pepper, Bell Healthy"},
		{class: "TYLCV", expected: "TYLCV"},
		{class: "", expected: ""},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, FormatDiseaseName(tc.class), tc.class)
	}
}

func TestConfidenceThresholds(t *testing.T) {
	testCases := []struct {
		confidence float64
		class      string
		status     string
		text       string
	}{
		{confidence: 1, class: "high", status: "Excellent", text: "100.0%"},
		{confidence: 0.95, class: "high", status: "Excellent", text: "95.0%"},
		{confidence: 0.9496, class: "high", status: "Excellent", text: "95.0%"},
		{confidence: 0.9494, class: "medium", status: "Good", text: "94.9%"},
		{confidence: 0.80, class: "medium", status: "Good", text: "80.0%"},
		{confidence: 0.7999, class: "medium", status: "Good", text: "80.0%"},
		{confidence: 0.7949, class: "low", status: "Fair", text: "79.5%"},
		{confidence: 0, class: "low", status: "Fair", text: "0.0%"},
	}

	for _, tc := range testCases {
		pct := ConfidencePercent(tc.confidence)
		assert.Equal(t, tc.class, ConfidenceClass(pct), "%v", tc.confidence)
		assert.Equal(t, tc.status, ConfidenceStatus(pct), "%v", tc.confidence)
		assert.Equal(t, tc.text, FormatConfidence(tc.confidence), "%v", tc.confidence)
	}
}

func TestAnalyzingText(t *testing.T) {
	assert.Equal(t, "Analyzing Fruit...", AnalyzingText("fruit"))
	assert.Equal(t, "Analyzing Leaf...", AnalyzingText("leaf"))
}

func TestStars(t *testing.T) {
	assert.Equal(t, "★★★☆☆", Stars(3))
	assert.Equal(t, "☆☆☆☆☆", Stars(0))
	assert.Equal(t, "★★★★★", Stars(9))
}
