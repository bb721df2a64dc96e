package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Model types served by the inference API
const (
	ModelFruit = "fruit"
	ModelLeaf  = "leaf"
)

// IsValidModelType reports whether m names one of the detection pipelines
func IsValidModelType(m string) bool {
	return m == ModelFruit || m == ModelLeaf
}

// PredictionID is the identifier the API assigned to a prediction. The API
// may send it as a number or a string; the raw JSON token is kept so it can
// be echoed back unchanged.
type PredictionID struct {
	raw json.RawMessage
}

// NewPredictionID builds a string-valued identifier
func NewPredictionID(id string) PredictionID {
	raw, _ := json.Marshal(id)
	return PredictionID{raw: raw}
}

// IsZero reports whether no identifier was received
func (p PredictionID) IsZero() bool {
	trimmed := bytes.TrimSpace(p.raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`""`))
}

// String returns the identifier in human readable form
func (p PredictionID) String() string {
	if p.IsZero() {
		return ""
	}
	var s string
	if err := json.Unmarshal(p.raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(p.raw))
}

func (p PredictionID) MarshalJSON() ([]byte, error) {
	if p.IsZero() {
		return []byte("null"), nil
	}
	return p.raw, nil
}

func (p *PredictionID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] != '"' && trimmed[0] != 'n' {
		if _, err := strconv.ParseFloat(string(trimmed), 64); err != nil {
			return fmt.Errorf("prediction id must be a string or number, got %s", trimmed)
		}
	}
	p.raw = append(json.RawMessage(nil), trimmed...)
	return nil
}

// FlexBool decodes JSON booleans as well as the 0/1 integers some storage
// layers return for boolean columns
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1":
		*b = true
	case "false", "0":
		*b = false
	default:
		return fmt.Errorf("invalid boolean value %s", data)
	}
	return nil
}

// DiseaseInfo is the knowledge-base entry attached to a prediction
type DiseaseInfo struct {
	Type            string   `json:"type,omitempty"`
	Pathogen        string   `json:"pathogen,omitempty"`
	Severity        string   `json:"severity,omitempty"`
	EconomicImpact  string   `json:"economic_impact,omitempty"`
	Description     string   `json:"description,omitempty"`
	Symptoms        []string `json:"symptoms,omitempty"`
	Remedies        []string `json:"remedies,omitempty"`
	OrganicRemedies []string `json:"organic_remedies,omitempty"`
	Prevention      []string `json:"prevention,omitempty"`
	Maintenance     []string `json:"maintenance,omitempty"`
}

// Prediction is the response of POST /predict
type Prediction struct {
	PredictionID   PredictionID `json:"prediction_id"`
	ModelType      string       `json:"model_type"`
	PredictedClass string       `json:"predicted_class"`
	Confidence     float64      `json:"confidence"`
	ClassIndex     int          `json:"class_index"`
	Timestamp      string       `json:"timestamp,omitempty"`
	DiseaseInfo    DiseaseInfo  `json:"disease_info"`
}

// HistoryEntry is a past prediction enriched with optional user feedback
type HistoryEntry struct {
	ID             PredictionID `json:"id"`
	Timestamp      string       `json:"timestamp"`
	PredictedClass string       `json:"predicted_class"`
	Confidence     float64      `json:"confidence"`
	ModelType      string       `json:"model_type"`
	Rating         *int         `json:"rating"`
	IsCorrect      *FlexBool    `json:"is_correct"`
	Comment        *string      `json:"comment"`
}

// HistoryEntryFromPrediction converts a fresh prediction into a history entry
// without feedback
func HistoryEntryFromPrediction(p Prediction) HistoryEntry {
	return HistoryEntry{
		ID:             p.PredictionID,
		Timestamp:      p.Timestamp,
		PredictedClass: p.PredictedClass,
		Confidence:     p.Confidence,
		ModelType:      p.ModelType,
	}
}

// RatingValue returns the rating or 0 when unset
func (h HistoryEntry) RatingValue() int {
	if h.Rating == nil || *h.Rating < 0 || *h.Rating > 5 {
		return 0
	}
	return *h.Rating
}

// CommentValue returns the comment or an empty string
func (h HistoryEntry) CommentValue() string {
	if h.Comment == nil {
		return ""
	}
	return *h.Comment
}

// Time parses the entry timestamp
func (h HistoryEntry) Time() (time.Time, bool) {
	return ParseTimestamp(h.Timestamp)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp formats produced by the API
func ParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SystemStats is the response of GET /stats
type SystemStats struct {
	TotalPredictions int    `json:"total_predictions"`
	TotalUsers       int    `json:"total_users"`
	TotalContacts    int    `json:"total_contacts"`
	Version          string `json:"version,omitempty"`
	ContactEmail     string `json:"contact_email,omitempty"`
	ContactWhatsApp  string `json:"contact_whatsapp,omitempty"`
}

// ModelCount is one bar of the model distribution chart
type ModelCount struct {
	Model string `json:"model"`
	Count int    `json:"count"`
}

// DiseaseCount is one bar of the disease distribution chart
type DiseaseCount struct {
	Disease string `json:"disease"`
	Model   string `json:"model"`
	Count   int    `json:"count"`
}

// DailyCount is one bar of the daily activity chart
type DailyCount struct {
	Date  string `json:"date"`
	Model string `json:"model"`
	Count int    `json:"count"`
}

// SystemAccuracy holds the reported accuracy of each detection pipeline
type SystemAccuracy struct {
	FruitModel float64 `json:"fruit_model"`
	LeafModel  float64 `json:"leaf_model"`
}

// Analytics is the response of GET /analytics
type Analytics struct {
	TotalPredictions     int             `json:"total_predictions"`
	TotalUsers           int             `json:"total_users"`
	TotalContacts        int             `json:"total_contacts"`
	AverageConfidence    float64         `json:"average_confidence"`
	UserReportedAccuracy *float64        `json:"user_reported_accuracy,omitempty"`
	AverageRating        *float64        `json:"average_rating,omitempty"`
	ModelDistribution    []ModelCount    `json:"model_distribution,omitempty"`
	DiseaseDistribution  []DiseaseCount  `json:"disease_distribution,omitempty"`
	DailyPredictions     []DailyCount    `json:"daily_predictions,omitempty"`
	SystemAccuracy       *SystemAccuracy `json:"system_accuracy,omitempty"`
}

// FeedbackRequest is the body of POST /feedback
type FeedbackRequest struct {
	PredictionID PredictionID `json:"prediction_id"`
	Rating       int          `json:"rating"`
	IsCorrect    bool         `json:"is_correct"`
	Comment      string       `json:"comment"`
}

// ContactRequest is the body of POST /contact
type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// ContactResponse is the response of POST /contact
type ContactResponse struct {
	Message              string `json:"message,omitempty"`
	WhatsAppNotification string `json:"whatsapp_notification,omitempty"`
}

// ErrorResponse is the error body returned by the API
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status         string `json:"status"`
	Service        string `json:"service"`
	Version        string `json:"version"`
	Timestamp      string `json:"timestamp"`
	ActiveSessions int    `json:"active_sessions"`
}
