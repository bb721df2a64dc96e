package views

import (
	"cropguard-web/models"
	"cropguard-web/services"
)

// Alert kinds
const (
	AlertSuccess = "success"
	AlertError   = "error"
	AlertInfo    = "info"
)

// Alert is a dismissible banner shown above the page
type Alert struct {
	Kind    string
	Message string
	Link    string
}

// NavItem is one entry of the navigation bar
type NavItem struct {
	Name   string
	Label  string
	Icon   string
	Active bool
}

// Tab is one research tab
type Tab struct {
	Name   string
	Label  string
	Active bool
}

// ResearchView is the research page view model
type ResearchView struct {
	Tab           string
	Tabs          []Tab
	FruitAccuracy string
	LeafAccuracy  string
}

// ContactView is the contact page view model
type ContactView struct {
	Form          models.ContactRequest
	MessageLength int
	CounterClass  string
	MaxLength     int
	WhatsApp      string
	Email         string
}

// DetectView is the detection page view model
type DetectView struct {
	services.SessionView
	ModelType        string
	MaxUploadMB      int
	MaxCommentLength int
}

// Page is the data handed to the layout template
type Page struct {
	Name             string
	Title            string
	Version          string
	Nav              []NavItem
	Stats            *models.SystemStats
	Alerts           []Alert
	SearchDebounceMS int64

	Detect    DetectView
	Analytics services.AnalyticsView
	History   services.HistoryView
	Research  ResearchView
	Contact   ContactView
}

// AddAlert appends a banner
func (p *Page) AddAlert(kind, message string) {
	p.Alerts = append(p.Alerts, Alert{Kind: kind, Message: message})
}

// Error appends an error banner
func (p *Page) Error(message string) {
	p.AddAlert(AlertError, message)
}

// Success appends a success banner
func (p *Page) Success(message string) {
	p.AddAlert(AlertSuccess, message)
}
