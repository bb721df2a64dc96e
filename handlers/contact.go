package handlers

import (
	"net/http"
	"unicode/utf8"

	"cropguard-web/models"
	"cropguard-web/services"
	"cropguard-web/views"

	"github.com/gin-gonic/gin"
)

// ContactHandler handles the contact form
type ContactHandler struct {
	nav    *Navigator
	sender *services.ContactSender
}

// NewContactHandler creates a new contact handler
func NewContactHandler(nav *Navigator, sender *services.ContactSender) *ContactHandler {
	return &ContactHandler{nav: nav, sender: sender}
}

// Submit sends the contact form. The form is cleared only on success.
func (h *ContactHandler) Submit(c *gin.Context) {
	form := models.ContactRequest{
		Name:    c.PostForm("name"),
		Email:   c.PostForm("email"),
		Subject: c.PostForm("subject"),
		Message: c.PostForm("message"),
	}

	p := h.nav.NewPage(PageContact)
	resp, err := h.sender.Send(c.Request.Context(), form)
	if err != nil {
		p.Contact.Form = form
		status := alertFor(p, err, services.MsgContactFailed, services.MsgNetworkError)
		h.nav.Render(c, status, p, nil)
		return
	}

	alert := views.Alert{Kind: views.AlertSuccess, Message: services.MsgContactSent}
	if resp != nil {
		if resp.Message != "" {
			alert.Message = resp.Message
		}
		alert.Link = resp.WhatsAppNotification
	}
	p.Alerts = append(p.Alerts, alert)
	h.nav.Render(c, http.StatusOK, p, nil)
}

func fillContact(p *views.Page) {
	p.Contact.MaxLength = services.MaxMessageLength
	p.Contact.MessageLength = utf8.RuneCountInString(p.Contact.Form.Message)
	p.Contact.CounterClass = services.CounterClass(p.Contact.MessageLength)
	if p.Stats != nil {
		p.Contact.Email = p.Stats.ContactEmail
		p.Contact.WhatsApp = p.Stats.ContactWhatsApp
	}
}
