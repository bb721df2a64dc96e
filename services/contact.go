package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"cropguard-web/models"

	"github.com/apex/log"
)

// Contact form limits
const (
	MaxMessageLength    = 1000
	MessageWarnLength   = 800
	MessageDangerLength = 950
)

// Contact form messages
const (
	MsgContactRequired = "Please fill in all required fields"
	MsgMessageTooLong  = "Message is too long (max 1000 characters)"
	MsgContactSent     = "Message sent successfully! We'll get back to you soon."
)

// ValidateContact trims the form and checks required fields and length
func ValidateContact(req models.ContactRequest) (models.ContactRequest, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Subject = strings.TrimSpace(req.Subject)
	req.Message = strings.TrimSpace(req.Message)

	if req.Name == "" || req.Email == "" || req.Message == "" {
		return req, &ValidationError{Message: MsgContactRequired}
	}
	if utf8.RuneCountInString(req.Message) > MaxMessageLength {
		return req, &ValidationError{Message: MsgMessageTooLong}
	}
	return req, nil
}

// CounterClass returns the character counter style for a message length
func CounterClass(length int) string {
	switch {
	case length > MessageDangerLength:
		return "danger"
	case length > MessageWarnLength:
		return "warn"
	}
	return ""
}

// ContactSender validates and forwards contact form messages
type ContactSender struct {
	api InferenceAPI
}

// NewContactSender creates a contact sender
func NewContactSender(api InferenceAPI) *ContactSender {
	return &ContactSender{api: api}
}

// Send validates req and posts it to the API
func (c *ContactSender) Send(ctx context.Context, req models.ContactRequest) (*models.ContactResponse, error) {
	req, err := ValidateContact(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.api.SubmitContact(ctx, req)
	if err != nil {
		return nil, err
	}
	log.WithField("email", req.Email).Info("Contact message sent")
	return resp, nil
}
