package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"cropguard-web/config"
	"cropguard-web/imaging"
	"cropguard-web/metrics"
	"cropguard-web/middleware"
	"cropguard-web/services"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// multipart boundaries and the other form fields on top of the image
const formOverhead = 1 << 20

// DetectHandler handles uploads, analysis and feedback
type DetectHandler struct {
	nav      *Navigator
	detector *services.Detector
	maxBytes int64
}

// NewDetectHandler creates a new detect handler
func NewDetectHandler(nav *Navigator, detector *services.Detector, cfg *config.Config) *DetectHandler {
	return &DetectHandler{
		nav:      nav,
		detector: detector,
		maxBytes: cfg.MaxUploadBytes(),
	}
}

// Upload validates the posted image and makes it the session's selection
func (h *DetectHandler) Upload(c *gin.Context) {
	s := middleware.SessionFrom(c)

	upload, err := h.readUpload(c)
	if err != nil {
		reason, sentinel := rejection(err)
		metrics.UploadRejectedTotal.WithLabelValues(reason).Inc()
		log.WithFields(log.Fields{"session": s.ID, "reason": reason}).Infof("Upload rejected: %v", err)
		h.reject(c, sentinel.Error())
		return
	}

	preview, err := imaging.BuildPreview(upload)
	if err != nil {
		metrics.UploadRejectedTotal.WithLabelValues("undecodable").Inc()
		log.WithField("session", s.ID).Warnf("Failed to decode upload: %v", err)
		h.reject(c, imaging.ErrUnsupportedType.Error())
		return
	}

	s.SelectFile(upload, preview)
	c.Redirect(http.StatusSeeOther, "/"+PageDetect)
}

// rejection maps a validation failure to its metric label and the error
// whose text is shown to the user
func rejection(err error) (string, error) {
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		return "too_large", imaging.ErrTooLarge
	case errors.Is(err, imaging.ErrEmpty):
		return "empty", imaging.ErrEmpty
	}
	return "unsupported_type", imaging.ErrUnsupportedType
}

func (h *DetectHandler) readUpload(c *gin.Context) (*imaging.Upload, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+formOverhead)

	header, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, imaging.ErrTooLarge
		}
		return nil, imaging.ErrEmpty
	}
	if header.Size > h.maxBytes {
		return nil, imaging.ErrTooLarge
	}

	f, err := header.Open()
	if err != nil {
		return nil, imaging.ErrEmpty
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		return nil, imaging.ErrEmpty
	}
	return imaging.Validate(header.Filename, header.Header.Get("Content-Type"), data, h.maxBytes)
}

// Remove clears the selected file and any result
func (h *DetectHandler) Remove(c *gin.Context) {
	middleware.SessionFrom(c).RemoveFile()
	c.Redirect(http.StatusSeeOther, "/"+PageDetect)
}

// Analyze runs the selected model on the session's image
func (h *DetectHandler) Analyze(c *gin.Context) {
	s := middleware.SessionFrom(c)
	modelType := c.PostForm("model_type")

	_, err := h.detector.Analyze(c.Request.Context(), s, modelType)
	if err != nil {
		p := h.nav.NewPage(PageDetect)
		p.Detect.ModelType = modelType
		status := alertFor(p, err, services.MsgAnalysisFailed, services.MsgNetworkError)
		if !services.IsCanceled(err) {
			log.WithFields(log.Fields{"session": s.ID, "model": modelType}).Warnf("Analysis failed: %v", err)
		}
		h.nav.Render(c, status, p, nil)
		return
	}
	c.Redirect(http.StatusSeeOther, "/"+PageDetect)
}

// Feedback submits the rating form for the displayed prediction
func (h *DetectHandler) Feedback(c *gin.Context) {
	s := middleware.SessionFrom(c)

	rating, _ := strconv.Atoi(c.PostForm("rating"))
	isCorrect, _ := strconv.ParseBool(c.DefaultPostForm("is_correct", "false"))
	in := services.FeedbackInput{
		Rating:    rating,
		IsCorrect: isCorrect,
		Comment:   c.PostForm("comment"),
	}

	p := h.nav.NewPage(PageDetect)
	if err := h.detector.SubmitFeedback(c.Request.Context(), s, in); err != nil {
		status := alertFor(p, err, services.MsgFeedbackFailed, services.MsgNetworkError)
		h.nav.Render(c, status, p, nil)
		return
	}
	p.Success(services.MsgFeedbackSubmitted)
	h.nav.Render(c, http.StatusOK, p, nil)
}

func (h *DetectHandler) reject(c *gin.Context, message string) {
	p := h.nav.NewPage(PageDetect)
	p.Error(message)
	h.nav.Render(c, http.StatusUnprocessableEntity, p, nil)
}
