package services

import (
	"context"
	"unicode/utf8"

	"cropguard-web/imaging"
	"cropguard-web/models"

	"github.com/apex/log"
)

// MaxCommentLength is the longest feedback comment accepted
const MaxCommentLength = 500

// Feedback and detection validation messages
const (
	MsgSelectModel       = "Please select a detection type (Fruit or Leaf)"
	MsgNoPrediction      = "No prediction to rate"
	MsgSelectRating      = "Please select a rating"
	MsgFeedbackDone      = "Feedback has already been submitted for this prediction"
	MsgCommentTooLong    = "Comment is too long (max 500 characters)"
	MsgFeedbackSubmitted = "Feedback submitted successfully! Thank you for helping us improve."
)

// Detector runs predictions and records feedback for a session
type Detector struct {
	api InferenceAPI
}

// NewDetector creates a new detector
func NewDetector(api InferenceAPI) *Detector {
	return &Detector{api: api}
}

// Analyze sends the session's selected image to the given model. A newer
// analysis, or a new file selected meanwhile, makes this result stale and
// ErrSuperseded is returned instead.
func (d *Detector) Analyze(ctx context.Context, s *Session, modelType string) (*models.Prediction, error) {
	upload := s.Upload()
	if upload == nil {
		return nil, &ValidationError{Message: imaging.ErrEmpty.Error()}
	}
	if !models.IsValidModelType(modelType) {
		return nil, &ValidationError{Message: MsgSelectModel}
	}

	ctx, ticket := s.Begin(ctx, KindAnalyze)
	defer s.End(ticket)
	s.StartAnalysis()

	prediction, err := d.api.Predict(ctx, upload, modelType)
	if err != nil {
		_ = s.Apply(ticket, func(s *Session) {
			if s.upload == upload {
				s.setStage(StageFilePreviewed)
			}
		})
		return nil, err
	}

	stale := false
	err = s.Apply(ticket, func(s *Session) {
		if s.upload != upload {
			stale = true
			return
		}
		s.showResult(prediction)
	})
	if err != nil {
		return nil, err
	}
	if stale {
		return nil, ErrSuperseded
	}

	log.WithFields(log.Fields{
		"session":    s.ID,
		"model":      modelType,
		"class":      prediction.PredictedClass,
		"confidence": prediction.Confidence,
	}).Info("Prediction displayed")
	return prediction, nil
}

// FeedbackInput is the rating form as submitted
type FeedbackInput struct {
	Rating    int
	IsCorrect bool
	Comment   string
}

// SubmitFeedback rates the session's current prediction
func (d *Detector) SubmitFeedback(ctx context.Context, s *Session, in FeedbackInput) error {
	prediction, submitted := s.CurrentPrediction()
	if prediction == nil || prediction.PredictionID.IsZero() {
		return &ValidationError{Message: MsgNoPrediction}
	}
	if submitted {
		return &ValidationError{Message: MsgFeedbackDone}
	}
	if in.Rating < 1 || in.Rating > 5 {
		return &ValidationError{Message: MsgSelectRating}
	}
	if utf8.RuneCountInString(in.Comment) > MaxCommentLength {
		return &ValidationError{Message: MsgCommentTooLong}
	}

	req := models.FeedbackRequest{
		PredictionID: prediction.PredictionID,
		Rating:       in.Rating,
		IsCorrect:    in.IsCorrect,
		Comment:      in.Comment,
	}
	if err := d.api.SubmitFeedback(ctx, req); err != nil {
		return err
	}

	if !s.MarkFeedbackSubmitted(prediction.PredictionID) {
		log.WithField("session", s.ID).Warn("Feedback stored for a prediction that is no longer displayed")
	}
	return nil
}
