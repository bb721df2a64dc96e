package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cropguard-web/imaging"
	"cropguard-web/metrics"
	"cropguard-web/models"

	"github.com/apex/log"
	"github.com/google/uuid"
)

// API endpoints consumed by the frontend
const (
	EndPointPredict   = "/predict"
	EndPointFeedback  = "/feedback"
	EndPointAnalytics = "/analytics"
	EndPointHistory   = "/history"
	EndPointStats     = "/stats"
	EndPointContact   = "/contact"
)

const maxErrorBodyBytes = 64 << 10

// InferenceAPI is the remote service behind the frontend
type InferenceAPI interface {
	Predict(ctx context.Context, upload *imaging.Upload, modelType string) (*models.Prediction, error)
	SubmitFeedback(ctx context.Context, req models.FeedbackRequest) error
	GetAnalytics(ctx context.Context) (*models.Analytics, error)
	GetHistory(ctx context.Context, limit, offset int, modelType string) ([]models.HistoryEntry, error)
	GetStats(ctx context.Context) (*models.SystemStats, error)
	SubmitContact(ctx context.Context, req models.ContactRequest) (*models.ContactResponse, error)
}

// APIClient handles communication with the inference API
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a new inference API client
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Predict uploads an image for classification by the given model
func (c *APIClient) Predict(ctx context.Context, upload *imaging.Upload, modelType string) (*models.Prediction, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, uploadFileName(upload)))
	header.Set("Content-Type", upload.ContentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create image part: %w", err)
	}
	if _, err := part.Write(upload.Data); err != nil {
		return nil, fmt.Errorf("failed to write image part: %w", err)
	}
	if err := writer.WriteField("model_type", modelType); err != nil {
		return nil, fmt.Errorf("failed to write model type: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	var prediction models.Prediction
	if err := c.do(ctx, http.MethodPost, EndPointPredict, writer.FormDataContentType(), &body, &prediction); err != nil {
		return nil, err
	}
	if prediction.ModelType == "" {
		prediction.ModelType = modelType
	}
	return &prediction, nil
}

// SubmitFeedback records a user rating for a prediction
func (c *APIClient) SubmitFeedback(ctx context.Context, req models.FeedbackRequest) error {
	return c.doJSON(ctx, http.MethodPost, EndPointFeedback, req, nil)
}

// GetAnalytics fetches the aggregate analytics snapshot
func (c *APIClient) GetAnalytics(ctx context.Context) (*models.Analytics, error) {
	var analytics models.Analytics
	if err := c.doJSON(ctx, http.MethodGet, EndPointAnalytics, nil, &analytics); err != nil {
		return nil, err
	}
	return &analytics, nil
}

// GetHistory fetches one page of prediction history, newest first
func (c *APIClient) GetHistory(ctx context.Context, limit, offset int, modelType string) ([]models.HistoryEntry, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))
	if modelType != "" {
		query.Set("model_type", modelType)
	}

	var entries []models.HistoryEntry
	if err := c.doJSON(ctx, http.MethodGet, EndPointHistory+"?"+query.Encode(), nil, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	return entries, nil
}

// GetStats fetches the system counters shown in the navigation bar
func (c *APIClient) GetStats(ctx context.Context) (*models.SystemStats, error) {
	var stats models.SystemStats
	if err := c.doJSON(ctx, http.MethodGet, EndPointStats, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// SubmitContact sends a contact form message
func (c *APIClient) SubmitContact(ctx context.Context, req models.ContactRequest) (*models.ContactResponse, error) {
	var resp models.ContactResponse
	if err := c.doJSON(ctx, http.MethodPost, EndPointContact, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		reqBody, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", path, err)
		}
		body = bytes.NewReader(reqBody)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, contentType, body, out)
}

func (c *APIClient) do(ctx context.Context, method, path, contentType string, body io.Reader, out interface{}) error {
	endpoint := strings.SplitN(path, "?", 2)[0]
	start := time.Now()
	result := "ok"
	defer func() {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, result).Inc()
		metrics.UpstreamDurationSeconds.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		result = "invalid"
		return fmt.Errorf("failed to create %s request: %w", endpoint, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			result = "canceled"
			return fmt.Errorf("%s request canceled: %w", endpoint, ctx.Err())
		}
		result = "unavailable"
		log.WithFields(log.Fields{"endpoint": endpoint, "request_id": requestID}).Errorf("Inference API request failed: %v", err)
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result = "api_error"
		apiErr := &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode}
		var errResp models.ErrorResponse
		if data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes)); readErr == nil {
			if json.Unmarshal(data, &errResp) == nil {
				apiErr.Message = errResp.Error
			}
		}
		log.WithFields(log.Fields{"endpoint": endpoint, "status": resp.StatusCode, "request_id": requestID}).Warnf("Inference API error: %s", apiErr.Message)
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		result = "decode_error"
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

var extensionsByType = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// uploadFileName makes sure the name sent upstream carries an image
// extension matching the content, since the API filters on it
func uploadFileName(u *imaging.Upload) string {
	name := filepath.Base(strings.ReplaceAll(u.FileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif":
		return name
	}
	if want, ok := extensionsByType[u.ContentType]; ok {
		return strings.TrimSuffix(name, filepath.Ext(name)) + want
	}
	return name
}
