package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/oshokin/catpoint/internal/logger"
)

const (
	// catLabel is the label name the recognition service uses for cats.
	catLabel = "cat"
	// maxResponseSize caps the response body read from the service.
	maxResponseSize = 1 << 20
	// defaultMaxLabels is the number of labels requested from the service.
	defaultMaxLabels = 10
)

var (
	// ErrUnexpectedStatus is returned when the service answers with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected response status")
	// errEndpointRequired is returned when no endpoint is configured.
	errEndpointRequired = errors.New("endpoint must be provided")
)

// Label is a single detection returned by the recognition service.
type Label struct {
	// Name is the detected object class, e.g. "Cat".
	Name string `json:"name"`
	// Confidence is the detection confidence in percent.
	Confidence float32 `json:"confidence"`
}

// labelsResponse is the body returned by the recognition service.
type labelsResponse struct {
	Labels []Label `json:"labels"`
}

// HTTP asks a label-detection service whether an image contains a cat.
//
// The image is POSTed as the request body; the service answers with
// {"labels":[{"name":"Cat","confidence":97.5}]}. A cat is reported when a
// label named "cat" (case-insensitive) reaches the confidence threshold.
type HTTP struct {
	// endpoint is the service URL.
	endpoint string
	// apiKey is sent as a bearer token when set.
	apiKey string
	// client performs the requests.
	client *http.Client
	// timeout bounds a single call.
	timeout time.Duration
	// limiter throttles calls; nil means unlimited.
	limiter *rate.Limiter
}

// HTTPOption configures an HTTP analyzer.
type HTTPOption func(*HTTP)

// WithAPIKey sets the bearer token sent to the service.
func WithAPIKey(key string) HTTPOption {
	return func(h *HTTP) {
		h.apiKey = key
	}
}

// WithTimeout bounds each recognition call.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(h *HTTP) {
		if timeout > 0 {
			h.timeout = timeout
		}
	}
}

// WithRateLimit limits calls to perSecond with the given burst.
func WithRateLimit(perSecond float64, burst int) HTTPOption {
	return func(h *HTTP) {
		if perSecond > 0 {
			h.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(h *HTTP) {
		if client != nil {
			h.client = client
		}
	}
}

// NewHTTP creates an analyzer for the service at endpoint.
func NewHTTP(endpoint string, opts ...HTTPOption) (*HTTP, error) {
	if endpoint == "" {
		return nil, errEndpointRequired
	}

	h := &HTTP{
		endpoint: endpoint,
		client:   http.DefaultClient,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h, nil
}

// ImageContainsCat sends the image to the service and checks its labels.
func (h *HTTP) ImageContainsCat(ctx context.Context, image []byte, confidenceThreshold float32) (bool, error) {
	if len(image) == 0 {
		return false, ErrEmptyImage
	}

	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return false, fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	labels, err := h.detectLabels(ctx, image, confidenceThreshold)
	if err != nil {
		return false, err
	}

	logger.DebugKV(ctx, "Labels detected", "labels", labels, "threshold", confidenceThreshold)

	return ContainsCat(labels, confidenceThreshold), nil
}

// detectLabels performs the HTTP call and decodes the labels.
func (h *HTTP) detectLabels(ctx context.Context, image []byte, minConfidence float32) ([]Label, error) {
	if h.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	query := request.URL.Query()
	query.Set("max_labels", strconv.Itoa(defaultMaxLabels))
	query.Set("min_confidence", fmt.Sprintf("%.1f", minConfidence))
	request.URL.RawQuery = query.Encode()

	request.Header.Set("Content-Type", http.DetectContentType(image))
	request.Header.Set("Accept", "application/json")

	if h.apiKey != "" {
		request.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	response, err := h.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("call recognition service: %w", err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, response.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded labelsResponse
	if err = json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return decoded.Labels, nil
}

// ContainsCat reports whether any label is a cat with at least the given confidence.
func ContainsCat(labels []Label, confidenceThreshold float32) bool {
	for _, label := range labels {
		if strings.EqualFold(strings.TrimSpace(label.Name), catLabel) && label.Confidence >= confidenceThreshold {
			return true
		}
	}

	return false
}
