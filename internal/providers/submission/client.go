// ABOUTME: Submission API client for review status updates and artifact uploads.
// ABOUTME: Authenticates with machine-to-machine bearer tokens and retries transient failures.

package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jfeddern/ScanRelay/internal/types"
	"github.com/jfeddern/ScanRelay/internal/validation"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// ReviewTypeID must reference an existing review type or the API rejects the review
	ReviewTypeID = "c56a4180-65aa-42ec-a945-5fd21dec0501"

	ReviewsEndpoint = "/reviews"
	// ArtifactsEndpoint is the route template reported to the recorder
	ArtifactsEndpoint = "/submissions/{id}/artifacts"

	systemName = "submission-api"
)

// Recorder receives request statistics. It may be nil.
type Recorder interface {
	ObserveRequest(system, endpoint string, statusCode int, duration time.Duration)
}

// Config holds the submission API connection settings
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// Client implements the submission forwarder and artifact store against the submission API
type Client struct {
	baseURL     string
	httpClient  *retryablehttp.Client
	tokenSource oauth2.TokenSource
	validator   *validation.Validator
	recorder    Recorder
	logger      *logrus.Logger
}

// Option configures a Client
type Option func(*Client)

// WithRecorder attaches a metrics recorder
func WithRecorder(recorder Recorder) Option {
	return func(c *Client) { c.recorder = recorder }
}

// NewClient creates a submission API client. tokenSource supplies the bearer
// token for every request.
func NewClient(config Config, tokenSource oauth2.TokenSource, logger *logrus.Logger, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid submission API URL %q: %w", config.BaseURL, err)
	}
	if tokenSource == nil {
		return nil, fmt.Errorf("submission API token source is required")
	}

	httpClient := retryablehttp.NewClient()
	httpClient.Logger = NewLeveledLogger(logger)
	httpClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if config.Timeout > 0 {
		httpClient.HTTPClient.Timeout = config.Timeout
	}
	if config.RetryMax >= 0 {
		httpClient.RetryMax = config.RetryMax
	}
	if config.RetryWaitMin > 0 {
		httpClient.RetryWaitMin = config.RetryWaitMin
	}
	if config.RetryWaitMax > 0 {
		httpClient.RetryWaitMax = config.RetryWaitMax
	}

	c := &Client{
		baseURL:     baseURL,
		httpClient:  httpClient,
		tokenSource: tokenSource,
		validator:   validation.Must(),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CredentialsConfig holds the machine-to-machine client credentials
type CredentialsConfig struct {
	TokenURL     string
	Audience     string
	ClientID     string
	ClientSecret string
}

// NewTokenSource returns a caching client-credentials token source
func NewTokenSource(ctx context.Context, creds CredentialsConfig) oauth2.TokenSource {
	config := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     creds.TokenURL,
	}
	if creds.Audience != "" {
		config.EndpointParams = url.Values{"audience": {creds.Audience}}
	}
	return config.TokenSource(ctx)
}

// Name returns the forwarder name
func (c *Client) Name() string {
	return systemName
}

type reviewRequest struct {
	*types.ReviewStatusPayload
	TypeID string `json:"typeId"`
}

// UpdateReviewStatus validates the payload and creates a review for the submission
func (c *Client) UpdateReviewStatus(ctx context.Context, payload *types.ReviewStatusPayload) error {
	if payload == nil {
		return &types.ValidationError{Field: "payload", Message: `"payload" is required`}
	}
	if err := c.validator.Struct(payload); err != nil {
		return err
	}

	body, err := json.Marshal(reviewRequest{ReviewStatusPayload: payload, TypeID: ReviewTypeID})
	if err != nil {
		return fmt.Errorf("failed to encode review: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"submission_id": payload.SubmissionID,
		"score":         payload.Score,
	}).Info("Updating submission review status")

	return c.post(ctx, ReviewsEndpoint, ReviewsEndpoint, "application/json", body)
}

// UploadArtifact bundles content as <name>.json inside <name>.zip and attaches
// it to the submission
func (c *Client) UploadArtifact(ctx context.Context, submissionID, name string, content []byte) error {
	if strings.TrimSpace(submissionID) == "" {
		return &types.ValidationError{Field: "submissionId", Message: `"submissionId" is required`}
	}

	archive, err := BundleArtifact(name, content)
	if err != nil {
		return err
	}

	body, contentType, err := multipartArtifact(name+".zip", archive, ReviewTypeID)
	if err != nil {
		return err
	}

	endpoint := "/submissions/" + url.PathEscape(submissionID) + "/artifacts"
	c.logger.WithFields(logrus.Fields{
		"submission_id": submissionID,
		"artifact":      name,
		"size":          len(archive),
	}).Info("Uploading submission artifact")

	return c.post(ctx, ArtifactsEndpoint, endpoint, contentType, body)
}

// PutArtifact stores an artifact as a submission attachment
func (c *Client) PutArtifact(ctx context.Context, submissionID, name string, content []byte) error {
	return c.UploadArtifact(ctx, submissionID, name, content)
}

// post sends body to endpoint. route is the low-cardinality name recorded in metrics.
func (c *Client) post(ctx context.Context, route, endpoint, contentType string, body []byte) error {
	token, err := c.tokenSource.Token()
	if err != nil {
		return fmt.Errorf("failed to obtain submission API token: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build submission API request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	token.SetAuthHeader(req.Request)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(route, 0, start)
		return &types.TransportError{System: systemName, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()
	c.observe(route, resp.StatusCode, start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &types.TransportError{
			System:     systemName,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", bytes.TrimSpace(msg)),
		}
	}
	return nil
}

func (c *Client) observe(endpoint string, statusCode int, start time.Time) {
	if c.recorder != nil {
		c.recorder.ObserveRequest(systemName, endpoint, statusCode, time.Since(start))
	}
}
