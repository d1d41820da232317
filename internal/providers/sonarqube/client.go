// ABOUTME: SonarQube read API client for project measures and issues.
// ABOUTME: Validates every response shape before use and classifies issues by category.

package sonarqube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jfeddern/ScanRelay/internal/types"
	"github.com/jfeddern/ScanRelay/internal/validation"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	MeasuresEndpoint = "/api/measures/search_history"
	IssuesEndpoint   = "/api/issues/search"

	// DefaultPageSize covers every requested metric in a single measures page
	DefaultPageSize = 100

	systemName = "sonarqube"
)

// Recorder receives request and classification statistics. It may be nil.
type Recorder interface {
	ObserveRequest(system, endpoint string, statusCode int, duration time.Duration)
	AddIssues(category string, count int)
}

// Client talks to the SonarQube web API
type Client struct {
	host       string
	token      string
	httpClient *http.Client
	validator  *validation.Validator
	recorder   Recorder
	pageSize   int
	logger     *logrus.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithRecorder attaches a metrics recorder
func WithRecorder(recorder Recorder) Option {
	return func(c *Client) { c.recorder = recorder }
}

// WithPageSize sets the page size requested from paginated endpoints
func WithPageSize(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// NewClient creates a client. Configure must be called before any request.
func NewClient(logger *logrus.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		validator:  validation.Must(),
		pageSize:   DefaultPageSize,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configure sets the server host and optional token. It is called once at
// startup; the values are read-only afterwards.
func (c *Client) Configure(host, token string) error {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return fmt.Errorf("sonarqube host is required")
	}
	if _, err := url.ParseRequestURI(host); err != nil {
		return fmt.Errorf("invalid sonarqube host %q: %w", host, err)
	}

	c.host = host
	c.token = token

	c.logger.WithFields(logrus.Fields{
		"host":          host,
		"authenticated": token != "",
	}).Info("Configured SonarQube client")
	return nil
}

// Name returns the scan result source name
func (c *Client) Name() string {
	return systemName
}

// FetchPage sends one GET request and returns the raw response body
func (c *Client) FetchPage(ctx context.Context, endpoint string, query url.Values) (*Page, error) {
	if c.host == "" {
		return nil, fmt.Errorf("sonarqube client is not configured")
	}

	reqURL := c.host + endpoint
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	logger := c.logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"query":    query.Encode(),
	})
	logger.Debug("Sending GET request to SonarQube")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build sonarqube request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		// SonarQube user tokens are sent as the basic auth login with an empty password
		req.SetBasicAuth(c.token, "")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(endpoint, 0, start)
		return nil, &types.TransportError{System: systemName, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()
	c.observe(endpoint, resp.StatusCode, start)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.TransportError{System: systemName, Endpoint: endpoint, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &types.TransportError{
			System:     systemName,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", truncate(string(body), 200)),
		}
	}

	return &Page{Body: body}, nil
}

func (c *Client) observe(endpoint string, statusCode int, start time.Time) {
	if c.recorder != nil {
		c.recorder.ObserveRequest(systemName, endpoint, statusCode, time.Since(start))
	}
}

type measuresResponse struct {
	Measures []measure `json:"measures" validate:"required,dive"`
}

type measure struct {
	Metric  string         `json:"metric" validate:"required"`
	History []historyPoint `json:"history" validate:"dive"`
}

type historyPoint struct {
	Value *types.MetricValue `json:"value" validate:"required"`
}

// GetMeasures returns the latest value of every recognized metric for a project
func (c *Client) GetMeasures(ctx context.Context, projectKey string) (types.Measures, error) {
	logger := c.logger.WithFields(logrus.Fields{
		"operation":   "get_measures",
		"project_key": projectKey,
	})

	// The measures response fits into a single page
	query := url.Values{}
	query.Set("component", projectKey)
	query.Set("metrics", strings.Join(types.Categories, ","))
	query.Set("pageSize", strconv.Itoa(DefaultPageSize))

	page, err := c.FetchPage(ctx, MeasuresEndpoint, query)
	if err != nil {
		return nil, err
	}

	var resp measuresResponse
	if err := c.validator.DecodeJSON(page.Body, &resp, "response"); err != nil {
		logger.WithError(err).Warn("Measures response failed validation")
		return nil, err
	}

	measures := make(types.Measures, len(types.Categories))
	for _, m := range resp.Measures {
		if !isCategory(m.Metric) || len(m.History) == 0 {
			continue
		}
		measures[m.Metric] = float64(*m.History[len(m.History)-1].Value)
	}

	if missing := missingMetrics(measures); len(missing) > 0 {
		return nil, &types.MissingMetricError{Metrics: missing}
	}

	logger.WithField("measures", measures).Debug("Retrieved project measures")
	return measures, nil
}

type issuesResponse struct {
	Issues []types.Issue `json:"issues" validate:"required,dive"`
}

// GetIssues walks every issues page and groups the issues by category
func (c *Client) GetIssues(ctx context.Context, projectKey string) (types.IssueCategories, error) {
	logger := c.logger.WithFields(logrus.Fields{
		"operation":   "get_issues",
		"project_key": projectKey,
	})

	query := url.Values{}
	query.Set("componentKeys", projectKey)
	query.Set("pageSize", strconv.Itoa(c.pageSize))

	result := types.NewIssueCategories()
	dropped := 0

	paginator := c.FetchAllPages(IssuesEndpoint, query)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}

		var resp issuesResponse
		if err := c.validator.DecodeJSON(page.Body, &resp, "response"); err != nil {
			logger.WithError(err).WithField("page", page.Number).Warn("Issues response failed validation")
			return nil, err
		}

		for _, issue := range resp.Issues {
			category, ok := Classify(issue.Type)
			if !ok {
				dropped++
				continue
			}
			result[category] = append(result[category], issue)
		}
	}

	counts := make(logrus.Fields, len(result))
	for category, issues := range result {
		counts[category] = len(issues)
		if c.recorder != nil {
			c.recorder.AddIssues(category, len(issues))
		}
	}
	logger.WithFields(counts).WithFields(logrus.Fields{
		"pages":   paginator.TotalPages(),
		"dropped": dropped,
	}).Debug("Retrieved project issues")

	return result, nil
}

// GetScanResults retrieves measures and issues concurrently and aggregates them.
// Both reads run to completion; the first error is returned.
func (c *Client) GetScanResults(ctx context.Context, projectKey, analysedAt string) (*types.ScanResult, error) {
	var (
		g        errgroup.Group
		measures types.Measures
		issues   types.IssueCategories
	)

	g.Go(func() error {
		var err error
		measures, err = c.GetMeasures(ctx, projectKey)
		return err
	})

	g.Go(func() error {
		var err error
		issues, err = c.GetIssues(ctx, projectKey)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Aggregate(projectKey, analysedAt, measures, issues), nil
}

func isCategory(name string) bool {
	for _, category := range types.Categories {
		if category == name {
			return true
		}
	}
	return false
}

// missingMetrics lists the recognized metrics absent from found, in recognized
// order. found only ever holds recognized metrics.
func missingMetrics(found types.Measures) []string {
	var missing []string
	for _, category := range types.Categories {
		if _, ok := found[category]; !ok {
			missing = append(missing, category)
		}
	}
	return missing
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
