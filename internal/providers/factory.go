// ABOUTME: Factory for creating scan result sources, submission forwarders, and artifact stores.
// ABOUTME: Centralizes provider instantiation and configuration logic.

package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jfeddern/ScanRelay/internal/config"
	"github.com/jfeddern/ScanRelay/internal/engine"
	"github.com/jfeddern/ScanRelay/internal/providers/aws"
	"github.com/jfeddern/ScanRelay/internal/providers/kube"
	"github.com/jfeddern/ScanRelay/internal/providers/local"
	"github.com/jfeddern/ScanRelay/internal/providers/mock"
	"github.com/jfeddern/ScanRelay/internal/providers/sonarqube"
	"github.com/jfeddern/ScanRelay/internal/providers/submission"
	"github.com/sirupsen/logrus"
)

// ProviderConfig holds configuration for creating providers
type ProviderConfig struct {
	MockMode    bool // Enable mock providers for local testing
	HTTPTimeout time.Duration

	SonarQubeHost     string
	SonarQubeToken    string
	SonarQubePageSize int

	SubmissionAPIURL   string
	SubmissionRetryMax int
	Credentials        submission.CredentialsConfig

	S3          aws.S3Config
	ArtifactDir string

	Recorder Recorder
}

// NewProviderConfig derives provider settings from the service configuration
func NewProviderConfig(cfg *config.Config, recorder Recorder) *ProviderConfig {
	return &ProviderConfig{
		MockMode:           cfg.MockMode,
		HTTPTimeout:        cfg.HTTPTimeout,
		SonarQubeHost:      cfg.SonarQube.Host,
		SonarQubeToken:     cfg.SonarQube.Token,
		SonarQubePageSize:  cfg.SonarQube.PageSize,
		SubmissionAPIURL:   cfg.Submission.APIURL,
		SubmissionRetryMax: cfg.Submission.RetryMax,
		Credentials: submission.CredentialsConfig{
			TokenURL:     cfg.Auth0.URL,
			Audience:     cfg.Auth0.Audience,
			ClientID:     cfg.Auth0.ClientID,
			ClientSecret: cfg.Auth0.ClientSecret,
		},
		S3: aws.S3Config{
			Bucket:        cfg.AWS.S3Bucket,
			Region:        cfg.AWS.Region,
			Prefix:        cfg.AWS.S3Prefix,
			AssumeRoleARN: cfg.AWS.AssumeRoleARN,
		},
		ArtifactDir: cfg.ArtifactDir,
		Recorder:    recorder,
	}
}

// CreateScanResultSource creates a scan result source based on configuration
func CreateScanResultSource(config *ProviderConfig, logger *logrus.Logger) (engine.ScanResultSource, error) {
	if config.MockMode {
		logger.Info("Using mock scan result source for testing")
		return mock.NewMockSonarQubeSource(logger), nil
	}

	opts := []sonarqube.Option{sonarqube.WithPageSize(config.SonarQubePageSize)}
	if config.HTTPTimeout > 0 {
		opts = append(opts, sonarqube.WithHTTPClient(&http.Client{Timeout: config.HTTPTimeout}))
	}
	if config.Recorder != nil {
		opts = append(opts, sonarqube.WithRecorder(config.Recorder))
	}

	client := sonarqube.NewClient(logger, opts...)
	if err := client.Configure(config.SonarQubeHost, config.SonarQubeToken); err != nil {
		return nil, err
	}
	return client, nil
}

// CreateSubmissionForwarder creates the submission API forwarder
func CreateSubmissionForwarder(ctx context.Context, config *ProviderConfig, logger *logrus.Logger) (engine.SubmissionForwarder, error) {
	if config.MockMode {
		logger.Info("Using mock submission API for testing")
		return mock.NewMockSubmissionAPI(logger), nil
	}

	return createSubmissionClient(ctx, config, logger)
}

func createSubmissionClient(ctx context.Context, config *ProviderConfig, logger *logrus.Logger) (*submission.Client, error) {
	var opts []submission.Option
	if config.Recorder != nil {
		opts = append(opts, submission.WithRecorder(config.Recorder))
	}

	return submission.NewClient(submission.Config{
		BaseURL:  config.SubmissionAPIURL,
		Timeout:  config.HTTPTimeout,
		RetryMax: config.SubmissionRetryMax,
	}, submission.NewTokenSource(ctx, config.Credentials), logger, opts...)
}

// CreateArtifactStore creates the store for aggregated scan results. S3 is used
// when a bucket is configured, then a local directory, then the submission API.
// forwarder is reused as the fallback store when it can store artifacts.
func CreateArtifactStore(ctx context.Context, config *ProviderConfig, forwarder engine.SubmissionForwarder, logger *logrus.Logger) (engine.ArtifactStore, error) {
	switch {
	case config.S3.Bucket != "" && !config.MockMode:
		return aws.NewS3ArtifactStore(ctx, config.S3, logger)
	case config.ArtifactDir != "":
		return local.NewLocalArtifactStore(config.ArtifactDir, logger), nil
	}

	if store, ok := forwarder.(engine.ArtifactStore); ok {
		logger.WithField("store", store.Name()).Info("No artifact store configured, storing scan results via submission API")
		return store, nil
	}

	if config.MockMode {
		return mock.NewMockSubmissionAPI(logger), nil
	}
	return createSubmissionClient(ctx, config, logger)
}

// CreateProviders creates every provider the engine needs
func CreateProviders(ctx context.Context, config *ProviderConfig, logger *logrus.Logger) (*Providers, error) {
	source, err := CreateScanResultSource(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create scan result source: %w", err)
	}

	forwarder, err := CreateSubmissionForwarder(ctx, config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create submission forwarder: %w", err)
	}

	store, err := CreateArtifactStore(ctx, config, forwarder, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact store: %w", err)
	}

	return &Providers{Source: source, Forwarder: forwarder, Store: store}, nil
}

// LoadClusterCredentials overlays credentials from the configured Kubernetes Secret
func LoadClusterCredentials(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	if !cfg.UsesSecretStore() {
		return nil
	}

	loader, err := kube.NewSecretLoader(logger)
	if err != nil {
		return err
	}
	return applySecret(ctx, loader, cfg)
}

func applySecret(ctx context.Context, loader *kube.SecretLoader, cfg *config.Config) error {
	creds, err := loader.LoadCredentials(ctx, cfg.Kube.SecretNamespace, cfg.Kube.SecretName)
	if err != nil {
		return fmt.Errorf("failed to load credentials from %s: %w", loader.Name(), err)
	}
	cfg.ApplyCredentials(creds)
	return nil
}
