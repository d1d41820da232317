// ABOUTME: Amazon S3 artifact store for aggregated scan results.
// ABOUTME: Handles credentials, optional role assumption, and object uploads.

package aws

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/sirupsen/logrus"
)

// uploader is the subset of manager.Uploader used by the store
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Config holds the bucket location and access settings
type S3Config struct {
	Bucket        string
	Region        string
	Prefix        string
	AssumeRoleARN string
}

// S3ArtifactStore implements ArtifactStore for Amazon S3
type S3ArtifactStore struct {
	uploader uploader
	bucket   string
	prefix   string
	logger   *logrus.Logger
}

// NewS3ArtifactStore creates a new S3 artifact store
func NewS3ArtifactStore(ctx context.Context, cfg S3Config, logger *logrus.Logger) (*S3ArtifactStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	stsClient := sts.NewFromConfig(awsCfg.Copy())

	if cfg.AssumeRoleARN != "" {
		logger.WithField("role_arn", cfg.AssumeRoleARN).Info("Assuming role for artifact uploads")
		awsCfg.Credentials = aws.NewCredentialsCache(stscreds.NewAssumeRoleProvider(stsClient, cfg.AssumeRoleARN))
	} else {
		identity, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
		if err != nil {
			logger.WithError(err).Warn("Could not get caller identity, proceeding with default credentials")
		} else {
			logger.WithFields(logrus.Fields{
				"account": aws.ToString(identity.Account),
				"arn":     aws.ToString(identity.Arn),
			}).Info("AWS identity information")
		}
	}

	client := s3.NewFromConfig(awsCfg)
	return newS3ArtifactStore(manager.NewUploader(client), cfg, logger), nil
}

func newS3ArtifactStore(u uploader, cfg S3Config, logger *logrus.Logger) *S3ArtifactStore {
	return &S3ArtifactStore{
		uploader: u,
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		logger:   logger,
	}
}

// Name returns the artifact store name
func (s *S3ArtifactStore) Name() string {
	return "aws-s3"
}

// ObjectKey returns the key an artifact is stored under
func (s *S3ArtifactStore) ObjectKey(submissionID, name string) string {
	return path.Join(s.prefix, submissionID, name+".json")
}

// PutArtifact uploads one artifact as a JSON object
func (s *S3ArtifactStore) PutArtifact(ctx context.Context, submissionID, name string, content []byte) error {
	if err := checkKeyElement("submission id", submissionID); err != nil {
		return err
	}
	if err := checkKeyElement("artifact name", name); err != nil {
		return err
	}

	key := s.ObjectKey(submissionID, name)
	logger := s.logger.WithFields(logrus.Fields{
		"bucket": s.bucket,
		"key":    key,
		"size":   len(content),
	})

	output, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		logger.WithError(err).Error("Failed to upload artifact to S3")
		return fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucket, key, err)
	}

	logger.WithField("location", output.Location).Info("Uploaded artifact to S3")
	return nil
}

// checkKeyElement keeps a key segment from escaping the configured prefix
func checkKeyElement(what, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", what)
	}
	if value == "." || value == ".." || strings.ContainsAny(value, `/\`) {
		return fmt.Errorf("invalid %s: %q", what, value)
	}
	return nil
}
